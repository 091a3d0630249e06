package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/pdb"
)

// NewPPCmd создаёт команду `pp FILE...`: очистку PDB-файлов.
func NewPPCmd(app *App) *cobra.Command {
	var dry bool

	cmd := &cobra.Command{
		Use:   "pp FILE...",
		Short: "Preprocess PDB files",
		Long: "Keep only coordinate records (ATOM, HETATM, TER, MODEL/ENDMDL, END)\n" +
			"and write <stem>_processed.pdb next to each input.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.Output()

			var failed int
			for _, path := range args {
				dst, kept, err := pdb.Preprocess(path, dry)
				if err != nil {
					out.Error(err.Error())
					failed++
					continue
				}
				verb := "wrote"
				if dry {
					verb = "would write"
				}
				out.Line("%s %s (%d coordinate records)", verb, dst, kept)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dry, "dry", false, "Only report what would be written")

	return cmd
}
