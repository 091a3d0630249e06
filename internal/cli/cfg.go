package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/modules"
)

// NewCfgCmd создаёт команду `cfg`: выгрузку параметров модуля по умолчанию.
func NewCfgCmd(app *App) *cobra.Command {
	var module, level, output string

	cmd := &cobra.Command{
		Use:   "cfg",
		Short: "Write the default parameters of a module",
		Long: "Render the default parameters of a module as a TOML [stage.<module>] section.\n" +
			"Levels: basic, intermediate, expert, all.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = DefaultCfgFile(module)
			}

			text, err := modules.RenderDefaults(app.Registry, module, level)
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			app.Output().Message(fmt.Sprintf("Defaults of %s (%s) written to %s", module, level, output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&module, "module", "m", "", "Module name")
	cmd.Flags().StringVarP(&level, "level", "l", modules.LevelAll, "Expertise level")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stagerun_<module>.cfg)")
	_ = cmd.MarkFlagRequired("module")

	return cmd
}

// DefaultCfgFile — имя файла для `cfg` без --output.
func DefaultCfgFile(module string) string {
	return "stagerun_" + module + ".cfg"
}
