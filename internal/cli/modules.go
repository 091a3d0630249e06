package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// moduleView — строка вывода `modules`.
type moduleView struct {
	Name     string `json:"name"`
	Method   string `json:"method"`
	Category string `json:"category"`
	Params   int    `json:"params"`
}

// NewModulesCmd создаёт команду `modules`: список реестра.
func NewModulesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List available modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := app.Registry.Entries()

			views := make([]moduleView, len(entries))
			rows := make([][]string, len(entries))
			for i, e := range entries {
				views[i] = moduleView{
					Name:     e.Name,
					Method:   e.Method,
					Category: e.Category,
					Params:   len(e.Defaults.Params),
				}
				rows[i] = []string{e.Name, e.Method, e.Category, strconv.Itoa(views[i].Params)}
			}

			return app.Output().Print([]string{"NAME", "METHOD", "CATEGORY", "PARAMS"}, rows, views)
		},
	}
}
