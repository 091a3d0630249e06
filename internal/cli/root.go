package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd собирает дерево команд stagerun.
func NewRootCmd(app *App) *cobra.Command {
	s := app.Settings

	root := &cobra.Command{
		Use:           "stagerun",
		Short:         "stagerun — staged structural-biology pipeline runner",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level (DEBUG, INFO, WARNING, ERROR)")
	root.PersistentFlags().StringVar(&s.LogFormat, "log-format", s.LogFormat, "Log format (text, json)")
	root.PersistentFlags().BoolVar(&s.JSON, "json", false, "Output in JSON format")
	root.PersistentFlags().StringVar(&s.DBURL, "db-url", s.DBURL, "PostgreSQL URL for run history")
	root.PersistentFlags().StringVar(&s.AMQPURL, "amqp-url", s.AMQPURL, "RabbitMQ URL for run events")
	root.PersistentFlags().StringVar(&s.MetricsAddr, "metrics-addr", s.MetricsAddr, "Serve Prometheus /metrics on this address during a run")

	root.AddCommand(
		NewRunCmd(app),
		NewCfgCmd(app),
		NewModulesCmd(app),
		NewHistoryCmd(app),
		NewEventsCmd(app),
		NewPPCmd(app),
	)

	return root
}
