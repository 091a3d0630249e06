package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/mq"
)

// NewEventsCmd создаёт команду `events`: чтение событий run из брокера.
func NewEventsCmd(app *App) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow run lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Settings.AMQPURL == "" {
				return ErrNoBroker
			}

			logger, err := app.Logger()
			if err != nil {
				return err
			}
			out := app.Output()

			conn, err := mq.NewConnection(app.Settings.AMQPURL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			consumer := mq.NewConsumer(conn, logger, mq.TailConfig(pattern, func(_ context.Context, msg *mq.Message) error {
				return printEvent(out, app.Settings.JSON, msg)
			}))

			err = consumer.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", mq.PatternAll, "Routing key pattern (run.*, stage.failed, ...)")

	return cmd
}

// printEvent выводит событие одной строкой или JSON.
func printEvent(out *Output, jsonMode bool, msg *mq.Message) error {
	if jsonMode {
		return out.JSON(msg)
	}

	ts := msg.Timestamp.Format("15:04:05")
	switch msg.Type {
	case mq.RoutingKeyRunStarted, mq.RoutingKeyRunFinished:
		ev, err := mq.ParsePayload[mq.RunEvent](msg)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s %-16s run=%s status=%s", ts, msg.Type, ev.RunID, ev.Status)
		if ev.Error != "" {
			line += fmt.Sprintf(" error=%q", ev.Error)
		}
		out.Line("%s", line)
	default:
		ev, err := mq.ParsePayload[mq.StageEvent](msg)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s %-16s run=%s stage=%d:%s status=%s artifacts=%d",
			ts, msg.Type, ev.RunID, ev.Position, ev.Stage, ev.Status, ev.Artifacts)
		if ev.Error != "" {
			line += fmt.Sprintf(" error=%q", ev.Error)
		}
		out.Line("%s", line)
	}
	return nil
}
