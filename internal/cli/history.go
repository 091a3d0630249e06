package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/repo"
)

// NewHistoryCmd создаёт команду `history`: список сохранённых runs.
func NewHistoryCmd(app *App) *cobra.Command {
	var limit int
	var status string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Settings.DBURL == "" {
				return ErrNoDatabase
			}

			pool, err := repo.NewPool(cmd.Context(), app.Settings.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			runs, err := repo.NewRunRepo(pool).List(cmd.Context(), repo.RunFilter{
				Status: domain.RunStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			return app.Output().Print(historyHeaders, historyRows(runs), runs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", repo.DefaultListLimit, "Maximum number of runs")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (RUNNING, SUCCEEDED, FAILED)")

	return cmd
}

var historyHeaders = []string{"ID", "STATUS", "RESTART", "FAILED_STAGE", "DURATION", "PROJECT_DIR", "CREATED"}

func historyRows(runs []domain.Run) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		failed := "-"
		if r.FailedStage != nil {
			failed = strconv.Itoa(*r.FailedStage)
		}
		rows[i] = []string{
			r.ID.String(),
			string(r.Status),
			strconv.Itoa(r.RestartFrom),
			failed,
			r.Duration().Round(time.Millisecond).String(),
			r.ProjectDir,
			r.CreatedAt.Format(time.DateTime),
		}
	}
	return rows
}
