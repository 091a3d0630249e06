package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/mq"
	"github.com/shaiso/stagerun/internal/prepare"
	"github.com/shaiso/stagerun/internal/repo"
	"github.com/shaiso/stagerun/internal/telemetry"
	"github.com/shaiso/stagerun/internal/workflow"
)

// forceUsage — справка --force. Без флага каталог проекта удаляется не всегда.
const forceUsage = "Always remove an existing project_dir. Without --force only an empty " +
	"project_dir or one holding data/ or begin/ from a previous run is removed; " +
	"any other non-empty directory is refused instead of deleted"

// NewRunCmd создаёт команду `run RECIPE`.
func NewRunCmd(app *App) *cobra.Command {
	var restart int
	var force bool

	cmd := &cobra.Command{
		Use:   "run RECIPE",
		Short: "Run a recipe",
		Long: "Validate the recipe, prepare the project directory and run the stages in order.\n" +
			"With --restart N the stages before N are skipped and stage N reads\n" +
			"the io.json of stage N-1 from the previous run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if restart < 0 {
				return fmt.Errorf("--restart: minimum value is 0, got %d", restart)
			}
			_, err := app.RunRecipe(cmd.Context(), args[0], RunOptions{Restart: restart, Force: force})
			return err
		},
	}

	cmd.Flags().IntVar(&restart, "restart", 0, "Restart the recipe from this stage index")
	cmd.Flags().BoolVar(&force, "force", false, forceUsage)

	return cmd
}

// RunOptions — параметры RunRecipe.
type RunOptions struct {
	Restart int
	Force   bool
}

// RunRecipe готовит и выполняет рецепт.
//
// Ошибки конфигурации возвращаются до запуска первой стадии.
// Ошибка стадии логируется, run завершается, возвращается ErrRunFailed.
func (a *App) RunRecipe(ctx context.Context, recipePath string, opts RunOptions) (*domain.Run, error) {
	logger, err := a.Logger()
	if err != nil {
		return nil, err
	}
	out := a.Output()

	out.Message(greeting(a.Version))

	staged, err := prepare.SetupRun(recipePath, a.Registry, prepare.Options{
		Restart: opts.Restart,
		Force:   opts.Force,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("configuration error", "recipe", recipePath, "error", err)
		return nil, err
	}

	observers, hook, closeAll, err := a.observers(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	absRecipe, err := filepath.Abs(recipePath)
	if err != nil {
		absRecipe = recipePath
	}

	driver := workflow.New(workflow.Config{
		Registry:  a.Registry,
		Observers: observers,
		JobHook:   hook,
		Logger:    logger,
	})
	run := driver.Run(ctx, domain.NewRun(absRecipe, staged.Workflow.ProjectDir(), opts.Restart), staged)

	out.Message(adieu(run))

	if run.Status == domain.RunStatusFailed {
		position := -1
		if run.FailedStage != nil {
			position = *run.FailedStage
		}
		return run, fmt.Errorf("%w at stage %d: %s", ErrRunFailed, position, run.Error)
	}
	return run, nil
}

// observers собирает observers драйвера по флагам.
// Метрики считаются всегда; /metrics поднимается только с --metrics-addr.
func (a *App) observers(ctx context.Context, logger *slog.Logger) ([]workflow.Observer, *telemetry.Metrics, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	observers := []workflow.Observer{metrics}

	if addr := a.Settings.MetricsAddr; addr != "" {
		closers = append(closers, serveMetrics(addr, reg, logger))
	}

	if a.Settings.DBURL != "" {
		pool, err := repo.NewPool(ctx, a.Settings.DBURL)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		observers = append(observers, repo.NewRecorder(repo.NewRunRepo(pool), repo.NewStageRepo(pool)))
		logger.Debug("recording run history")
	}

	if a.Settings.AMQPURL != "" {
		conn, err := mq.NewConnection(a.Settings.AMQPURL, logger)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect broker: %w", err)
		}
		closers = append(closers, func() { conn.Close() })

		pub, err := mq.NewPublisher(conn, logger)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		observers = append(observers, mq.NewEventObserver(pub))
		logger.Debug("publishing run events", "exchange", mq.ExchangeEvents)
	}

	return observers, metrics, closeAll, nil
}

// serveMetrics поднимает /metrics на addr и возвращает функцию остановки.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() { stopServer(srv, 5*time.Second, logger) }
}

// stopServer останавливает srv, ожидая активные запросы не дольше timeout.
func stopServer(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
}

func greeting(version string) string {
	return fmt.Sprintf("stagerun %s\nStarting at %s", version, time.Now().Format(time.DateTime))
}

func adieu(run *domain.Run) string {
	status := "finished"
	if run.Status == domain.RunStatusFailed {
		status = "finished with errors"
	}
	return fmt.Sprintf("Run %s %s in %s.\nThank you for using stagerun.",
		run.ID, status, run.Duration().Round(time.Millisecond))
}
