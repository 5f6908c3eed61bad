package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"corpus/internal/app"
	"corpus/internal/worker"
)

// workerCmd runs the asynq worker that executes indexing and index
// maintenance tasks.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long:  `Starts the asynq worker process handling document indexing, lifecycle and vector index maintenance tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.WithError(err).Error("worker exited with error")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the asynq worker server.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithFields(log.Fields{
					"type":    task.Type(),
					"payload": string(task.Payload()),
				}).WithError(err).Error("task failed")
			}),
		},
	)

	deps := worker.Deps{
		Datasets:    appInstance.Datasets,
		Documents:   appInstance.Documents,
		Vectors:     appInstance.VectorStore,
		Features:    appInstance.FeatureService,
		Runner:      appInstance.Runner,
		Embedder:    appInstance.Embedder,
		Credentials: appInstance.Credentials,
		Extractors:  appInstance.Extractors,
		Jobs:        appInstance.JobClient,
		Redis:       appInstance.Redis,
	}
	deps.Configure(cfg)

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, deps)

	log.Infof("Starting worker server (concurrency: %d, queues: %v)", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received, stopping worker")
	srv.Stop()
	srv.Shutdown()

	appInstance.Close()
	log.Info("Worker shutdown complete")
	return nil
}
