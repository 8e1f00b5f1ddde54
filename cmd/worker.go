package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/SteveArevalo/CS499-CapStone/internal/messaging"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that consumes animal intake messages from
Azure Service Bus and periodically refreshes the cached adoption reports`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Azure.QueueConnStr != "" {
		bus, err := messaging.NewAzureServiceBus(cfg.Azure, "shelter-worker")
		if err != nil {
			return err
		}
		defer func() {
			if err := bus.Close(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to close Service Bus client")
			}
		}()

		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting intake message consumer")
			return bus.ProcessMessages(ctx, a.service.ProcessIntakeMessage)
		})
	} else {
		log.Warn().Msg("Azure Service Bus connection string not set, intake consumer disabled")
	}

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return errors.Wrap(err, "failed to create scheduler")
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReportRefreshInterval),
			gocron.NewTask(func() {
				if err := a.service.RefreshReports(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to refresh reports")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule report refresh")
		}

		log.Info().Dur("interval", cfg.Worker.ReportRefreshInterval).Msg("Starting report refresh job")
		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
