package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/maintenance"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/server"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	noKafka   bool
	seedAdmin bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operator API, gRPC health and the background sweep",
		Long: `Serve the HTTP operator API and gRPC health checks, sweep stale sales on
SWEEP_INTERVAL and relay sale audit records from the outbox to Kafka.

Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noKafka, "no-kafka", false, "log outbox messages instead of sending them to Kafka")
	cmd.Flags().BoolVar(&flags.seedAdmin, "seed-admin", true, "create the ADMIN_USERNAME operator when it is configured")

	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions, flags *serveFlags) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	app, err := opts.openApp(ctx)
	if err != nil {
		return reportError(formatter, "serve", err)
	}
	defer app.Close()

	if app.DB == nil || app.Outbox == nil {
		return reportError(formatter, "serve", NewExitError(ExitCommandError, "serve requires a database"))
	}

	log := app.Logger
	cfg := app.Config

	if flags.seedAdmin && cfg.AdminUsername != "" {
		created, err := seedAdmin(ctx, app)
		if err != nil {
			return reportError(formatter, "serve", err)
		}
		log.Info("admin operator", zap.String("username", cfg.AdminUsername), zap.Bool("created", created))
	}

	grpcSrv := grpcserver.New(log.Named("grpc"))
	runner := maintenance.NewRunner(app.Service, maintenance.Config{
		Interval:    cfg.SweepInterval,
		MaxStaleAge: cfg.MaxStaleAge,
		Retry:       cfg.Retry(),
	}, log.Named("maintenance"), grpcSrv.SetMaintenanceHealthy)
	httpSrv := server.New(app.Service, app.Operators, app.Locks, runner, log.Named("http"))

	var producer kafka.Producer
	if flags.noKafka || len(cfg.KafkaBrokers) == 0 {
		producer = kafka.NewLogProducer(log.Named("kafka"))
	} else {
		producer = kafka.NewBrokerProducer(cfg.KafkaBrokers, log.Named("kafka"))
	}
	publisher := kafka.NewPublisher(app.DB, app.Outbox, producer, kafka.PublisherConfig{
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempt,
	}, log.Named("outbox"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpSrv.Run(gctx, cfg.HTTPAddr)
	})
	g.Go(func() error {
		return grpcSrv.Run(gctx, cfg.GRPCAddr)
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		notify.LogEvents(gctx, app.Events, log.Named("events"))
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		publisher.Shutdown()
		return httpSrv.Shutdown(shutdownCtx)
	})

	log.Info("landsales started",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr),
		zap.Duration("sweep_interval", cfg.SweepInterval))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return reportError(formatter, "serve", err)
	}
	log.Info("landsales stopped")
	return nil
}
