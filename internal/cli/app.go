package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/notify"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/oplock"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/landsales/migrations"
)

type Service interface {
	Check(ctx context.Context, pieceID string) (consistency.Report, error)
	Fix(ctx context.Context, pieceID string) (consistency.FixResult, error)
	ReapPiece(ctx context.Context, pieceID string, maxAge time.Duration) (consistency.ReapResult, error)
	Sweep(ctx context.Context, maxAge time.Duration) (consistency.ReapResult, error)
	Claim(ctx context.Context, pieceID string, opts ...consistency.ClaimOption) (consistency.ClaimResult, error)
	ClaimAndLock(ctx context.Context, pieceID string, opts ...consistency.ClaimOption) (consistency.ClaimResult, func(), error)
}

// App is everything a command needs, built once per invocation.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Service   Service
	Locks     *oplock.Registry
	Events    *notify.Broadcaster
	Operators storage.OperatorRepository

	// DB and Outbox are nil outside Postgres mode; serve requires them.
	DB     *db.Database
	Outbox storage.OutboxTaskRepository

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Opener builds the App for a command.
type Opener func(ctx context.Context, opts *RootOptions) (*App, error)

// OpenPostgres loads configuration and connects the Postgres-backed service.
func OpenPostgres(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: log}
	app.closers = append(app.closers, func() { _ = log.Sync() })
	if cfg.EnvFile != "" {
		log.Debug("environment loaded", zap.String("file", cfg.EnvFile))
	}

	if cfg.MigrationsOn {
		version, err := migrations.Apply(cfg.DatabaseDSN, migrations.Up)
		if err != nil {
			app.Close()
			return nil, err
		}
		log.Info("schema migrated", zap.Uint("version", version))
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, cfg.DBMaxConns)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.closers = append(app.closers, database.Close)

	outbox := postgresql.NewOutboxTaskRepo(cfg.OutboxMaxAttempt)
	store := storage.NewPostgresStore(
		database,
		postgresql.NewPieceRepo(database),
		postgresql.NewSaleRepo(database),
		postgresql.NewHistoryRepo(),
		postgresql.NewAuditRepo(),
		outbox,
		cfg.AuditTopic,
	)

	app.DB = database
	app.Outbox = outbox
	app.Operators = postgresql.NewOperatorRepo(database)
	app.Locks = oplock.NewRegistry(log.Named("locks"))
	app.Events = notify.NewBroadcaster(256, log.Named("events"))
	app.closers = append(app.closers, app.Events.Close)
	app.Service = consistency.NewService(store, app.Locks, app.Events, log, cfg.Consistency())

	return app, nil
}

func (o *RootOptions) openApp(ctx context.Context) (*App, error) {
	app, err := o.open(ctx, o)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return app, nil
}
