package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"maker-fill-validator/internal/alerting"
	"maker-fill-validator/internal/config"
	"maker-fill-validator/internal/fetcher"
	"maker-fill-validator/internal/sampler"
	"maker-fill-validator/internal/scheduler"
	"maker-fill-validator/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newBalanceFetcher() fetcher.BalanceFetcher {
	if a.Config.Sampler.Source == "indexer" {
		return fetcher.NewIndexer(fetcher.IndexerOptions{
			BaseURL:   a.Config.Indexer.BaseURL,
			APIKey:    a.Config.Indexer.APIKey,
			Timeout:   a.Config.Indexer.RequestTimeout,
			UserAgent: a.Config.Indexer.UserAgent,
		}, a.Logger)
	}

	return fetcher.NewChain(fetcher.ChainOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running balance sampling service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn must be configured to run the sampler")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Sampler.Interval,
		StartupDelay: a.Config.Sampler.StartupDelay,
	}, a.Logger)

	svc := sampler.New(a.Config, sched, store, a.newBalanceFetcher(), a.newNotifier(), a.Logger)

	a.Logger.Info().
		Str("source", a.Config.Sampler.Source).
		Dur("interval", a.Config.Sampler.Interval).
		Msg("starting balance sampling service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("sampler terminated with error")
		return err
	}

	a.Logger.Info().Msg("balance sampling service stopped")
	return nil
}

// CheckOptions configure the check command.
type CheckOptions struct {
	QuotesPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting cache contents.
type ExportOptions struct {
	PNGPath string
	CSVPath string
	MaxRows int
}

// RegisterOptions configure manual pair registration.
type RegisterOptions struct {
	Token  string
	Makers []string
}
