package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/alerts"
	"github.com/framefrok/bsma/internal/cache"
	"github.com/framefrok/bsma/internal/config"
	"github.com/framefrok/bsma/internal/metrics"
	"github.com/framefrok/bsma/internal/storage"
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

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
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

// newSampleStore layers the redis cache over the repository when an address is
// configured.
func (a *App) newSampleStore(store *storage.Store) (storage.SampleStore, func()) {
	if a.Config.Redis.Addr == "" {
		return store, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	closer := func() {
		if err := client.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("closing redis client")
		}
	}
	return cache.New(client, store, a.Config.Redis.TTL, a.Logger), closer
}

func (a *App) alertsConfig() alerts.Config {
	return alerts.Config{
		SampleWindow:      a.Config.Market.SampleWindow,
		ReconcileInterval: a.Config.Alerts.ReconcileInterval,
		RescheduleNotice:  a.Config.Alerts.RescheduleNotice,
		ExpiryInterval:    a.Config.Alerts.ExpiryInterval,
		ExpiryMargin:      a.Config.Alerts.ExpiryMargin,
		StalenessInterval: a.Config.Alerts.StalenessInterval,
		StalenessAfter:    a.Config.Alerts.StalenessAfter,
		BuyRuleInterval:   a.Config.Alerts.BuyRuleInterval,
		AdvisoryLockKey:   a.Config.Alerts.AdvisoryLockKey,
	}
}

// newAlertService wires an alert service for one-shot CLI operations: no
// notifier, no metrics, the bare repository as sample store.
func (a *App) newAlertService(store *storage.Store) *alerts.Service {
	return alerts.New(a.alertsConfig(), alerts.Stores{
		Alerts:  store,
		Samples: store,
		Users:   store,
		Chats:   store,
		Groups:  store,
		Rules:   store,
	}, nil, nil, store, a.Logger)
}

// Run executes the long-running alert scheduler.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to run the scheduler")
	}
	defer closeStore()

	samples, closeCache := a.newSampleStore(store)
	defer closeCache()

	var m *metrics.Metrics
	if a.Config.Metrics.Enabled {
		m = metrics.New()
	}

	svc := alerts.New(a.alertsConfig(), alerts.Stores{
		Alerts:  store,
		Samples: samples,
		Users:   store,
		Chats:   store,
		Groups:  store,
		Rules:   store,
	}, a.newNotifier(), m, store, a.Logger)

	if err := svc.RearmActiveAlerts(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return svc.RunFireScheduler(ctx) })
	group.Go(func() error { return svc.RunReconciler(ctx) })
	group.Go(func() error { return svc.RunExpirySweeper(ctx) })
	group.Go(func() error { return svc.RunStalenessReminder(ctx) })
	group.Go(func() error { return svc.RunBuyThresholdMonitor(ctx) })
	if m != nil {
		group.Go(func() error { return a.serveMetrics(ctx, m) })
	}

	a.Logger.Info().Msg("alert scheduler started")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scheduler terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert scheduler stopped")
	return nil
}

func (a *App) serveMetrics(ctx context.Context, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{Addr: a.Config.Metrics.Listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.Logger.Info().Str("listen", a.Config.Metrics.Listen).Msg("metrics listener started")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// HistoryOptions hold parameters for exporting a resource's price history.
type HistoryOptions struct {
	Resource  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// StatusOptions configure the status command.
type StatusOptions struct {
	UserID int64
	Limit  int
}
