// Package alerts implements the dynamic target-price alert scheduler: alert
// creation, the fire scheduler, the reconciliation loop that re-estimates
// every active alert from fresh samples, and the periodic safety sweeps.
//
// Concurrency discipline: many independent loops mutate the same alerts
// concurrently, so every terminal status write goes through the store's
// compare-and-set transition and field updates are guarded on the row still
// being active. Notifications are sent only after a transition was applied,
// and a delivery failure never rolls one back.
package alerts

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/market"
	"github.com/framefrok/bsma/internal/metrics"
	"github.com/framefrok/bsma/internal/storage"
	"github.com/framefrok/bsma/internal/users"
)

// Config tunes the scheduler's windows and cadences. Zero fields fall back to
// the defaults the system was designed around.
type Config struct {
	// SampleWindow is the lookback used for every velocity estimate.
	SampleWindow time.Duration
	// ReconcileInterval is the reconciliation sweep cadence.
	ReconcileInterval time.Duration
	// RescheduleNotice is the minimum fire-time drift worth a notification.
	RescheduleNotice time.Duration
	// ExpiryInterval is the expiry sweep cadence.
	ExpiryInterval time.Duration
	// ExpiryMargin is how far past its fire time an active alert may linger
	// before the sweeper force-deactivates it.
	ExpiryMargin time.Duration
	// StalenessInterval is the staleness check cadence.
	StalenessInterval time.Duration
	// StalenessAfter is the sample age at which the feed counts as stale.
	StalenessAfter time.Duration
	// BuyRuleInterval is the buy-threshold sweep cadence.
	BuyRuleInterval time.Duration
	// AdvisoryLockKey serialises reconciliation sweeps across replicas when
	// non-zero and the store supports advisory locks.
	AdvisoryLockKey int64
}

func (c Config) withDefaults() Config {
	if c.SampleWindow <= 0 {
		c.SampleWindow = 15 * time.Minute
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = time.Minute
	}
	if c.RescheduleNotice <= 0 {
		c.RescheduleNotice = 5 * time.Minute
	}
	if c.ExpiryInterval <= 0 {
		c.ExpiryInterval = 10 * time.Minute
	}
	if c.ExpiryMargin <= 0 {
		c.ExpiryMargin = time.Hour
	}
	if c.StalenessInterval <= 0 {
		c.StalenessInterval = time.Minute
	}
	if c.StalenessAfter <= 0 {
		c.StalenessAfter = 15 * time.Minute
	}
	if c.BuyRuleInterval <= 0 {
		c.BuyRuleInterval = 5 * time.Minute
	}
	return c
}

// Stores bundles the repository surfaces the scheduler depends on.
type Stores struct {
	Alerts  storage.AlertStore
	Samples storage.SampleStore
	Users   storage.UserStore
	Chats   storage.ChatStore
	Groups  storage.GroupStore
	Rules   storage.BuyRuleStore
}

// Service orchestrates alert creation, firing, and the periodic sweeps.
type Service struct {
	cfg      Config
	stores   Stores
	bonuses  *users.Resolver
	notifier alerting.Notifier
	metrics  *metrics.Metrics
	locker   storage.AdvisoryLocker
	logger   zerolog.Logger
	fires    *FireScheduler

	clock func() time.Time
}

// New constructs the alert scheduler service. locker and m may be nil.
func New(cfg Config, stores Stores, notifier alerting.Notifier, m *metrics.Metrics, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:      cfg.withDefaults(),
		stores:   stores,
		bonuses:  users.NewResolver(stores.Users),
		notifier: notifier,
		metrics:  m,
		locker:   locker,
		logger:   logger.With().Str("component", "alerts").Logger(),
		clock:    time.Now,
	}
	s.fires = NewFireScheduler(s.Evaluate, logger)
	return s
}

// RunFireScheduler blocks, driving one-shot evaluations until ctx is cancelled.
func (s *Service) RunFireScheduler(ctx context.Context) error {
	return s.fires.Run(ctx)
}

// RearmActiveAlerts re-schedules every persisted active alert, recovering
// fire times lost to a restart. Overdue alerts fire immediately.
func (s *Service) RearmActiveAlerts(ctx context.Context) error {
	active, err := s.stores.Alerts.ListActiveAlerts(ctx)
	if err != nil {
		return err
	}
	for _, alert := range active {
		s.fires.Schedule(alert.ID, alert.FireTime)
	}
	if len(active) > 0 {
		s.logger.Info().Int("count", len(active)).Msg("re-armed active alerts")
	}
	return nil
}

// CreateRequest describes a requested target-price alert.
type CreateRequest struct {
	UserID      int64
	ChatID      *int64
	Resource    string
	TargetPrice decimal.Decimal
}

// CreateResult reports the created alert and its initial expectation. When
// TrendWarning is set, the short-window trend contradicted the requested
// direction at creation time; the alert was created anyway and the caller
// should surface the warning.
type CreateResult struct {
	Alert        storage.Alert
	TimeToTarget time.Duration
	TrendWarning bool
	Trend        market.Trend
}

// Create validates a request against the current market, derives direction
// and expected fire time, persists the alert, and arms its fire.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if !req.TargetPrice.IsPositive() {
		return nil, configErrf("target price must be positive, got %s", req.TargetPrice)
	}

	now := s.clock()

	latest, err := s.stores.Samples.LatestSample(ctx, req.Resource)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNoMarketData
	}

	window, err := s.stores.Samples.RecentSamples(ctx, req.Resource, now.Add(-s.cfg.SampleWindow))
	if err != nil {
		return nil, err
	}

	bonus, err := s.bonuses.Bonus(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	current, _ := users.AdjustPrices(bonus, latest.Buy, latest.Sell)

	var direction storage.Direction
	switch req.TargetPrice.Cmp(current) {
	case -1:
		direction = storage.DirectionDown
	case 1:
		direction = storage.DirectionUp
	default:
		return nil, configErrf("target price %s equals the current price", req.TargetPrice)
	}

	rawSpeed, hasSignal := market.Speed(window, market.FieldBuy)
	if !hasSignal {
		return nil, ErrNoSignal
	}
	speed := market.AdjustSpeed(rawSpeed, bonus)
	if speed.IsZero() {
		return nil, ErrNoSignal
	}
	if speed.Sign() != direction.Sign() {
		return nil, configErrf("price is moving away from target %s (speed %s/min)", req.TargetPrice, speed)
	}

	trend := market.TrendOf(window, market.FieldBuy)

	timeToTarget := minutesToDuration(req.TargetPrice.Sub(current).Abs().DivRound(speed.Abs(), 6))
	alert := storage.Alert{
		UserID:         req.UserID,
		ChatID:         req.ChatID,
		Resource:       req.Resource,
		Direction:      direction,
		TargetPrice:    req.TargetPrice,
		Speed:          speed,
		ReferencePrice: current,
		FireTime:       now.Add(timeToTarget),
		Status:         storage.StatusActive,
		CreatedAt:      now,
	}

	id, err := s.stores.Alerts.InsertAlert(ctx, alert)
	if err != nil {
		return nil, err
	}
	alert.ID = id

	s.fires.Schedule(id, alert.FireTime)
	s.metrics.AlertCreated()

	s.logger.Info().
		Int64("alert_id", id).
		Str("resource", req.Resource).
		Str("direction", string(direction)).
		Str("target", req.TargetPrice.String()).
		Str("speed", speed.String()).
		Time("fire_time", alert.FireTime).
		Msg("alert created")

	return &CreateResult{
		Alert:        alert,
		TimeToTarget: timeToTarget,
		TrendWarning: trend.Opposes(direction),
		Trend:        trend,
	}, nil
}

// CancelUserAlerts force-deactivates every active alert owned by a user and
// drops their pending fires. Returns the number of alerts cancelled.
func (s *Service) CancelUserAlerts(ctx context.Context, userID int64) (int, error) {
	active, err := s.stores.Alerts.ListUserActiveAlerts(ctx, userID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, alert := range active {
		applied, err := s.transition(ctx, alert.ID, storage.StatusCleanupExpired)
		if err != nil {
			s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("cancel alert failed")
			continue
		}
		if applied {
			s.fires.Remove(alert.ID)
			cancelled++
		}
	}
	return cancelled, nil
}

// ListUserAlerts returns a user's active alerts ordered by fire time.
func (s *Service) ListUserAlerts(ctx context.Context, userID int64) ([]storage.Alert, error) {
	return s.stores.Alerts.ListUserActiveAlerts(ctx, userID)
}

// transition applies a CAS status change and counts it when applied.
func (s *Service) transition(ctx context.Context, id int64, to storage.AlertStatus) (bool, error) {
	applied, err := s.stores.Alerts.TransitionStatus(ctx, id, to)
	if err != nil {
		return false, err
	}
	if applied {
		s.metrics.TransitionApplied(string(to))
	}
	return applied, nil
}

// notify delivers best-effort: failures are counted and logged, never returned.
func (s *Service) notify(ctx context.Context, chatID int64, text string, isGroup bool) {
	if s.notifier == nil {
		return
	}
	note := alerting.Notification{ChatID: chatID, Text: text, IsGroup: isGroup}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.metrics.NotifyFailed()
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notification failed")
	}
}

// adjustedPrice resolves the user's bonus-adjusted view of a sample's buy price.
func (s *Service) adjustedPrice(ctx context.Context, userID int64, sample *storage.MarketSample) (decimal.Decimal, decimal.Decimal, error) {
	bonus, err := s.bonuses.Bonus(ctx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	buy, _ := users.AdjustPrices(bonus, sample.Buy, sample.Sell)
	return buy, bonus, nil
}

// reached tests the target condition in the alert's direction.
func reached(alert storage.Alert, current decimal.Decimal) bool {
	if alert.Direction == storage.DirectionDown {
		return current.LessThanOrEqual(alert.TargetPrice)
	}
	return current.GreaterThanOrEqual(alert.TargetPrice)
}

// maxTimeToTarget bounds projected arrival times. Near-zero speeds against a
// large distance would otherwise overflow the duration; such alerts park at
// the horizon and later reconciliations pull them in.
const maxTimeToTarget = 365 * 24 * time.Hour

func minutesToDuration(minutes decimal.Decimal) time.Duration {
	ns := minutes.InexactFloat64() * float64(time.Minute)
	if math.IsNaN(ns) || ns >= float64(maxTimeToTarget) {
		return maxTimeToTarget
	}
	if ns < 0 {
		return 0
	}
	return time.Duration(ns)
}
