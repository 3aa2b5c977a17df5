package alerts

import (
	"context"
	"time"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/market"
	"github.com/framefrok/bsma/internal/scheduler"
	"github.com/framefrok/bsma/internal/storage"
)

// RunReconciler drives the reconciliation sweep until ctx is cancelled.
func (s *Service) RunReconciler(ctx context.Context) error {
	loop := scheduler.New(scheduler.Options{
		Name:     "reconciler",
		Interval: s.cfg.ReconcileInterval,
	}, s.logger)
	return loop.Run(ctx, s.reconcileTick)
}

// reconcileTick re-estimates every active alert from the freshest sample
// window. One alert's failure is logged and skipped so the rest of the sweep
// proceeds.
func (s *Service) reconcileTick(ctx context.Context, now time.Time) error {
	if s.cfg.AdvisoryLockKey != 0 && s.locker != nil {
		unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.cfg.AdvisoryLockKey)
		if err != nil {
			return err
		}
		if !acquired {
			s.logger.Debug().Msg("skip sweep: advisory lock held elsewhere")
			return nil
		}
		defer unlock()
	}

	active, err := s.stores.Alerts.ListActiveAlerts(ctx)
	if err != nil {
		return err
	}

	for _, alert := range active {
		if err := s.reconcileAlert(ctx, alert, now); err != nil {
			s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("reconcile alert failed")
		}
	}

	s.metrics.SweepCompleted()
	return nil
}

// reconcileAlert applies the per-alert decision ladder: freshness gates,
// trend-reversal deactivation, already-reached completion, the
// direction-consistency gate, and finally a fire-time recompute. Velocity is
// always re-estimated from the current short window, never the alert's
// original one, because it is non-stationary.
func (s *Service) reconcileAlert(ctx context.Context, alert storage.Alert, now time.Time) error {
	window, err := s.stores.Samples.RecentSamples(ctx, alert.Resource, now.Add(-s.cfg.SampleWindow))
	if err != nil {
		return err
	}
	if len(window) < 2 {
		return nil
	}

	latest, err := s.stores.Samples.LatestSample(ctx, alert.Resource)
	if err != nil {
		return err
	}
	if latest == nil || !latest.Timestamp.After(alert.CreatedAt) {
		// Nothing newer than the alert itself; try again next tick.
		return nil
	}

	current, bonus, err := s.adjustedPrice(ctx, alert.UserID, latest)
	if err != nil {
		return err
	}

	rawSpeed, hasSignal := market.Speed(window, market.FieldBuy)
	if !hasSignal {
		return nil
	}
	speed := market.AdjustSpeed(rawSpeed, bonus)
	if speed.IsZero() {
		return nil
	}

	trend := market.TrendOf(window, market.FieldBuy)
	if trend.Opposes(alert.Direction) {
		applied, err := s.transition(ctx, alert.ID, storage.StatusTrendChanged)
		if err != nil {
			return err
		}
		if applied {
			s.fires.Remove(alert.ID)
			s.notify(ctx, alert.UserID, alerting.TrendChangedMessage(alert, string(trend)), false)
			s.logger.Info().Int64("alert_id", alert.ID).Str("trend", string(trend)).Msg("alert deactivated: trend reversed")
		}
		return nil
	}

	// Equality satisfies the reach test, so the time-to-target division below
	// can never see a zero distance.
	if reached(alert, current) {
		applied, err := s.transition(ctx, alert.ID, storage.StatusCompleted)
		if err != nil {
			return err
		}
		if applied {
			s.fires.Remove(alert.ID)
			s.notify(ctx, alert.UserID, alerting.TargetReachedMessage(alert, current), false)
			s.notifyGroup(ctx, alert, current)
			s.logger.Info().Int64("alert_id", alert.ID).Msg("alert completed by reconciler")
		}
		return nil
	}

	if speed.Sign() != alert.Direction.Sign() {
		// Moving the wrong way but not yet a reversal; leave the alert armed.
		return nil
	}

	timeToTarget := minutesToDuration(alert.TargetPrice.Sub(current).Abs().DivRound(speed.Abs(), 6))
	fireTime := now.Add(timeToTarget)

	applied, err := s.stores.Alerts.UpdateSchedule(ctx, alert.ID, storage.AlertSchedule{
		Speed:          speed,
		ReferencePrice: current,
		FireTime:       fireTime,
	})
	if err != nil {
		return err
	}
	if !applied {
		// Turned terminal between the list and the update; nothing to re-arm.
		return nil
	}

	s.fires.Schedule(alert.ID, fireTime)
	s.metrics.Rescheduled()

	drift := fireTime.Sub(alert.FireTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > s.cfg.RescheduleNotice {
		s.notify(ctx, alert.UserID, alerting.TimerUpdatedMessage(alert, fireTime), false)
	}
	return nil
}
