package alerts

import (
	"context"
	"time"

	"github.com/framefrok/bsma/internal/scheduler"
	"github.com/framefrok/bsma/internal/storage"
)

// RunExpirySweeper drives the long-overdue cleanup sweep until ctx is
// cancelled. It is a safety net behind the fire scheduler: an alert whose fire
// time passed more than ExpiryMargin ago was missed (restart, crash, clock
// jump) and is force-deactivated without a notification.
func (s *Service) RunExpirySweeper(ctx context.Context) error {
	loop := scheduler.New(scheduler.Options{
		Name:     "expiry_sweeper",
		Interval: s.cfg.ExpiryInterval,
	}, s.logger)
	return loop.Run(ctx, s.expiryTick)
}

func (s *Service) expiryTick(ctx context.Context, now time.Time) error {
	active, err := s.stores.Alerts.ListActiveAlerts(ctx)
	if err != nil {
		return err
	}

	cutoff := now.Add(-s.cfg.ExpiryMargin)
	swept := 0
	for _, alert := range active {
		if !alert.FireTime.Before(cutoff) {
			continue
		}

		applied, err := s.transition(ctx, alert.ID, storage.StatusCleanupExpired)
		if err != nil {
			s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("cleanup transition failed")
			continue
		}
		if applied {
			s.fires.Remove(alert.ID)
			swept++
			s.logger.Warn().
				Int64("alert_id", alert.ID).
				Time("fire_time", alert.FireTime).
				Msg("cleaned up long-overdue alert")
		}
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("expiry sweep complete")
	}
	return nil
}
