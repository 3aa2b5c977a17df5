package alerts

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/storage"
)

// Evaluate performs the one-shot target check for an alert whose fire time
// arrived. It is safe to invoke any number of times for the same id: a
// missing or already-terminal alert is a silent no-op, and the CAS transition
// guarantees at most one invocation wins the terminal write.
func (s *Service) Evaluate(ctx context.Context, alertID int64) {
	logger := s.logger.With().Int64("alert_id", alertID).Logger()

	alert, err := s.stores.Alerts.GetAlert(ctx, alertID)
	if err != nil {
		logger.Error().Err(err).Msg("evaluation fetch failed")
		return
	}
	if alert == nil || alert.Status.Terminal() {
		return
	}

	latest, err := s.stores.Samples.LatestSample(ctx, alert.Resource)
	if err != nil {
		logger.Error().Err(err).Msg("evaluation sample fetch failed")
		return
	}
	if latest == nil {
		// No data to evaluate against; terminate rather than retry forever.
		applied, err := s.transition(ctx, alertID, storage.StatusError)
		if err != nil {
			logger.Error().Err(err).Msg("error transition failed")
			return
		}
		if applied {
			s.notify(ctx, alert.UserID, alerting.EvaluationFailedMessage(*alert), false)
			logger.Warn().Str("resource", alert.Resource).Msg("alert errored: no market data")
		}
		return
	}

	current, _, err := s.adjustedPrice(ctx, alert.UserID, latest)
	if err != nil {
		logger.Error().Err(err).Msg("price adjustment failed")
		return
	}

	if reached(*alert, current) {
		applied, err := s.transition(ctx, alertID, storage.StatusCompleted)
		if err != nil {
			logger.Error().Err(err).Msg("completed transition failed")
			return
		}
		if applied {
			s.notify(ctx, alert.UserID, alerting.TargetReachedMessage(*alert, current), false)
			s.notifyGroup(ctx, *alert, current)
			logger.Info().Str("current", current.String()).Msg("alert completed")
		}
		return
	}

	applied, err := s.transition(ctx, alertID, storage.StatusExpired)
	if err != nil {
		logger.Error().Err(err).Msg("expired transition failed")
		return
	}
	if applied {
		s.notify(ctx, alert.UserID, alerting.TimerExpiredMessage(*alert, current), false)
		logger.Info().Str("current", current.String()).Msg("alert expired: target not met")
	}
}

// notifyGroup announces a completed alert to its group chat, mentioning known
// members, when the alert is group-scoped and the chat is not the creator.
func (s *Service) notifyGroup(ctx context.Context, alert storage.Alert, current decimal.Decimal) {
	if alert.ChatID == nil || *alert.ChatID == alert.UserID {
		return
	}

	members, err := s.stores.Groups.GroupMembers(ctx, *alert.ChatID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", *alert.ChatID).Msg("group member lookup failed")
		members = nil
	}
	s.notify(ctx, *alert.ChatID, alerting.TargetReachedGroupMessage(alert, current, members), true)
}
