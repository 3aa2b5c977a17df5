package alerts

import (
	"context"
	"time"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/scheduler"
	"github.com/framefrok/bsma/internal/storage"
)

// RunBuyThresholdMonitor drives the buy-signal sweep until ctx is cancelled.
// A rule fires when a resource's newest sample is at or below the rule's price
// ceiling with at least the required quantity on offer.
func (s *Service) RunBuyThresholdMonitor(ctx context.Context) error {
	loop := scheduler.New(scheduler.Options{
		Name:     "buy_threshold",
		Interval: s.cfg.BuyRuleInterval,
	}, s.logger)
	return loop.Run(ctx, s.buyThresholdTick)
}

func (s *Service) buyThresholdTick(ctx context.Context, now time.Time) error {
	rules, err := s.stores.Rules.ListActiveBuyRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	samples, err := s.stores.Samples.LatestSamples(ctx)
	if err != nil {
		return err
	}
	latest := make(map[string]storage.MarketSample, len(samples))
	for _, sample := range samples {
		latest[sample.Resource] = sample
	}

	for _, rule := range rules {
		sample, ok := latest[rule.Resource]
		if !ok {
			continue
		}
		if sample.Buy.GreaterThan(rule.MaxPrice) || sample.Quantity < rule.MinQuantity {
			continue
		}

		members, err := s.stores.Groups.GroupMembers(ctx, rule.ChatID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", rule.ChatID).Msg("group member lookup failed")
			members = nil
		}

		note := alerting.Notification{
			ChatID:  rule.ChatID,
			Text:    alerting.BuySignalMessage(rule, sample, members),
			IsGroup: true,
		}
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			// Leave the rule active so the next sweep retries delivery.
			s.metrics.NotifyFailed()
			s.logger.Warn().Err(err).Int64("chat_id", rule.ChatID).Str("resource", rule.Resource).Msg("buy signal delivery failed")
			continue
		}

		if err := s.stores.Rules.DeactivateBuyRule(ctx, rule.ChatID, rule.Resource); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", rule.ChatID).Str("resource", rule.Resource).Msg("deactivate buy rule failed")
			continue
		}
		s.logger.Info().
			Int64("chat_id", rule.ChatID).
			Str("resource", rule.Resource).
			Str("buy", sample.Buy.String()).
			Int64("quantity", sample.Quantity).
			Msg("buy signal delivered")
	}

	return nil
}
