package alerts

import (
	"context"
	"time"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/scheduler"
)

const (
	minReminderInterval     = 5 * time.Minute
	maxReminderInterval     = 60 * time.Minute
	defaultReminderInterval = 15 * time.Minute
)

// clampReminderInterval bounds a subscriber's configured interval, falling
// back to the default when unset.
func clampReminderInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return defaultReminderInterval
	}
	if interval < minReminderInterval {
		return minReminderInterval
	}
	if interval > maxReminderInterval {
		return maxReminderInterval
	}
	return interval
}

// RunStalenessReminder drives the stale-feed reminder loop until ctx is
// cancelled. When the newest sample across all resources is older than
// StalenessAfter, subscribed users and chats are nudged to refresh the feed,
// each at their own cadence.
func (s *Service) RunStalenessReminder(ctx context.Context) error {
	loop := scheduler.New(scheduler.Options{
		Name:     "staleness_reminder",
		Interval: s.cfg.StalenessInterval,
	}, s.logger)
	return loop.Run(ctx, s.stalenessTick)
}

func (s *Service) stalenessTick(ctx context.Context, now time.Time) error {
	latest, err := s.stores.Samples.LatestSampleTime(ctx)
	if err != nil {
		return err
	}
	if latest.IsZero() {
		// No data has ever arrived; reminders would be noise.
		return nil
	}

	age := now.Sub(latest)
	if age < s.cfg.StalenessAfter {
		return nil
	}

	text := alerting.StaleDataMessage(age)

	users, err := s.stores.Users.ListReminderUsers(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		interval := clampReminderInterval(user.NotifyInterval)
		if !user.LastReminder.IsZero() && now.Sub(user.LastReminder) < interval {
			continue
		}
		s.notify(ctx, user.UserID, text, false)
		if err := s.stores.Users.MarkUserReminded(ctx, user.UserID, now); err != nil {
			s.logger.Error().Err(err).Int64("user_id", user.UserID).Msg("mark user reminded failed")
		}
	}

	chats, err := s.stores.Chats.ListReminderChats(ctx)
	if err != nil {
		return err
	}
	for _, chat := range chats {
		interval := clampReminderInterval(chat.NotifyInterval)
		if !chat.LastReminder.IsZero() && now.Sub(chat.LastReminder) < interval {
			continue
		}
		s.notify(ctx, chat.ChatID, text, true)
		if err := s.stores.Chats.MarkChatReminded(ctx, chat.ChatID, now); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chat.ChatID).Msg("mark chat reminded failed")
		}
	}

	return nil
}
