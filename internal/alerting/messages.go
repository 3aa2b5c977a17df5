package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

// Mentions joins member usernames into a mention string. Members without a
// username are skipped.
func Mentions(members []storage.GroupMember) string {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		if m.Username == "" {
			continue
		}
		parts = append(parts, "@"+m.Username)
	}
	return strings.Join(parts, " ")
}

// TargetReachedMessage announces a fired alert to its creator.
func TargetReachedMessage(alert storage.Alert, current decimal.Decimal) string {
	return fmt.Sprintf("Timer fired: %s reached %s (current %s)",
		alert.Resource, alert.TargetPrice.StringFixed(2), current.StringFixed(2))
}

// TargetReachedGroupMessage announces a fired alert to the alert's group chat.
func TargetReachedGroupMessage(alert storage.Alert, current decimal.Decimal, members []storage.GroupMember) string {
	builder := strings.Builder{}
	fmt.Fprintf(&builder, "Timer fired: %s reached %s (current %s)",
		alert.Resource, alert.TargetPrice.StringFixed(2), current.StringFixed(2))
	if mentions := Mentions(members); mentions != "" {
		builder.WriteString("\n")
		builder.WriteString(mentions)
	}
	return builder.String()
}

// TimerExpiredMessage reports a timer that fired without the target being met.
func TimerExpiredMessage(alert storage.Alert, current decimal.Decimal) string {
	return fmt.Sprintf("Timer expired: %s target %s not met (current %s)",
		alert.Resource, alert.TargetPrice.StringFixed(2), current.StringFixed(2))
}

// TrendChangedMessage reports an alert deactivated by a trend reversal.
func TrendChangedMessage(alert storage.Alert, trend string) string {
	return fmt.Sprintf("Trend changed: %s is now moving %s, alert deactivated", alert.Resource, trend)
}

// TimerUpdatedMessage reports a materially rescheduled fire time.
func TimerUpdatedMessage(alert storage.Alert, fireTime time.Time) string {
	return fmt.Sprintf("Timer updated: %s now expected at %s",
		alert.Resource, fireTime.Format("15:04:05"))
}

// EvaluationFailedMessage reports an alert that could not be evaluated.
func EvaluationFailedMessage(alert storage.Alert) string {
	return fmt.Sprintf("Cannot evaluate timer: no market data for %s", alert.Resource)
}

// StaleDataMessage reminds a subscriber that the market feed has gone quiet.
func StaleDataMessage(age time.Duration) string {
	return fmt.Sprintf("Market data is stale: no samples for %d minutes", int(age.Minutes()))
}

// BuySignalMessage announces a satisfied buy-threshold rule to its group.
func BuySignalMessage(rule storage.BuyRule, sample storage.MarketSample, members []storage.GroupMember) string {
	builder := strings.Builder{}
	fmt.Fprintf(&builder, "Buy signal: %s at %s with %d available",
		rule.Resource, sample.Buy.StringFixed(2), sample.Quantity)
	if mentions := Mentions(members); mentions != "" {
		builder.WriteString("\n")
		builder.WriteString(mentions)
	}
	return builder.String()
}
