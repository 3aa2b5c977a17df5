// Package market estimates price velocity and trend from sampled quotes.
// Everything here is a pure function over an oldest-first sample window; the
// same window must feed both Speed and Trend so the two never disagree about
// what the market is doing.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

// PriceField selects which side of the quote a computation reads.
type PriceField string

const (
	FieldBuy  PriceField = "buy"
	FieldSell PriceField = "sell"
)

// Of extracts the selected price from a sample.
func (f PriceField) Of(sample storage.MarketSample) decimal.Decimal {
	if f == FieldSell {
		return sample.Sell
	}
	return sample.Buy
}

// Trend is the coarse first-vs-last classification of a window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Opposes reports whether the trend points away from the direction an alert
// needs the price to move.
func (t Trend) Opposes(d storage.Direction) bool {
	return (d == storage.DirectionDown && t == TrendUp) ||
		(d == storage.DirectionUp && t == TrendDown)
}

// speedPrecision is the number of decimal places speeds are rounded to.
const speedPrecision = 6

// minElapsed guards against division blow-up on near-simultaneous samples.
const minElapsed = 6 * time.Second

// Speed computes the linear price velocity over the window in price units per
// minute. ok is false when the window carries no usable signal: fewer than two
// samples, or first and last closer together than minElapsed.
func Speed(samples []storage.MarketSample, field PriceField) (decimal.Decimal, bool) {
	if len(samples) < 2 {
		return decimal.Zero, false
	}

	first := samples[0]
	last := samples[len(samples)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp)
	if elapsed < minElapsed {
		return decimal.Zero, false
	}

	minutes := decimal.NewFromFloat(elapsed.Minutes())
	delta := field.Of(last).Sub(field.Of(first))
	return delta.Div(minutes).Round(speedPrecision), true
}

// TrendOf classifies the window by comparing its first and last price.
// Windows with fewer than two samples are stable.
func TrendOf(samples []storage.MarketSample, field PriceField) Trend {
	if len(samples) < 2 {
		return TrendStable
	}

	first := field.Of(samples[0])
	last := field.Of(samples[len(samples)-1])
	switch last.Cmp(first) {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendStable
	}
}

// AdjustSpeed dampens a raw speed by a user's bonus fraction:
// adjusted = raw / (1 + bonus). A non-positive bonus leaves the speed unchanged.
func AdjustSpeed(speed decimal.Decimal, bonus decimal.Decimal) decimal.Decimal {
	if !bonus.IsPositive() {
		return speed
	}
	divisor := decimal.NewFromInt(1).Add(bonus)
	return speed.Div(divisor).Round(speedPrecision)
}

// Extrapolate projects the latest price forward to now along the window's
// velocity. Falls back to the raw latest price when the window has no signal.
// ok is false only when the window is empty.
func Extrapolate(samples []storage.MarketSample, field PriceField, now time.Time) (decimal.Decimal, bool) {
	if len(samples) == 0 {
		return decimal.Zero, false
	}

	latest := samples[len(samples)-1]
	price := field.Of(latest)

	speed, hasSignal := Speed(samples, field)
	if !hasSignal || now.Before(latest.Timestamp) {
		return price, true
	}

	minutes := decimal.NewFromFloat(now.Sub(latest.Timestamp).Minutes())
	return price.Add(speed.Mul(minutes)), true
}
