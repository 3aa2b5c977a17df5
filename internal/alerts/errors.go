package alerts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSignal reports a sample window too thin or too short to estimate
	// velocity from.
	ErrNoSignal = errors.New("alerts: no velocity signal in sample window")

	// ErrNoMarketData reports that a resource has no samples at all.
	ErrNoMarketData = errors.New("alerts: no market data for resource")
)

// ConfigurationError rejects an alert request before anything is persisted:
// the target sits on the wrong side of the current price, or the market is
// moving away from it.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "alerts: " + e.Reason
}

func configErrf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
