package resilience

import (
	"time"
)

// FromRetrySettings converts the configured retry count and base delay in
// seconds to a RetryConfig. Non-positive values keep the defaults.
func FromRetrySettings(maxRetries, delaySecs int) RetryConfig {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if delaySecs <= 0 {
		delaySecs = 2
	}
	return BackoffConfig(maxRetries, time.Duration(delaySecs)*time.Second)
}
