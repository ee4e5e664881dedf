package device

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PollingPolicy decides how long to wait before CHECK attempt number
// attempt (0-based). The returned delay is a host-side timer; a zero delay
// still yields to the pump once per CHECK.
type PollingPolicy func(attempt uint32) time.Duration

// defaultPollingTable is the delay schedule used when no policy is supplied,
// saturating at the last entry.
var defaultPollingTable = []time.Duration{
	50 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
}

// DefaultPollingPolicy follows the schedule 50, 50, 100, 100, 250, 250, 500,
// 500, 1000 milliseconds, then stays at 1000 ms.
func DefaultPollingPolicy(attempt uint32) time.Duration {
	if int(attempt) >= len(defaultPollingTable) {
		return defaultPollingTable[len(defaultPollingTable)-1]
	}
	return defaultPollingTable[attempt]
}

// ConstantPolicy polls with a fixed delay.
func ConstantPolicy(d time.Duration) PollingPolicy {
	return func(uint32) time.Duration {
		return d
	}
}

// BackoffPolicy drives polling from a backoff.BackOff. The attempt index is
// ignored; the backoff carries its own state. When the backoff stops, the
// policy saturates at the default schedule's longest delay.
func BackoffPolicy(b backoff.BackOff) PollingPolicy {
	return func(uint32) time.Duration {
		d := b.NextBackOff()
		if d == backoff.Stop {
			return defaultPollingTable[len(defaultPollingTable)-1]
		}
		return d
	}
}
