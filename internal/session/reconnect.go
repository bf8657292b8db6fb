package session

import "time"

// reconnectPolicy computes the deferred-retry delay for transient
// disconnects: exponential growth from Base, capped at Max, at most
// MaxAttempts retries before the session is declared failed.
type reconnectPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// delay returns min(Base * 2^(attempt-1), Max) for attempt >= 1.
func (p reconnectPolicy) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// connectPolicy bounds retries of socket construction. Construction
// failures are typically transient local errors, so the delay grows
// linearly and the budget is small.
type connectPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

func (p connectPolicy) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.Delay
}
