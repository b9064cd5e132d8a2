// Package backoff paces caller-side retries. The orchestrator never retries
// on its own; commands that want to try again after a network failure wrap
// the call in Retry.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before retry number attempt (zero based).
type Strategy interface {
	Delay(attempt int, initial, maxDelay time.Duration) time.Duration
}

// Exponential doubles the delay each attempt and adds up to Jitter of it at
// random.
type Exponential struct {
	Multiplier float64
	Jitter     float64
}

func (s Exponential) Delay(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	multiplier := s.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	delay := time.Duration(float64(initial) * pow(multiplier, attempt))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}

	if jitter := clampJitter(s.Jitter); jitter > 0 {
		delay += time.Duration(float64(delay) * jitter * rand.Float64())
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return delay
}

// Decorrelated picks a delay between initial and initial*3^attempt, capped
// at maxDelay.
type Decorrelated struct{}

func (Decorrelated) Delay(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base * pow(3, attempt)
	if upper > float64(maxDelay) || upper < 0 {
		upper = float64(maxDelay)
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
