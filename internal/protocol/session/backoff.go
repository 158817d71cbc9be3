package session

import (
	"math/rand"
	"time"
)

// PollDelay returns the wait before status poll N (1-based). The delay grows
// by Multiplier per poll up to MaxDelay; jitter spreads it over [d/2, d] so
// it never exceeds the cap. A positive budget bounds the result further,
// letting callers stop short of their own deadline.
func PollDelay(cfg BackoffConfig, attempt int, rng *rand.Rand, budget time.Duration) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := cfg.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if cfg.MaxDelay > 0 && delay >= float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
			break
		}
	}
	if cfg.Jitter {
		f := 0.75
		if rng != nil {
			f = 0.5 + rng.Float64()/2
		}
		delay *= f
	}
	d := time.Duration(delay)
	if budget > 0 && d > budget {
		d = budget
	}
	return d
}
