package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/tcpbmock/internal/testutil/testlog"
)

func TestPollDelayGrowsToCap(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	cases := map[int]time.Duration{
		1:  250 * time.Millisecond,
		2:  500 * time.Millisecond,
		3:  time.Second,
		6:  5 * time.Second,
		60: 5 * time.Second,
	}
	for attempt, want := range cases {
		if got := PollDelay(cfg, attempt, nil, 0); got != want {
			t.Fatalf("attempt %d got=%v want=%v", attempt, got, want)
		}
	}
}

func TestPollDelayJitterStaysUnderCap(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for attempt := 1; attempt < 10; attempt++ {
		got := PollDelay(cfg, attempt, rng, 0)
		if got > time.Second || got <= 0 {
			t.Fatalf("attempt %d jitter out of range: %v", attempt, got)
		}
	}
	if got := PollDelay(cfg, 2, rng, 0); got < 250*time.Millisecond || got > 500*time.Millisecond {
		t.Fatalf("attempt 2 jitter out of range: %v", got)
	}
}

func TestPollDelayHonorsBudget(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig().Backoff
	if got := PollDelay(cfg, 10, nil, 20*time.Millisecond); got != 20*time.Millisecond {
		t.Fatalf("budget not applied: %v", got)
	}
	if got := PollDelay(BackoffConfig{}, 3, nil, 0); got != 0 {
		t.Fatalf("zero config should not wait: %v", got)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{ReadTimeout: 100 * time.Millisecond}.WithDefaults()
	if cfg.ReadTimeout != 100*time.Millisecond {
		t.Fatalf("explicit read timeout overwritten: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 5*time.Second || cfg.AcceptTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults write=%v accept=%v", cfg.WriteTimeout, cfg.AcceptTimeout)
	}
	if cfg.Limits.MaxPayloadBytes == 0 || cfg.Backoff.InitialDelay == 0 {
		t.Fatalf("limits or backoff left unset: %+v", cfg)
	}
}
