package scheduler

import (
	"time"

	"github.com/joeycumines/go-corosock/corolog"
)

// Option configures a Scheduler at construction time, grounded on the
// teacher's eventloop/options.go functional-option pattern (LoopOption /
// loopOptionImpl). The runtime takes no environment configuration --
// these are the only knobs an embedder gets.
type Option interface {
	apply(*schedulerConfig)
}

type optionFunc func(*schedulerConfig)

func (f optionFunc) apply(c *schedulerConfig) { f(c) }

type schedulerConfig struct {
	logger    corolog.Logger
	slack     time.Duration
	maxPoll   time.Duration
	socketTMO time.Duration
}

// WithLogger installs a structured logger. Defaults to corolog.NoOp().
func WithLogger(l corolog.Logger) Option {
	return optionFunc(func(c *schedulerConfig) { c.logger = l })
}

// WithSlack overrides the timer-expiry tolerance -- how far before a sleep
// deadline "now" may still be when the entry counts as expired (an entry
// expires once deadline <= now + slack). Defaults to 1ms.
func WithSlack(d time.Duration) Option {
	return optionFunc(func(c *schedulerConfig) {
		if d >= 0 {
			c.slack = d
		}
	})
}

// WithMaxPollInterval bounds how long a single blocking notifier poll may
// run for, even with no pending sleeps or socket timeouts -- this keeps the
// scheduler responsive to foreign-thread Shutdown calls that race the wakeup
// pipe. Defaults to 10s.
func WithMaxPollInterval(d time.Duration) Option {
	return optionFunc(func(c *schedulerConfig) {
		if d > 0 {
			c.maxPoll = d
		}
	})
}

// WithDefaultSocketTimeout records a fallback per-operation socket timeout
// in the scheduler's configuration. AsyncSocket does not read it: a socket's
// timeout comes only from AsyncSocket.SetTimeout (or SetDeadline).
func WithDefaultSocketTimeout(d time.Duration) Option {
	return optionFunc(func(c *schedulerConfig) { c.socketTMO = d })
}

func resolveOptions(opts []Option) schedulerConfig {
	cfg := schedulerConfig{
		logger:  corolog.NoOp(),
		slack:   time.Millisecond,
		maxPoll: 10 * time.Second,
	}
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return cfg
}

// SpawnOption configures a single Spawn call.
type SpawnOption interface {
	apply(*spawnConfig)
}

type spawnOptionFunc func(*spawnConfig)

func (f spawnOptionFunc) apply(c *spawnConfig) { f(c) }

type spawnConfig struct {
	name string
}

// WithName attaches a debug label to a coroutine, surfaced in log fields.
// Grounded on the original's Coro(target, *args, name=...) constructor
// (see SPEC_FULL.md section 9, "Named coroutines for diagnostics").
func WithName(name string) SpawnOption {
	return spawnOptionFunc(func(c *spawnConfig) { c.name = name })
}

func resolveSpawnOptions(opts []SpawnOption) spawnConfig {
	var cfg spawnConfig
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return cfg
}
