package governor

import (
	"errors"
	"fmt"
	"time"

	"emupace/internal/protocol"
	"emupace/internal/rate"
)

var ErrInvalidConfig = errors.New("invalid governor config")

const (
	DefaultRefresh rate.Rate = 59.7
	DefaultPoll    rate.Rate = 130
)

// Config is fixed for the lifetime of a governor
type Config struct {
	// Refresh is the target frame cadence
	Refresh rate.Rate
	// Poll is the cadence of coarse deferred checks, must be faster than Refresh
	Poll rate.Rate
}

func DefaultConfig() Config {
	return Config{Refresh: DefaultRefresh, Poll: DefaultPoll}
}

func (c Config) Validate() error {
	if c.Refresh.Period() <= 0 {
		return fmt.Errorf("%w: refresh rate must be positive", ErrInvalidConfig)
	}

	if c.Poll.Period() <= 0 {
		return fmt.Errorf("%w: poll rate must be positive", ErrInvalidConfig)
	}

	if c.Poll.Period() >= c.Refresh.Period() {
		return fmt.Errorf("%w: poll interval %v must be shorter than frame period %v",
			ErrInvalidConfig, c.Poll.Period(), c.Refresh.Period())
	}

	return nil
}

type Mode uint8

const (
	// Idle: a frame was just rendered (or nothing was asked yet)
	Idle Mode = iota
	// CoarsePoll: a deferred check is scheduled and will answer the pending request
	CoarsePoll
	// FinePoll: close to the deadline, every request is answered immediately
	FinePoll
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case CoarsePoll:
		return "coarse-poll"
	case FinePoll:
		return "fine-poll"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Stats is a snapshot of pacing counters
type Stats struct {
	Renders      uint64
	Waits        uint64
	CoarseChecks uint64
	FineChecks   uint64
	// MaxOvershoot is the largest elapsed time beyond the frame period seen at a render
	MaxOvershoot time.Duration
}

// Pacer is the governor state machine. It takes timestamps from the caller and never
// reads a clock or schedules anything itself, so it is not safe for concurrent use and
// is driven by exactly one goroutine.
type Pacer struct {
	targetPeriod time.Duration
	pollInterval time.Duration

	frameStart time.Time
	mode       Mode

	stats Stats
}

// NewPacer creates pacer in Idle mode with the frame deadline counted from start.
func NewPacer(cfg Config, start time.Time) (*Pacer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Pacer{
		targetPeriod: cfg.Refresh.Period(),
		pollInterval: cfg.Poll.Period(),
		frameStart:   start,
		mode:         Idle,
	}, nil
}

// Request handles an incoming REQUEST at now. When deferred is true no answer is
// due yet: the caller must call Check once PollInterval has passed, and Check answers
// that request. A request arriving while a check is already pending is answered
// immediately, the pending check then answers only its own request.
func (p *Pacer) Request(now time.Time) (d protocol.Message, deferred bool) {
	switch p.mode {
	case Idle:
		p.mode = CoarsePoll
		return protocol.Invalid, true
	default:
		p.stats.FineChecks++
		return p.decide(now), false
	}
}

// Check is the deferred coarse check scheduled by Request. Outside CoarsePoll the
// deadline was already decided by an immediate answer, so it only says Wait.
func (p *Pacer) Check(now time.Time) protocol.Message {
	if p.mode != CoarsePoll {
		return protocol.Wait
	}

	p.stats.CoarseChecks++
	return p.decide(now)
}

func (p *Pacer) decide(now time.Time) protocol.Message {
	elapsed := now.Sub(p.frameStart)
	if elapsed < p.targetPeriod {
		p.mode = FinePoll
		p.stats.Waits++
		return protocol.Wait
	}

	// late renders reset the deadline to now, missed frames are never caught up
	if over := elapsed - p.targetPeriod; over > p.stats.MaxOvershoot {
		p.stats.MaxOvershoot = over
	}
	p.frameStart = now
	p.mode = Idle
	p.stats.Renders++
	return protocol.Render
}

func (p *Pacer) Mode() Mode {
	return p.mode
}

func (p *Pacer) FrameStart() time.Time {
	return p.frameStart
}

func (p *Pacer) TargetPeriod() time.Duration {
	return p.targetPeriod
}

func (p *Pacer) PollInterval() time.Duration {
	return p.pollInterval
}

func (p *Pacer) Stats() Stats {
	return p.stats
}
