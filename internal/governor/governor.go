// Package governor paces a render loop to a fixed frame cadence.
//
// The governor never sleeps on behalf of its caller. Every REQUEST is either
// answered right away or, right after a frame was rendered, answered by a single
// deferred coarse check armed on a timer. Most of the frame period is spent waiting
// for that one timer, and the last stretch before the deadline is covered by the
// caller re-asking, so deadline crossing is detected with the precision of a
// channel round-trip rather than of the timer.
package governor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"emupace/internal/protocol"
)

// ErrTimerUnavailable is returned by Run when the clock cannot arm the coarse check.
// There is no fallback pacing strategy.
var ErrTimerUnavailable = errors.New("governor: timer source unavailable")

// Governor answers pump requests with protocol.Render or protocol.Wait.
// It is safe to call Stats from any goroutine while Run is active.
type Governor struct {
	cfg   Config
	clock Clock
	l     *slog.Logger

	lock  sync.Locker
	stats Stats
}

func New(cfg Config, clock Clock, l *slog.Logger) (*Governor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = SystemClock()
	}

	if l == nil {
		l = slog.Default()
	}

	return &Governor{
		cfg:   cfg,
		clock: clock,
		l:     l,
		lock:  &sync.Mutex{},
	}, nil
}

// Run serves requests until ctx is done or requests is closed. Each Request is answered
// with exactly one decision on decisions; any other message is ignored.
func (g *Governor) Run(ctx context.Context, requests <-chan protocol.Message, decisions chan<- protocol.Message) error {
	p, err := NewPacer(g.cfg, g.clock.Now())
	if err != nil {
		return err
	}

	g.l.Debug("Governor started",
		slog.Duration("frame_period", p.TargetPeriod()),
		slog.Duration("poll_interval", p.PollInterval()))

	var timer Timer
	var checkC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// deferred requests waiting for the armed coarse check, each one gets its own answer
	pending := 0
	answers := make([]protocol.Message, 0, 2)

	for {
		answers = answers[:0]

		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-requests:
			if !ok {
				g.l.Debug("Request channel closed, stopping governor")
				return nil
			}

			if m != protocol.Request {
				g.l.Debug("Ignoring unexpected message", slog.String("message", m.String()))
				continue
			}

			d, deferred := p.Request(g.clock.Now())
			if !deferred {
				answers = append(answers, d)
				break
			}

			pending++
			if checkC != nil {
				continue
			}

			timer = g.clock.NewTimer(p.PollInterval())
			if timer == nil {
				g.l.Error("Cannot arm coarse check timer")
				return ErrTimerUnavailable
			}
			checkC = timer.C()
			continue
		case <-checkC:
			timer, checkC = nil, nil
			now := g.clock.Now()
			for ; pending > 0; pending-- {
				// only the first check can render, later ones find the pacer out of coarse poll
				answers = append(answers, p.Check(now))
			}
		}

		g.publish(p.Stats())

		for _, d := range answers {
			select {
			case decisions <- d:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (g *Governor) publish(s Stats) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.stats = s
}

// Stats returns counters as of the last decision.
func (g *Governor) Stats() Stats {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.stats
}
