// Package pump drives the emulator one frame at a time, as fast as the frame
// governor allows.
package pump

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"emupace/internal/emulator"
	"emupace/internal/logger"
	"emupace/internal/protocol"
)

type control uint8

const (
	ctlStart control = iota
	ctlPause
	ctlResume
)

// Pump is the render loop. At most one request is outstanding at any time.
// Start, Pause and Resume may be called from any goroutine; loop state itself is
// only touched by the goroutine running Run.
type Pump struct {
	core      emulator.Core
	presenter emulator.Presenter
	input     emulator.Input
	l         *slog.Logger

	// Limit stops Run cleanly after that many frames, 0 means no limit
	Limit uint64

	controlC chan control
	saveC    chan chan<- saveResult
	frames   atomic.Uint64
	paused   atomic.Bool
}

func New(core emulator.Core, presenter emulator.Presenter, input emulator.Input, l *slog.Logger) *Pump {
	if l == nil {
		l = slog.Default()
	}

	return &Pump{
		core:      core,
		presenter: presenter,
		input:     input,
		l:         l,
		controlC:  make(chan control, 8),
		saveC:     make(chan chan<- saveResult),
	}
}

// Start issues the first request. Does nothing if the loop is already running.
func (p *Pump) Start() {
	p.controlC <- ctlStart
}

func (p *Pump) Pause() {
	p.controlC <- ctlPause
}

// Resume restarts the loop if it stalled while paused.
func (p *Pump) Resume() {
	p.controlC <- ctlResume
}

type saveResult struct {
	state []byte
	err   error
}

// Snapshot asks the running loop for the core save state. It is taken between two
// frames, never while the core is advancing. Blocks until Run serves it or ctx is done.
func (p *Pump) Snapshot(ctx context.Context) ([]byte, error) {
	reply := make(chan saveResult, 1)

	select {
	case p.saveC <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.state, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pump) Frames() uint64 {
	return p.frames.Load()
}

func (p *Pump) Paused() bool {
	return p.paused.Load()
}

// Run processes control calls and governor decisions until ctx is done, Limit is
// reached or a collaborator fails. Collaborator errors are returned as is and never
// retried, the loop must not keep requesting frames against a broken core.
func (p *Pump) Run(ctx context.Context, requests chan<- protocol.Message, decisions <-chan protocol.Message) error {
	started := false
	outstanding := false

	request := func() bool {
		select {
		case requests <- protocol.Request:
			outstanding = true
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-p.controlC:
			switch c {
			case ctlStart:
				if started {
					continue
				}
				started = true
				p.l.Debug("Starting render loop")
			case ctlPause:
				p.paused.Store(true)
				p.l.Info("Render loop paused", slog.Uint64("frames", p.Frames()))
				continue
			case ctlResume:
				p.paused.Store(false)
				if !started {
					continue
				}
				p.l.Info("Render loop resumed")
			}

			if !outstanding && !request() {
				return nil
			}
		case reply := <-p.saveC:
			state, err := p.core.SaveState()
			if err != nil {
				p.l.Warn("Cannot snapshot save state", slog.String("error", err.Error()))
			}
			reply <- saveResult{state: state, err: err}
		case d, ok := <-decisions:
			if !ok {
				return nil
			}

			if !d.IsDecision() {
				p.l.Debug("Ignoring unexpected message", slog.String("message", d.String()))
				continue
			}
			outstanding = false

			if d == protocol.Render {
				if p.paused.Load() {
					p.l.Debug("Dropping frame while paused")
					continue
				}

				if err := p.renderFrame(); err != nil {
					return p.fail(err)
				}

				if p.Limit > 0 && p.Frames() >= p.Limit {
					p.l.Info("Frame limit reached", slog.Uint64("frames", p.Frames()))
					return nil
				}
			}

			if !request() {
				return nil
			}
		}
	}
}

func (p *Pump) fail(err error) error {
	p.l.Error("Stopping render loop: "+err.Error(), slog.Uint64("frames", p.Frames()), logger.GetSourceAttr(1))
	return err
}

func (p *Pump) renderFrame() error {
	key := p.input.KeyState()

	f, err := p.core.AdvanceFrame(key)
	if err != nil {
		return fmt.Errorf("advance frame: %w", err)
	}

	if err := p.presenter.Present(f); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}

	p.frames.Add(1)
	return nil
}
