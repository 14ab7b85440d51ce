package display

import (
	"log/slog"
	"sync"
	"time"

	"emupace/internal/emulator"
)

// Discard accepts frames and drops them, for headless runs
type Discard struct{}

func (Discard) Present(emulator.Frame) error {
	return nil
}

// MeterReport summarizes presentation intervals of one measurement window
type MeterReport struct {
	Frames       uint64
	FPS          float64
	MeanInterval time.Duration
	MaxInterval  time.Duration
}

// Meter wraps a presenter and measures how often it is called.
// Every Every frames it logs a report and starts a new window.
type Meter struct {
	next  emulator.Presenter
	every uint64
	l     *slog.Logger
	now   func() time.Time

	lock        sync.Locker
	total       uint64
	window      uint64
	windowStart time.Time
	last        time.Time
	maxInterval time.Duration
	lastReport  MeterReport
}

func NewMeter(next emulator.Presenter, every uint64, l *slog.Logger) *Meter {
	if l == nil {
		l = slog.Default()
	}

	if every == 0 {
		every = 60
	}

	return &Meter{
		next:  next,
		every: every,
		l:     l,
		now:   time.Now,
		lock:  &sync.Mutex{},
	}
}

func (m *Meter) Present(f emulator.Frame) error {
	if err := m.next.Present(f); err != nil {
		return err
	}

	var report *MeterReport

	func() {
		m.lock.Lock()
		defer m.lock.Unlock()

		now := m.now()
		m.total++

		if m.last.IsZero() {
			m.windowStart, m.last = now, now
			return
		}

		if iv := now.Sub(m.last); iv > m.maxInterval {
			m.maxInterval = iv
		}
		m.last = now
		m.window++

		if m.window < m.every {
			return
		}

		elapsed := now.Sub(m.windowStart)
		r := MeterReport{
			Frames:       m.total,
			MeanInterval: elapsed / time.Duration(m.window),
			MaxInterval:  m.maxInterval,
		}
		if elapsed > 0 {
			r.FPS = float64(m.window) / elapsed.Seconds()
		}

		m.lastReport = r
		m.window, m.maxInterval, m.windowStart = 0, 0, now
		report = &r
	}()

	if report != nil {
		m.l.Info("Frame rate",
			slog.Uint64("frames", report.Frames),
			slog.Float64("fps", report.FPS),
			slog.Duration("mean_interval", report.MeanInterval),
			slog.Duration("max_interval", report.MaxInterval))
	}

	return nil
}

// Report returns the last completed measurement window, zero before the first one
func (m *Meter) Report() MeterReport {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.lastReport
}

func (m *Meter) Frames() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.total
}
