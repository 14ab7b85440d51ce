package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emupace/internal/config"
	"emupace/internal/display"
	"emupace/internal/emulator"
	"emupace/internal/governor"
	"emupace/internal/pump"
)

type sessionArgs struct {
	bootPath  string
	cartPath  string
	savePath  string
	maxFrames uint64
	hold      emulator.KeyState
	holdFor   time.Duration
}

func loadCore(c emulator.Core, a sessionArgs) error {
	boot, err := os.ReadFile(a.bootPath)
	if err != nil {
		return fmt.Errorf("cannot read boot image: %w", err)
	}

	if err := c.LoadBoot(boot); err != nil {
		return fmt.Errorf("cannot load boot image: %w", err)
	}

	cart, err := os.ReadFile(a.cartPath)
	if err != nil {
		return fmt.Errorf("cannot read cartridge: %w", err)
	}

	if err := c.LoadCartridge(cart); err != nil {
		return fmt.Errorf("cannot load cartridge: %w", err)
	}

	if a.savePath != "" {
		if err := emulator.ReadSave(a.savePath, c); err != nil {
			return err
		}
		slog.Info("Restored save state", slog.String("path", a.savePath))
	}

	return nil
}

func runSession(cfg config.Config, a sessionArgs) error {
	core := emulator.NewTestPattern()
	if err := loadCore(core, a); err != nil {
		return err
	}

	presenter := choosePresenter(cfg, os.Stdout)
	meter := display.NewMeter(presenter, cfg.MeterEvery, slog.Default())

	input, release := holdInput(a.hold, a.holdFor)
	defer release()

	g, err := governor.New(cfg.Governor(), governor.SystemClock(), slog.Default())
	if err != nil {
		return err
	}

	p := pump.New(core, meter, input, slog.Default())
	p.Limit = a.maxFrames

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go handleSignals(ctx, p, cfg.SaveDir)

	slog.Info("Starting emulation",
		slog.String("refresh", cfg.Refresh.String()),
		slog.String("poll", cfg.Poll.String()),
		slog.Bool("headless", cfg.Headless))

	err = pump.Play(ctx, g, p)

	s := g.Stats()
	slog.Info("Emulation stopped",
		slog.Uint64("frames", p.Frames()),
		slog.Duration("max_overshoot", s.MaxOvershoot))

	if err != nil {
		return err
	}

	if cfg.SaveDir != "" {
		path, err := emulator.WriteSave(cfg.SaveDir, core, time.Now())
		if err != nil {
			return err
		}
		slog.Info("Saved state", slog.String("path", path))
	}

	return nil
}

// holdInput presses key and releases it after d, or never when d is 0.
// The returned func cancels a pending release.
func holdInput(key emulator.KeyState, d time.Duration) (*emulator.Latch, func()) {
	input := emulator.NewLatch()
	if key == emulator.KeyNone {
		return input, func() {}
	}

	input.Press(key)
	if d <= 0 {
		return input, func() {}
	}

	t := time.AfterFunc(d, func() {
		input.Release()
		slog.Debug("Released held button", slog.String("key", key.String()))
	})
	return input, func() { t.Stop() }
}

// choosePresenter draws to w unless headless. Without colour support every pixel
// would draw the same glyph, so it falls back to headless with a warning.
func choosePresenter(cfg config.Config, w io.Writer) emulator.Presenter {
	if cfg.Headless {
		return display.Discard{}
	}

	term := display.NewTerminal(w, cfg.Scale)
	if term.Colorless() {
		slog.Warn("Output has no colour support, running headless; set CLICOLOR_FORCE=1 to draw anyway")
		return display.Discard{}
	}

	return term
}

// handleSignals toggles pause on SIGUSR1 and writes a save on SIGUSR2
func handleSignals(ctx context.Context, p *pump.Pump, saveDir string) {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigC)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigC:
			if sig == syscall.SIGUSR2 {
				if _, err := saveNow(ctx, p, saveDir); err != nil {
					slog.Error("Cannot save state: " + err.Error())
				}
				continue
			}

			if p.Paused() {
				p.Resume()
			} else {
				p.Pause()
			}
		}
	}
}

// saveNow snapshots the running core into dir, the working directory when empty.
func saveNow(ctx context.Context, p *pump.Pump, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}

	state, err := p.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	path, err := emulator.WriteSaveState(dir, state, time.Now())
	if err != nil {
		return "", err
	}

	slog.Info("Saved state", slog.String("path", path), slog.Uint64("frames", p.Frames()))
	return path, nil
}

func runProbe(cfg config.Config, d time.Duration) error {
	core := emulator.NewTestPattern()
	// the test pattern only needs non-empty images
	if err := core.LoadBoot([]byte{0}); err != nil {
		return err
	}
	if err := core.LoadCartridge([]byte("probe")); err != nil {
		return err
	}

	g, err := governor.New(cfg.Governor(), governor.SystemClock(), slog.Default())
	if err != nil {
		return err
	}

	meter := display.NewMeter(display.Discard{}, cfg.MeterEvery, slog.Default())
	p := pump.New(core, meter, emulator.NewLatch(), slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	start := time.Now()
	if err := pump.Play(ctx, g, p); err != nil {
		return err
	}
	elapsed := time.Since(start)

	s := g.Stats()
	frames := p.Frames()
	var mean time.Duration
	if frames > 0 {
		mean = elapsed / time.Duration(frames)
	}

	fmt.Printf("frames:        %d\n", frames)
	fmt.Printf("target period: %v\n", cfg.Refresh.Period())
	fmt.Printf("mean period:   %v\n", mean)
	fmt.Printf("fps:           %.2f\n", float64(frames)/elapsed.Seconds())
	fmt.Printf("max overshoot: %v\n", s.MaxOvershoot)
	fmt.Printf("coarse checks: %d\n", s.CoarseChecks)
	fmt.Printf("fine checks:   %d\n", s.FineChecks)

	return nil
}
