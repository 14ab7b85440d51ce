package main

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/alecthomas/kong"

	"emupace/internal/config"
	"emupace/internal/emulator"
	"emupace/internal/logger"
	"emupace/internal/rate"
)

// Pacing flags shared by commands. Unset flags fall back to config file and environment.
type Pacing struct {
	Refresh *rate.Rate `help:"Target frame rate, e.g. 59.7 or 60hz" placeholder:"HZ"`
	Poll    *rate.Rate `help:"Coarse check rate of the frame governor, must be faster than refresh" placeholder:"HZ"`
}

func (p *Pacing) apply(cfg *config.Config) {
	if p.Refresh != nil {
		cfg.Refresh = *p.Refresh
	}

	if p.Poll != nil {
		cfg.Poll = *p.Poll
	}
}

type Run struct {
	Pacing

	Boot      string            `arg:"" type:"existingfile" help:"Boot image"`
	Cartridge string            `arg:"" type:"existingfile" help:"Cartridge image"`
	LoadSave  string            `type:"existingfile" help:"Restore save state before starting" placeholder:"FILE"`
	SaveDir   *string           `help:"Write save state to this directory on exit" placeholder:"DIR"`
	Headless  *bool             `help:"Do not draw frames, only measure frame rate" negatable:""`
	Scale     *int              `help:"Draw every n-th pixel" placeholder:"N"`
	Frames    uint64            `help:"Stop after this many frames, 0 runs until interrupted" default:"0" placeholder:"N"`
	Hold      emulator.KeyState `help:"Button held from the start: up, down, left, right, a, b, start, select or none" default:"none"`
	HoldFor   time.Duration     `help:"Release the held button after this long, 0 holds it for the whole run" default:"0s"`
}

func (r *Run) Validate() error {
	if r.Scale != nil && *r.Scale < 1 {
		return fmt.Errorf("scale must be positive")
	}

	if r.HoldFor < 0 {
		return fmt.Errorf("hold-for must not be negative")
	}

	return nil
}

// resolve layers flags given on the command line over the loaded config.
func (r *Run) resolve(cfg config.Config) config.Config {
	r.apply(&cfg)
	if r.SaveDir != nil {
		cfg.SaveDir = *r.SaveDir
	}
	if r.Headless != nil {
		cfg.Headless = *r.Headless
	}
	if r.Scale != nil {
		cfg.Scale = *r.Scale
	}

	return cfg
}

func (r *Run) Run(cfg config.Config) error {
	cfg = r.resolve(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	return runSession(cfg, sessionArgs{
		bootPath:  r.Boot,
		cartPath:  r.Cartridge,
		savePath:  r.LoadSave,
		maxFrames: r.Frames,
		hold:      r.Hold,
		holdFor:   r.HoldFor,
	})
}

type Probe struct {
	Pacing

	Duration time.Duration `help:"How long to measure" default:"5s"`
}

func (p *Probe) Validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	return nil
}

func (p *Probe) Run(cfg config.Config) error {
	p.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	return runProbe(cfg, p.Duration)
}

func main() {
	var cli struct {
		Config string `help:"Config file, defaults to ~/.config/emupace/config.yml" placeholder:"FILE" type:"path"`

		Run   *Run   `cmd:"" default:"withargs" help:"Run a cartridge with frames paced to the target refresh rate"`
		Probe *Probe `cmd:"" help:"Measure frame pacing against a built-in test pattern without drawing"`
	}

	ctx := kong.Parse(&cli,
		kong.Name("emupace"),
		kong.Description("Emulator front-end with a frame governor pacing rendering to a fixed refresh rate"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, thisFile, _, _ := runtime.Caller(0)
	err = logger.Setup(logger.Options{
		Format:   cfg.LogFormat,
		Level:    cfg.LogLevel,
		RootPath: path.Dir(path.Dir(thisFile)),
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.ConfigPath != "" {
		slog.Debug("Loaded config", slog.String("path", cfg.ConfigPath))
	}

	err = ctx.Run(cfg)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
