package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"emupace/internal/config"
	"emupace/internal/display"
	"emupace/internal/emulator"
	"emupace/internal/protocol"
	"emupace/internal/pump"
	"emupace/internal/rate"
)

func testConfig() config.Config {
	return config.Config{
		Refresh:    200,
		Poll:       1000,
		Headless:   true,
		Scale:      1,
		MeterEvery: 2,
	}
}

func writeImage(t *testing.T, dir, name, body string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return p
}

func TestPacingApply(t *testing.T) {
	cfg := testConfig()
	refresh := rate.Rate(50)

	p := Pacing{Refresh: &refresh}
	p.apply(&cfg)

	if cfg.Refresh != 50 || cfg.Poll != 1000 {
		t.Fatalf("unexpected rates %v %v", cfg.Refresh, cfg.Poll)
	}
}

func TestRunResolve(t *testing.T) {
	on, off := true, false
	scale := 3

	tests := []struct {
		name     string
		cfg      bool
		flag     *bool
		headless bool
	}{
		{name: "flag unset keeps config on", cfg: true, headless: true},
		{name: "flag unset keeps config off", cfg: false, headless: false},
		{name: "no-headless overrides config", cfg: true, flag: &off, headless: false},
		{name: "headless overrides config", cfg: false, flag: &on, headless: true},
	}

	for _, tt := range tests {
		cfg := testConfig()
		cfg.Headless = tt.cfg

		got := (&Run{Headless: tt.flag, Scale: &scale}).resolve(cfg)
		if got.Headless != tt.headless {
			t.Errorf("%s: headless = %v, want %v", tt.name, got.Headless, tt.headless)
		}
		if got.Scale != 3 || got.Refresh != 200 {
			t.Errorf("%s: unexpected config %+v", tt.name, got)
		}
	}
}

func TestRunParsesNegatedHeadless(t *testing.T) {
	var cli struct {
		Run *Run `cmd:""`
	}

	dir := t.TempDir()
	boot := writeImage(t, dir, "boot.bin", "boot")
	cart := writeImage(t, dir, "game.gb", "cartridge")

	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	if _, err := parser.Parse([]string{"run", "--no-headless", boot, cart}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cli.Run.Headless == nil || *cli.Run.Headless {
		t.Fatalf("headless = %v, want explicit false", cli.Run.Headless)
	}
}

func TestValidate(t *testing.T) {
	zero := 0
	if err := (&Run{Scale: &zero}).Validate(); err == nil {
		t.Fatalf("expected error for zero scale")
	}
	if err := (&Run{HoldFor: -time.Second}).Validate(); err == nil {
		t.Fatalf("expected error for negative hold-for")
	}
	if err := (&Probe{}).Validate(); err == nil {
		t.Fatalf("expected error for zero duration")
	}
	if err := (&Probe{Duration: time.Second}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRunSessionWritesSave(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.SaveDir = filepath.Join(dir, "saves")

	args := sessionArgs{
		bootPath:  writeImage(t, dir, "boot.bin", "boot"),
		cartPath:  writeImage(t, dir, "game.gb", "cartridge"),
		maxFrames: 3,
		hold:      emulator.KeyRight,
	}

	if err := runSession(cfg, args); err != nil {
		t.Fatalf("runSession: %v", err)
	}

	saves, err := os.ReadDir(cfg.SaveDir)
	if err != nil {
		t.Fatalf("read save dir: %v", err)
	}
	if len(saves) != 1 || !strings.HasSuffix(saves[0].Name(), ".sav") {
		t.Fatalf("unexpected saves %v", saves)
	}

	// resume from the save and run a few more frames
	core := emulator.NewTestPattern()
	args.savePath = filepath.Join(cfg.SaveDir, saves[0].Name())
	if err := loadCore(core, args); err != nil {
		t.Fatalf("loadCore: %v", err)
	}
	if core.Frames() != 3 {
		t.Fatalf("restored %d frames, want 3", core.Frames())
	}
}

func TestRunSessionMissingCartridge(t *testing.T) {
	dir := t.TempDir()

	args := sessionArgs{
		bootPath: writeImage(t, dir, "boot.bin", "boot"),
		cartPath: filepath.Join(dir, "missing.gb"),
	}

	if err := runSession(testConfig(), args); err == nil {
		t.Fatalf("expected error for missing cartridge")
	}
}

func TestRunProbe(t *testing.T) {
	if err := runProbe(testConfig(), 50*time.Millisecond); err != nil {
		t.Fatalf("runProbe: %v", err)
	}
}

func TestChoosePresenter(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	cfg := testConfig()

	if _, ok := choosePresenter(cfg, &bytes.Buffer{}).(display.Discard); !ok {
		t.Fatalf("headless config must discard frames")
	}

	cfg.Headless = false
	t.Setenv("CLICOLOR_FORCE", "0")
	if _, ok := choosePresenter(cfg, &bytes.Buffer{}).(display.Discard); !ok {
		t.Fatalf("output without colour support must fall back to headless")
	}

	t.Setenv("CLICOLOR_FORCE", "1")
	if _, ok := choosePresenter(cfg, &bytes.Buffer{}).(*display.Terminal); !ok {
		t.Fatalf("forced colour must draw to the terminal")
	}
}

func TestHoldInput(t *testing.T) {
	input, release := holdInput(emulator.KeyStart, 0)
	release()
	if input.KeyState() != emulator.KeyStart {
		t.Fatalf("key = %s, want held start", input.KeyState())
	}

	input, release = holdInput(emulator.KeyA, 10*time.Millisecond)
	defer release()
	if input.KeyState() != emulator.KeyA {
		t.Fatalf("key = %s, want a before release", input.KeyState())
	}

	deadline := time.Now().Add(time.Second)
	for input.KeyState() != emulator.KeyNone {
		if time.Now().After(deadline) {
			t.Fatalf("held key was never released")
		}
		time.Sleep(time.Millisecond)
	}

	input, release = holdInput(emulator.KeyB, time.Hour)
	release()
	if input.KeyState() != emulator.KeyB {
		t.Fatalf("cancelled release must keep the key held")
	}
}

func TestSaveNow(t *testing.T) {
	core := emulator.NewTestPattern()
	args := sessionArgs{
		bootPath: writeImage(t, t.TempDir(), "boot.bin", "boot"),
		cartPath: writeImage(t, t.TempDir(), "game.gb", "cartridge"),
	}
	if err := loadCore(core, args); err != nil {
		t.Fatalf("loadCore: %v", err)
	}

	p := pump.New(core, display.Discard{}, emulator.NewLatch(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, make(chan protocol.Message, 1), make(chan protocol.Message, 1))
	}()
	defer func() {
		cancel()
		<-done
	}()

	dir := filepath.Join(t.TempDir(), "saves")
	path, err := saveNow(ctx, p, dir)
	if err != nil {
		t.Fatalf("saveNow: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, ".sav") {
		t.Fatalf("unexpected save path %s", path)
	}

	restored := emulator.NewTestPattern()
	args.savePath = path
	if err := loadCore(restored, args); err != nil {
		t.Fatalf("restore: %v", err)
	}
}
