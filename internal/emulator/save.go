package emulator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SaveFileName names a save written at t, e.g. 1700000000000.sav
func SaveFileName(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10) + ".sav"
}

// WriteSave stores the core save state in dir and returns the file path.
func WriteSave(dir string, c Core, now time.Time) (string, error) {
	state, err := c.SaveState()
	if err != nil {
		return "", err
	}

	return WriteSaveState(dir, state, now)
}

// WriteSaveState writes a state already taken from the core.
func WriteSaveState(dir string, state []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create save directory: %w", err)
	}

	p := filepath.Join(dir, SaveFileName(now))
	if err := os.WriteFile(p, state, 0o644); err != nil {
		return "", fmt.Errorf("cannot write save file: %w", err)
	}

	return p, nil
}

// ReadSave restores the core from a save file.
func ReadSave(path string, c Core) error {
	state, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read save file: %w", err)
	}

	return c.LoadState(state)
}
