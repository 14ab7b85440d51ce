// Package emulator declares the collaborators the render pump drives: the
// emulator core, the input source and the frame presenter.
package emulator

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	Width  = 160
	Height = 144
	// Shades is the number of distinct pixel values a frame may hold
	Shades = 4
)

var (
	ErrNotLoaded = errors.New("boot image and cartridge must be loaded first")
	ErrBadSave   = errors.New("malformed save state")
)

// Frame is row-major pixel buffer of Width*Height shades in range [0, Shades).
// It belongs to the core that produced it; presenters must not keep it after Present returns.
type Frame []uint8

func (f Frame) At(x, y int) uint8 {
	return f[y*Width+x]
}

// Core is the emulator: CPU, PPU, memory and cartridge handling live behind it.
type Core interface {
	LoadBoot(image []byte) error
	LoadCartridge(image []byte) error
	// AdvanceFrame runs the machine for one frame with the given input held
	AdvanceFrame(key KeyState) (Frame, error)
	SaveState() ([]byte, error)
	LoadState(state []byte) error
}

type Presenter interface {
	Present(f Frame) error
}

type Input interface {
	KeyState() KeyState
}

// KeyState identifies the single button held during a frame
type KeyState int8

const (
	KeyNone   KeyState = -1
	KeyUp     KeyState = 1
	KeyLeft   KeyState = 2
	KeyDown   KeyState = 3
	KeyRight  KeyState = 4
	KeyA      KeyState = 5
	KeyB      KeyState = 6
	KeyStart  KeyState = 7
	KeySelect KeyState = 8
)

var keyNames = map[KeyState]string{
	KeyNone:   "none",
	KeyUp:     "up",
	KeyLeft:   "left",
	KeyDown:   "down",
	KeyRight:  "right",
	KeyA:      "a",
	KeyB:      "b",
	KeyStart:  "start",
	KeySelect: "select",
}

func (k KeyState) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}

	return fmt.Sprintf("KeyState(%d)", int8(k))
}

func (k *KeyState) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for key, n := range keyNames {
		if n == name {
			*k = key
			return nil
		}
	}

	return fmt.Errorf("unknown key %q, must be one of up, down, left, right, a, b, start, select, none", name)
}

// Latch is Input that reports the last pressed key until it is released.
// Safe for concurrent use.
type Latch struct {
	key atomic.Int32
}

func NewLatch() *Latch {
	l := &Latch{}
	l.key.Store(int32(KeyNone))
	return l
}

func (l *Latch) Press(k KeyState) {
	l.key.Store(int32(k))
}

func (l *Latch) Release() {
	l.key.Store(int32(KeyNone))
}

func (l *Latch) KeyState() KeyState {
	return KeyState(l.key.Load())
}
