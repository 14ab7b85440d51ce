// Package display presents emulator frames.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"emupace/internal/emulator"
)

// Palette maps shades to colours, lightest first
var Palette = [emulator.Shades]lipgloss.Color{"#FFFFFF", "#AAAAAA", "#555555", "#000000"}

const (
	upperHalf   = "▀"
	cursorHome  = "\x1b[H"
	clearScreen = "\x1b[2J"
)

// Terminal draws frames with half-block characters, two pixel rows per text line.
// Scale n keeps every n-th pixel in both directions.
type Terminal struct {
	w     io.Writer
	scale int

	// cells[top][bottom] is a pre-rendered half-block for that pair of shades
	cells [emulator.Shades][emulator.Shades]string

	// no colour support detected on w, cells would all draw the same glyph
	colorless bool

	lock    sync.Locker
	sb      strings.Builder
	cleared bool
}

func NewTerminal(w io.Writer, scale int) *Terminal {
	if scale < 1 {
		scale = 1
	}

	t := &Terminal{
		w:     w,
		scale: scale,
		lock:  &sync.Mutex{},
	}

	r := lipgloss.NewRenderer(w)
	t.colorless = r.ColorProfile() == termenv.Ascii
	for top := range Palette {
		for bottom := range Palette {
			t.cells[top][bottom] = r.NewStyle().
				Foreground(Palette[top]).
				Background(Palette[bottom]).
				Render(upperHalf)
		}
	}

	return t
}

// Colorless reports whether the writer has no colour support, e.g. it is not a terminal
// or NO_COLOR is set. Frames still render but every pixel looks the same.
func (t *Terminal) Colorless() bool {
	return t.colorless
}

// Size returns number of text columns and lines used per frame
func (t *Terminal) Size() (cols, lines int) {
	cols = (emulator.Width + t.scale - 1) / t.scale
	rows := (emulator.Height + t.scale - 1) / t.scale
	return cols, (rows + 1) / 2
}

func (t *Terminal) Present(f emulator.Frame) error {
	if len(f) != emulator.Width*emulator.Height {
		return fmt.Errorf("frame has %d pixels, expected %d", len(f), emulator.Width*emulator.Height)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.sb.Reset()
	if !t.cleared {
		t.sb.WriteString(clearScreen)
		t.cleared = true
	}
	t.sb.WriteString(cursorHome)

	step := t.scale
	for y := 0; y < emulator.Height; y += 2 * step {
		for x := 0; x < emulator.Width; x += step {
			top := f.At(x, y) % emulator.Shades
			bottom := top
			if y+step < emulator.Height {
				bottom = f.At(x, y+step) % emulator.Shades
			}
			t.sb.WriteString(t.cells[top][bottom])
		}
		t.sb.WriteByte('\n')
	}

	_, err := io.WriteString(t.w, t.sb.String())
	return err
}
