package emulator

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const patternMagic = "EPTS"

// TestPattern is a stand-in Core producing a deterministic scrolling pattern.
// The pattern is seeded by the cartridge checksum and scrolls with the held key,
// so pacing and presentation can be exercised without a real machine.
type TestPattern struct {
	bootLoaded bool
	cartLoaded bool

	seed  uint32
	frame uint64
	x, y  int

	buf Frame
}

func NewTestPattern() *TestPattern {
	return &TestPattern{buf: make(Frame, Width*Height)}
}

func (p *TestPattern) LoadBoot(image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("empty boot image")
	}

	p.bootLoaded = true
	return nil
}

func (p *TestPattern) LoadCartridge(image []byte) error {
	if !p.bootLoaded {
		return fmt.Errorf("load cartridge: %w", ErrNotLoaded)
	}

	if len(image) == 0 {
		return fmt.Errorf("empty cartridge image")
	}

	p.seed = crc32.ChecksumIEEE(image)
	p.cartLoaded = true
	p.frame, p.x, p.y = 0, 0, 0
	return nil
}

func (p *TestPattern) AdvanceFrame(key KeyState) (Frame, error) {
	if !p.cartLoaded {
		return nil, fmt.Errorf("advance frame: %w", ErrNotLoaded)
	}

	switch key {
	case KeyUp:
		p.y--
	case KeyDown:
		p.y++
	case KeyLeft:
		p.x--
	case KeyRight:
		p.x++
	}

	p.frame++
	shift := int(p.frame) + int(p.seed%Width)
	for row := 0; row < Height; row++ {
		for col := 0; col < Width; col++ {
			v := ((col+p.x+shift)>>3 ^ (row+p.y)>>3) & (Shades - 1)
			p.buf[row*Width+col] = uint8(v)
		}
	}

	return p.buf, nil
}

// Frames returns number of frames advanced since cartridge load or state restore.
func (p *TestPattern) Frames() uint64 {
	return p.frame
}

func (p *TestPattern) SaveState() ([]byte, error) {
	if !p.cartLoaded {
		return nil, fmt.Errorf("save state: %w", ErrNotLoaded)
	}

	b := make([]byte, 0, len(patternMagic)+4+8+4+4)
	b = append(b, patternMagic...)
	b = binary.BigEndian.AppendUint32(b, p.seed)
	b = binary.BigEndian.AppendUint64(b, p.frame)
	b = binary.BigEndian.AppendUint32(b, uint32(int32(p.x)))
	b = binary.BigEndian.AppendUint32(b, uint32(int32(p.y)))
	return b, nil
}

func (p *TestPattern) LoadState(state []byte) error {
	if !p.cartLoaded {
		return fmt.Errorf("load state: %w", ErrNotLoaded)
	}

	if len(state) != len(patternMagic)+4+8+4+4 || string(state[:len(patternMagic)]) != patternMagic {
		return ErrBadSave
	}

	state = state[len(patternMagic):]
	if seed := binary.BigEndian.Uint32(state); seed != p.seed {
		return fmt.Errorf("%w: state belongs to another cartridge", ErrBadSave)
	}

	p.frame = binary.BigEndian.Uint64(state[4:])
	p.x = int(int32(binary.BigEndian.Uint32(state[12:])))
	p.y = int(int32(binary.BigEndian.Uint32(state[16:])))
	return nil
}
