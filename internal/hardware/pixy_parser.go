package hardware

import (
	"errors"
	"fmt"
	"io"

	"pixybot/internal/vision"
)

// Pixy (CMUcam5) UART block protocol. All words are little-endian uint16.
//
//	frame:  0xaa55 <block> <block> ...
//	block:  0xaa55 checksum signature x y width height
//	cc:     0xaa56 checksum signature x y width height angle
const (
	pixySync        uint16 = 0xaa55
	pixyColorSync   uint16 = 0xaa56
	pixySyncSwapped uint16 = 0x55aa
)

// ErrPixyChecksum is returned for a block whose checksum does not match.
var ErrPixyChecksum = errors.New("pixy block checksum mismatch")

// PixyBlock is one detected object.
type PixyBlock struct {
	Signature uint16
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	Angle     int16
	ColorCode bool
}

// Observation converts the block for the vision mailbox.
func (b PixyBlock) Observation() vision.Observation {
	return vision.Observation{
		X:         b.X,
		Y:         b.Y,
		Width:     b.Width,
		Height:    b.Height,
		Signature: b.Signature,
	}
}

// PixyParser decodes blocks from a Pixy UART byte stream.
type PixyParser struct {
	r      io.ByteReader
	synced bool
}

func NewPixyParser(r io.ByteReader) *PixyParser {
	return &PixyParser{r: r}
}

func (p *PixyParser) word() (uint16, error) {
	lo, err := p.r.ReadByte()
	if err != nil {
		return 0, err
	}
	hi, err := p.r.ReadByte()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// findFrame scans for two consecutive sync words and returns the second,
// which is the sync of the frame's first block.
func (p *PixyParser) findFrame() (uint16, error) {
	last := uint16(0xffff)
	for {
		w, err := p.word()
		if err != nil {
			return 0, err
		}
		switch {
		case last == pixySync && (w == pixySync || w == pixyColorSync):
			return w, nil
		case w == pixySyncSwapped:
			// Off by one byte: drop a byte to realign.
			if _, err := p.r.ReadByte(); err != nil {
				return 0, err
			}
		}
		last = w
	}
}

// Next returns the next block and whether it is the first block of a new
// frame. The first block of a frame is the largest object Pixy sees.
// A checksum error leaves the parser in sync; any other framing problem
// makes it rescan for the next frame.
func (p *PixyParser) Next() (PixyBlock, bool, error) {
	var (
		sync       uint16
		frameStart bool
		err        error
	)

	if !p.synced {
		if sync, err = p.findFrame(); err != nil {
			return PixyBlock{}, false, err
		}
		p.synced = true
		frameStart = true
	} else {
		if sync, err = p.word(); err != nil {
			return PixyBlock{}, false, err
		}
		if sync != pixySync && sync != pixyColorSync {
			p.synced = false
			return PixyBlock{}, false, fmt.Errorf("pixy stream lost sync (got %#04x)", sync)
		}
	}

	checksum, err := p.word()
	if err != nil {
		return PixyBlock{}, false, err
	}
	if !frameStart && sync == pixySync && (checksum == pixySync || checksum == pixyColorSync) {
		// Two syncs in a row: the first marked a new frame.
		sync = checksum
		frameStart = true
		if checksum, err = p.word(); err != nil {
			return PixyBlock{}, false, err
		}
	}

	var fields [5]uint16
	for i := range fields {
		if fields[i], err = p.word(); err != nil {
			return PixyBlock{}, false, err
		}
	}
	block := PixyBlock{
		Signature: fields[0],
		X:         fields[1],
		Y:         fields[2],
		Width:     fields[3],
		Height:    fields[4],
	}
	sum := fields[0] + fields[1] + fields[2] + fields[3] + fields[4]

	if sync == pixyColorSync {
		angle, err := p.word()
		if err != nil {
			return PixyBlock{}, false, err
		}
		block.Angle = int16(angle)
		block.ColorCode = true
		sum += angle
	}

	if sum != checksum {
		return PixyBlock{}, frameStart, ErrPixyChecksum
	}
	return block, frameStart, nil
}
