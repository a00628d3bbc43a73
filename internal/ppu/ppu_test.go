package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statMode(p *PPU) byte { return p.CPURead(0xFF41) & 0x03 }

// tickUntilMode advances one dot at a time until STAT reports the wanted
// mode, or the dot budget runs out.
func tickUntilMode(p *PPU, want byte, budget int) bool {
	for i := 0; i < budget; i++ {
		if statMode(p) == want {
			return true
		}
		p.Tick(1)
	}
	return statMode(p) == want
}

func TestPPUModeSequenceOneLine(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x80)

	require.Equal(t, byte(modeOAM), statMode(p), "expected OAM mode right after LCD on")
	require.True(t, tickUntilMode(p, modeXFER, oamDots+1), "never entered XFER within a scanline's OAM budget")
	require.True(t, tickUntilMode(p, modeHBlank, dotsPerLine), "never entered HBlank within a line")
	require.True(t, tickUntilMode(p, modeOAM, dotsPerLine), "never returned to OAM on the next line")
	assert.Equal(t, byte(1), p.CPURead(0xFF44), "expected LY=1 at start of second line")
}

func TestPPULineTotalsExactly456Dots(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x80)
	for line := 0; line < 3; line++ {
		startLY := p.CPURead(0xFF44)
		for i := 0; i < dotsPerLine; i++ {
			p.Tick(1)
		}
		assert.Equalf(t, startLY+1, p.CPURead(0xFF44), "line %d: expected LY to advance by 1 after %d dots", line, dotsPerLine)
	}
}

func TestPPUVBlankAndSTATOnVBlank(t *testing.T) {
	var got []int
	p := New(func(bit int) { got = append(got, bit) })
	p.CPUWrite(0xFF41, 1<<4)
	p.CPUWrite(0xFF40, 0x80)

	p.Tick(yres * dotsPerLine)

	vb, st := 0, 0
	for _, b := range got {
		if b == 0 {
			vb++
		} else if b == 1 {
			st++
		}
	}
	assert.Positive(t, vb, "expected at least one VBlank IRQ at LY=144")
	assert.Positive(t, st, "expected STAT IRQ on VBlank when enabled")
	assert.Equal(t, byte(modeVBlank), statMode(p), "expected VBlank mode at LY=144")
}

func TestPPUFrameWraps154Lines(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x80)
	p.Tick(linesPerFrm * dotsPerLine)
	assert.Equal(t, byte(0), p.CPURead(0xFF44), "expected LY to wrap to 0 after a full frame")
	assert.Equal(t, byte(modeOAM), statMode(p), "expected OAM mode at start of new frame")
}

func TestSTATHBlankAndLYCCoincidence(t *testing.T) {
	var got []int
	p := New(func(bit int) { got = append(got, bit) })
	p.CPUWrite(0xFF41, (1<<3)|(1<<5)|(1<<6))
	p.CPUWrite(0xFF45, 2)
	p.CPUWrite(0xFF40, 0x80)

	require.True(t, tickUntilMode(p, modeHBlank, dotsPerLine), "never entered HBlank on line 0")
	hblankStats := 0
	for _, b := range got {
		if b == 1 {
			hblankStats++
		}
	}
	assert.Positive(t, hblankStats, "expected STAT IRQ on HBlank when enabled")

	got = got[:0]
	p.Tick(2 * dotsPerLine)
	hasLYC := false
	for _, b := range got {
		if b == 1 {
			hasLYC = true
			break
		}
	}
	assert.True(t, hasLYC, "expected STAT IRQ on LYC coincidence at LY=2")
}

func TestFIFONeverExceedsCapacity(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x91) // LCD+BG on
	for i := 0; i < dotsPerLine*3; i++ {
		p.Tick(1)
		require.LessOrEqualf(t, p.fifo.Len(), 16, "fifo exceeded capacity")
	}
}

func TestXFERProducesExactly160Pixels(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x91)
	tickUntilMode(p, modeXFER, oamDots+1)
	tickUntilMode(p, modeHBlank, dotsPerLine)
	assert.Equal(t, xres, p.pushedX, "expected exactly xres pixels pushed")
}

func TestScanOAMCapsAtTenSortedByX(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x82) // LCD+sprites on, 8x8 sprites
	// 12 sprites all visible on line 10, descending X so sort order is observable.
	for i := 0; i < 12; i++ {
		off := i * 4
		p.oam[off] = 16 + 10
		p.oam[off+1] = byte(100 - i)
		p.oam[off+2] = byte(i)
		p.oam[off+3] = 0
	}
	p.ly = 10
	p.scanOAM()

	require.Len(t, p.lineSprites, 10)
	for i := 1; i < len(p.lineSprites); i++ {
		assert.LessOrEqualf(t, p.lineSprites[i-1].attr.X, p.lineSprites[i].attr.X, "sprites not sorted ascending by X at %d", i)
	}
}

func TestScanOAMStableTieBreakOnEqualX(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x82)
	for i := 0; i < 3; i++ {
		off := i * 4
		p.oam[off] = 16 + 5
		p.oam[off+1] = 50 // identical X
		p.oam[off+2] = byte(i)
		p.oam[off+3] = 0
	}
	p.ly = 5
	p.scanOAM()

	require.Len(t, p.lineSprites, 3)
	for i, ls := range p.lineSprites {
		assert.Equalf(t, i, ls.oamIdx, "expected OAM scan order preserved on X tie, index %d", i)
	}
}

func TestScrollXOffsetProducesExactPixelCountAndFifoX(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF47, 0xE4) // identity BG palette
	p.CPUWrite(0xFF43, 3)    // SCX=3
	p.CPUWrite(0xFF40, 0x91) // LCD+BG on, all-zero VRAM/tile map

	tickUntilMode(p, modeXFER, oamDots+1)
	tickUntilMode(p, modeHBlank, dotsPerLine)

	assert.Equal(t, xres, p.pushedX, "expected exactly xres pixels pushed with SCX=3")
	assert.Equal(t, 168, p.fifoX, "expected fifo_x to reach 168 (160 visible + one absorbed leading tile) by end of XFER")
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	p := New(func(int) {})
	p.CPUWrite(0xFF40, 0x91)
	p.CPUWrite(0xFF47, 0xE4)
	p.vram[0] = 0xAB
	p.Tick(1000)

	data := p.SaveState()

	q := New(func(int) {})
	q.LoadState(data)

	assert.Equal(t, p.bgp, q.bgp, "BGP not restored")
	assert.Equal(t, byte(0xAB), q.vram[0], "VRAM not restored")
	assert.Equal(t, p.ly, q.ly, "LY not restored")
}
