// Package ppu implements the DMG pixel pipeline: a dot-stepped five-state
// fetcher feeding an 8-pixel FIFO, a per-scanline sprite selector, and the
// OAM/XFER/HBLANK/VBLANK mode state machine that drives both.
package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT).
type InterruptRequester func(bit int)

const (
	xres         = 160
	yres         = 144
	linesPerFrm  = 154
	dotsPerLine  = 456
	oamDots      = 80
	ms60Hz       = 1000 / 60
)

// PPU mode values, stored directly in STAT bits 1-0.
const (
	modeHBlank byte = 0
	modeVBlank byte = 1
	modeOAM    byte = 2
	modeXFER   byte = 3
)

var shadeRGBA = [4][4]byte{
	{0xFF, 0xFF, 0xFF, 0xFF},
	{0xAA, 0xAA, 0xAA, 0xFF},
	{0x55, 0x55, 0x55, 0xFF},
	{0x00, 0x00, 0x00, 0xFF},
}

// PPU models VRAM/OAM, LCDC/STAT/scroll/palette registers, the mode state
// machine, the sprite line scanner, and the pixel FIFO pipeline. It exposes
// CPU-facing Read/Write for VRAM/OAM and PPU IO registers plus a finished
// RGBA framebuffer, produced one frame per VBLANK.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F, 40 entries * 4 bytes

	lcdc, stat, scy, scx, ly, lyc, bgp, obp0, obp1, wy, wx byte

	mode      byte
	lineTicks int // dots elapsed in the current line, 0..455; not reset on mode change

	windowLine          int
	windowActiveThisLine bool
	currentFrame        uint64

	fb [yres * xres * 4]byte // RGBA8888

	lineSpritesBuf [10]lineSprite
	lineSprites    []lineSprite

	fetchState          int
	lineX, pushedX      int
	fetchX, fifoX       int
	tileY               byte
	bgwFetchData        [3]byte // [0]=tile id, [1]=low plane, [2]=high plane
	fetchedEntriesBuf   [3]fetchedSprite
	fetchedEntries      []fetchedSprite

	fifo pixelFIFO

	req InterruptRequester

	getTicks func() int64
	delay    func(ms int64)
	lastFrameTime int64
	frameCount    uint64
	lastFPSTime   int64
	onFPS         func(fps int)
}

func New(req InterruptRequester) *PPU {
	return &PPU{req: req}
}

// SetClock wires the host clock collaborator (§6) used for VBLANK frame
// pacing. Both may be nil, in which case Tick never sleeps (useful for
// headless/test execution).
func (p *PPU) SetClock(getTicks func() int64, delay func(ms int64)) {
	p.getTicks = getTicks
	p.delay = delay
}

// SetFPSReporter installs a callback invoked roughly once per second with
// the number of frames rendered in the preceding second (§4.7 diagnostics).
func (p *PPU) SetFPSReporter(fn func(fps int)) { p.onFPS = fn }

// ---- MMIO ----

func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode == modeXFER {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.mode == modeOAM || p.mode == modeXFER {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode == modeXFER {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.mode == modeOAM || p.mode == modeXFER {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if prev&0x80 != 0 && value&0x80 == 0 {
			p.ly = 0
			p.lineTicks = 0
			p.stat &^= 0x03
			p.updateLYC()
		} else if prev&0x80 == 0 && value&0x80 != 0 {
			p.ly = 0
			p.lineTicks = 0
			p.windowLine = 0
			p.setMode(modeOAM)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.lineTicks = 0
		p.updateLYC()
		if p.lcdc&0x80 != 0 {
			p.setMode(modeOAM)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Framebuffer returns the RGBA8888 pixels of the most recently completed
// frame, row-major, yres*xres*4 bytes.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// FrameCount reports how many frames have completed VBLANK since reset,
// letting a host detect frame boundaries by polling for a change.
func (p *PPU) FrameCount() uint64 { return p.currentFrame }

// ---- mode state machine (§4.7) ----

func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if p.lcdc&0x80 == 0 {
			continue
		}
		p.lineTicks++
		switch p.mode {
		case modeOAM:
			if p.lineTicks == 1 {
				p.scanOAM()
			}
			if p.lineTicks >= oamDots {
				p.enterXFER()
			}
		case modeXFER:
			p.pipelineTick()
			if p.pushedX >= xres {
				p.enterHBlank()
			}
		case modeHBlank:
			if p.lineTicks >= dotsPerLine {
				p.endVisibleLine()
			}
		case modeVBlank:
			if p.lineTicks >= dotsPerLine {
				p.endVBlankLine()
			}
		}
	}
}

func (p *PPU) setMode(m byte) {
	p.mode = m
	p.stat = (p.stat &^ 0x03) | m
	switch m {
	case modeHBlank:
		if p.stat&(1<<3) != 0 && p.req != nil {
			p.req(1)
		}
	case modeVBlank:
		if p.req != nil {
			p.req(0)
		}
		if p.stat&(1<<4) != 0 && p.req != nil {
			p.req(1)
		}
	case modeOAM:
		if p.stat&(1<<5) != 0 && p.req != nil {
			p.req(1)
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 && p.req != nil {
			p.req(1)
		}
	} else {
		p.stat &^= 1 << 2
	}
}

func (p *PPU) enterXFER() {
	p.setMode(modeXFER)
	p.fetchState = fsTile
	p.lineX, p.fetchX, p.pushedX, p.fifoX = 0, 0, 0, 0
	p.fifo.Clear()
	p.fetchedEntries = p.fetchedEntriesBuf[:0]
	p.windowActiveThisLine = p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 && int(p.ly) >= int(p.wy)
}

func (p *PPU) enterHBlank() {
	p.fifo.Clear()
	p.setMode(modeHBlank)
}

func (p *PPU) endVisibleLine() {
	p.lineTicks = 0
	if p.windowActiveThisLine {
		p.windowLine++
	}
	p.ly++
	p.updateLYC()
	if int(p.ly) >= yres {
		p.setMode(modeVBlank)
		p.currentFrame++
		p.paceFrame()
	} else {
		p.setMode(modeOAM)
	}
}

func (p *PPU) endVBlankLine() {
	p.lineTicks = 0
	p.ly++
	p.updateLYC()
	if int(p.ly) >= linesPerFrm {
		p.ly = 0
		p.windowLine = 0
		p.updateLYC()
		p.setMode(modeOAM)
	}
}

func (p *PPU) paceFrame() {
	p.frameCount++
	if p.getTicks == nil {
		return
	}
	now := p.getTicks()
	if p.lastFrameTime != 0 {
		elapsed := now - p.lastFrameTime
		if elapsed < ms60Hz && p.delay != nil {
			p.delay(ms60Hz - elapsed)
			now = p.getTicks()
		}
	}
	p.lastFrameTime = now
	if p.lastFPSTime == 0 {
		p.lastFPSTime = now
	} else if now-p.lastFPSTime >= 1000 {
		if p.onFPS != nil {
			p.onFPS(int(p.frameCount))
		}
		p.frameCount = 0
		p.lastFPSTime = now
	}
}

// ---- save state ----

type ppuState struct {
	VRAM [0x2000]byte
	OAM  [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC, BGP, OBP0, OBP1, WY, WX byte
	Mode                                                   byte
	LineTicks                                              int
	WindowLine                                             int
	CurrentFrame                                           uint64
	FB                                                      [yres * xres * 4]byte
}

func (p *PPU) SaveState() []byte {
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx, Mode: p.mode, LineTicks: p.lineTicks,
		WindowLine: p.windowLine, CurrentFrame: p.currentFrame, FB: p.fb,
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.STAT, s.SCY, s.SCX
	p.ly, p.lyc, p.bgp, p.obp0, p.obp1 = s.LY, s.LYC, s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx, p.mode, p.lineTicks = s.WY, s.WX, s.Mode, s.LineTicks
	p.windowLine, p.currentFrame, p.fb = s.WindowLine, s.CurrentFrame, s.FB
}
