package ppu

// Fetcher states, run one step per fetcher-tick (§4.8). A fetcher-tick
// happens on even line_ticks only. The IDLE step moves to PUSH and makes the
// first push attempt in the same tick; a push held back by backpressure is
// retried on the following even ticks.
const (
	fsTile = iota
	fsData0
	fsData1
	fsIdle
	fsPush
)

// pixelFIFO is a fixed-capacity ring buffer of resolved 2-bit grayscale
// shades (0..3), never exceeding 16 entries (§3 invariant). A ring buffer
// satisfies the spec's invariants with zero allocation, unlike the
// linked-list FIFO the original core used (see DESIGN.md).
type pixelFIFO struct {
	buf        [16]byte
	head, tail int
	size       int
}

func (q *pixelFIFO) Clear() { q.head, q.tail, q.size = 0, 0, 0 }
func (q *pixelFIFO) Len() int { return q.size }

func (q *pixelFIFO) Push(v byte) bool {
	if q.size >= len(q.buf) {
		return false
	}
	q.buf[q.tail] = v
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}

// Pop removes and returns the oldest queued shade. Popping an empty FIFO is
// a pipeline invariant violation (§3), never a reachable runtime condition
// against conformant callers, so it is fatal (§7 "FIFO pop on empty").
func (q *pixelFIFO) Pop() byte {
	if q.size == 0 {
		panic("ppu: pixel FIFO pop on empty queue")
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v
}

// pipelineTick advances the fetcher on even dots and drains the FIFO into
// the framebuffer every dot (§4.8).
func (p *PPU) pipelineTick() {
	if p.lineTicks%2 == 0 {
		p.fetcherStep()
	}
	p.fifoDrain()
}

func (p *PPU) fetcherStep() {
	switch p.fetchState {
	case fsTile:
		p.fetchTile()
		p.fetchState = fsData0
	case fsData0:
		p.fetchBGData(1)
		p.loadSpriteData(0)
		p.fetchState = fsData1
	case fsData1:
		p.fetchBGData(2)
		p.loadSpriteData(1)
		p.fetchState = fsIdle
	case fsIdle:
		p.fetchState = fsPush
		p.tryPush()
	case fsPush:
		p.tryPush()
	default:
		panic("ppu: unknown fetcher state")
	}
}

func (p *PPU) fetchTile() {
	p.fetchedEntries = p.fetchedEntriesBuf[:0]

	if p.lcdc&0x01 != 0 {
		mapY := byte(int(p.ly) + int(p.scy))
		mapX := byte(p.fetchX + int(p.scx))
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileAddr := mapBase + uint16(mapY/8)*32 + uint16(mapX/8)
		tileID := p.vram[tileAddr-0x8000]
		if p.lcdc&0x10 == 0 {
			tileID = byte(int(tileID) + 128)
		}
		p.tileY = byte((int(p.ly)+int(p.scy))%8) * 2

		if p.windowActiveThisLine && p.fetchX >= p.windowXStart() {
			winMapBase := uint16(0x9800)
			if p.lcdc&0x40 != 0 {
				winMapBase = 0x9C00
			}
			col := uint16((p.fetchX - p.windowXStart()) / 8)
			wTileAddr := winMapBase + uint16(p.windowLine/8)*32 + col
			wTileID := p.vram[wTileAddr-0x8000]
			if p.lcdc&0x10 == 0 {
				wTileID = byte(int(wTileID) + 128)
			}
			tileID = wTileID
			p.tileY = byte(p.windowLine%8) * 2
		}
		p.bgwFetchData[0] = tileID
	}

	if p.lcdc&0x02 != 0 {
		p.collectSpritesForFetch()
	}

	p.fetchX += 8
}

func (p *PPU) windowXStart() int { return int(p.wx) - 7 }

func (p *PPU) fetchBGData(plane int) {
	if p.lcdc&0x01 == 0 {
		return
	}
	base := uint16(0x8000)
	if p.lcdc&0x10 == 0 {
		base = 0x8800
	}
	addr := base + uint16(p.bgwFetchData[0])*16 + uint16(p.tileY)
	if plane == 2 {
		addr++
	}
	p.bgwFetchData[plane] = p.vram[addr-0x8000]
}

// collectSpritesForFetch gathers up to 3 sprites from the already-sorted
// line_sprites list whose 8-pixel visible window overlaps the tile about to
// be fetched (§4.8 TILE state).
func (p *PPU) collectSpritesForFetch() {
	b0, b1 := p.fetchX, p.fetchX+8
	for i := range p.lineSprites {
		if len(p.fetchedEntries) >= 3 {
			break
		}
		s := p.lineSprites[i].attr
		a0, a1 := int(s.X)-8, int(s.X)
		if a0 < b1 && b0 < a1 {
			p.fetchedEntries = append(p.fetchedEntries, fetchedSprite{idx: i})
		}
	}
}

// loadSpriteData reads one bitplane (0=low, 1=high) for every sprite
// collected in the TILE state, honoring 8x16 mode and vertical flip
// (§4.8 DATA0/DATA1).
func (p *PPU) loadSpriteData(plane int) {
	tall := p.lcdc&0x04 != 0
	height := 8
	if tall {
		height = 16
	}
	for i := range p.fetchedEntries {
		e := &p.fetchedEntries[i]
		s := p.lineSprites[e.idx].attr
		tileIndex := s.Tile
		if tall {
			tileIndex &^= 1
		}
		row := int(p.ly) + 16 - int(s.Y)
		if s.yFlip() {
			row = height - 1 - row
		}
		addr := uint16(0x8000) + uint16(tileIndex)*16 + uint16(row)*2
		if plane == 1 {
			addr++
		}
		v := p.vram[addr-0x8000]
		if plane == 0 {
			e.lo = v
		} else {
			e.hi = v
		}
	}
}

// tryPush attempts the PUSH state: backpressure while the FIFO holds more
// than 8 pixels, otherwise merges and pushes a new 8-pixel group (§4.8).
func (p *PPU) tryPush() {
	if p.fifo.Len() > 8 {
		return
	}
	p.mergePush()
	p.fetchState = fsTile
}

// mergePush computes the final BG+sprite shade for each of the 8 pixels in
// the current fetch slot and pushes them into the FIFO (§4.8 "per-pixel
// merge").
func (p *PPU) mergePush() {
	bgEnabled := p.lcdc&0x01 != 0
	spritesEnabled := p.lcdc&0x02 != 0
	lo, hi := p.bgwFetchData[1], p.bgwFetchData[2]

	for i := 0; i < 8; i++ {
		bit := uint(7 - i)
		var bgci byte
		if bgEnabled {
			bgci = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		}
		shade := paletteShade(p.bgp, bgci)

		if spritesEnabled {
			for _, e := range p.fetchedEntries {
				s := p.lineSprites[e.idx].attr
				offset := p.fifoX - (int(s.X) - 8 + int(p.scx)%8)
				if offset < 0 || offset > 7 {
					continue
				}
				sbit := uint(7 - offset)
				if s.xFlip() {
					sbit = uint(offset)
				}
				spci := ((e.hi>>sbit)&1)<<1 | ((e.lo >> sbit) & 1)
				if spci == 0 {
					continue
				}
				if s.bgPriority() && bgci != 0 {
					continue
				}
				reg := p.obp0
				if s.palette() {
					reg = p.obp1
				}
				shade = paletteShade(reg, spci)
				break
			}
		}

		p.fifo.Push(shade)
		p.fifoX++
	}
}

// fifoDrain pops one pixel per T-cycle once the FIFO holds more than 8
// entries, absorbing the sub-tile scroll offset before writing into the
// framebuffer (§4.8 "FIFO drain").
func (p *PPU) fifoDrain() {
	if p.fifo.Len() <= 8 {
		return
	}
	shade := p.fifo.Pop()
	if p.lineX >= int(p.scx)%8 && p.pushedX < xres {
		off := (int(p.ly)*xres + p.pushedX) * 4
		copy(p.fb[off:off+4], shadeRGBA[shade][:])
		p.pushedX++
	}
	p.lineX++
}

func paletteShade(reg, idx byte) byte { return (reg >> (idx * 2)) & 3 }
