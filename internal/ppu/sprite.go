package ppu

// spriteAttr is one raw 4-byte OAM entry (§4.7 sprite scan).
type spriteAttr struct {
	Y, X, Tile, Flags byte
}

func (s spriteAttr) yFlip() bool     { return s.Flags&0x40 != 0 }
func (s spriteAttr) xFlip() bool     { return s.Flags&0x20 != 0 }
func (s spriteAttr) palette() bool   { return s.Flags&0x10 != 0 }
func (s spriteAttr) bgPriority() bool { return s.Flags&0x80 != 0 }

// lineSprite is a sprite selected for the current scanline, already carrying
// its original OAM scan order for stable tie-breaking on X (§4.7 S7).
type lineSprite struct {
	attr    spriteAttr
	oamIdx  int
}

// fetchedSprite is a sprite picked up by the fetcher's TILE state for the
// 8-pixel slot currently being assembled, with its bitplanes loaded during
// DATA0/DATA1.
type fetchedSprite struct {
	idx    int // index into p.lineSprites
	lo, hi byte
}

// scanOAM walks all 40 OAM entries in index order, collecting up to 10 whose
// vertical extent intersects the current scanline, then stable-sorts the
// result by ascending X so earlier OAM entries win ties (§4.7 S7).
func (p *PPU) scanOAM() {
	p.lineSprites = p.lineSpritesBuf[:0]
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	ly := int(p.ly)

	for i := 0; i < 40 && len(p.lineSprites) < 10; i++ {
		off := i * 4
		a := spriteAttr{Y: p.oam[off], X: p.oam[off+1], Tile: p.oam[off+2], Flags: p.oam[off+3]}
		top := int(a.Y) - 16
		if ly < top || ly >= top+height {
			continue
		}
		p.lineSprites = append(p.lineSprites, lineSprite{attr: a, oamIdx: i})
	}

	// stable insertion sort by ascending X; ties keep OAM scan order.
	for i := 1; i < len(p.lineSprites); i++ {
		j := i
		for j > 0 && p.lineSprites[j-1].attr.X > p.lineSprites[j].attr.X {
			p.lineSprites[j-1], p.lineSprites[j] = p.lineSprites[j], p.lineSprites[j-1]
			j--
		}
	}
}
