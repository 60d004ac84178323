package video

import (
	"github.com/solivar/go-pocket/pocket/addr"
	"github.com/solivar/go-pocket/pocket/bit"
)

const (
	oamEntryCount = 40
	oamEntrySize  = 4

	// maxSpritesPerLine is the hardware limit fixed during OAM scan.
	maxSpritesPerLine = 10
)

// Sprite is one OAM entry with the hardware position offsets removed.
type Sprite struct {
	Y     int // top scanline covered by the sprite
	X     int // leftmost screen column (can be negative)
	Tile  byte
	Flags byte
	Index int // OAM index, lower wins on overlap
}

func (s Sprite) flipX() bool    { return bit.IsSet(5, s.Flags) }
func (s Sprite) flipY() bool    { return bit.IsSet(6, s.Flags) }
func (s Sprite) behindBG() bool { return bit.IsSet(7, s.Flags) }
func (s Sprite) useOBP1() bool  { return bit.IsSet(4, s.Flags) }

// scanOAM selects the sprites for one scanline: the first ten entries in
// ascending OAM order whose vertical extent covers the line. The result
// is fixed for the rest of the scanline.
func (p *PPU) scanOAM(line, height int) {
	p.spriteCount = 0
	for i := 0; i < oamEntryCount; i++ {
		base := addr.OAMStart + uint16(i*oamEntrySize)
		y := int(p.bus.Read(base)) - 16
		if line < y || line >= y+height {
			continue
		}

		p.sprites[p.spriteCount] = Sprite{
			Y:     y,
			X:     int(p.bus.Read(base+1)) - 8,
			Tile:  p.bus.Read(base + 2),
			Flags: p.bus.Read(base + 3),
			Index: i,
		}
		p.spriteCount++
		if p.spriteCount == maxSpritesPerLine {
			break
		}
	}
}
