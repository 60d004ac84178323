// Package video implements the picture processing unit: a per-dot state
// machine that renders background, window and sprite layers into a
// framebuffer and raises the STAT/VBlank interrupt requests.
package video

import (
	"github.com/solivar/go-pocket/pocket/addr"
	"github.com/solivar/go-pocket/pocket/bit"
)

// Mode is the PPU state machine mode, numbered as the STAT register
// reports it.
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMScan
	ModeDrawing
)

// Dot budgets. Drawing uses the nominal budget; window/sprite fetch
// penalties are not modeled.
const (
	oamScanDots = 80
	drawingDots = 172
	hblankDots  = 204
	lineDots    = oamScanDots + drawingDots + hblankDots

	visibleLines = FramebufferHeight
	totalLines   = 154
)

// LCDC bit positions.
const (
	lcdcBGEnable = iota
	lcdcSpriteEnable
	lcdcSpriteSize
	lcdcBGTileMap
	lcdcTileData
	lcdcWindowEnable
	lcdcWindowTileMap
	lcdcEnable
)

// STAT interrupt select bit positions.
const (
	statSelectHBlank  = 3
	statSelectVBlank  = 4
	statSelectOAMScan = 5
	statSelectLYC     = 6
)

// Bus is what the PPU needs from the rest of the system: VRAM/OAM reads
// and a way to raise interrupt requests.
type Bus interface {
	Read(address uint16) byte
	RequestInterrupt(i addr.Interrupt)
}

// PPU owns the LCD register block and the framebuffer. Mode transitions
// and the scanline counter are fully determined by the dot counter; LY is
// derived state and ignores program writes.
type PPU struct {
	bus Bus
	fb  *FrameBuffer

	mode Mode
	line int
	dots int

	// Window state: WY is sampled once per frame; the window keeps its
	// own line counter that only advances on lines it rendered.
	frameWY    int
	windowLine int

	sprites     [maxSpritesPerLine]Sprite
	spriteCount int

	frameReady bool

	lcdc byte
	stat byte // interrupt select bits only; mode/match are derived
	scy  byte
	scx  byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte
}

// New creates a PPU reading VRAM/OAM through bus.
func New(bus Bus) *PPU {
	return &PPU{
		bus:  bus,
		fb:   NewFrameBuffer(),
		mode: ModeOAMScan,
	}
}

// Frame returns the framebuffer. Contents are complete for the previous
// frame whenever FrameReady reports true.
func (p *PPU) Frame() *FrameBuffer {
	return p.fb
}

// FrameReady reports whether a frame completed since the last call and
// clears the flag. The handoff point is VBlank entry.
func (p *PPU) FrameReady() bool {
	ready := p.frameReady
	p.frameReady = false
	return ready
}

// Mode returns the current state machine mode.
func (p *PPU) CurrentMode() Mode {
	return p.mode
}

// Line returns the current scanline (LY).
func (p *PPU) Line() int {
	return p.line
}

func (p *PPU) enabled() bool {
	return bit.IsSet(lcdcEnable, p.lcdc)
}

// Tick advances the state machine by the given number of T-cycles (dots).
// With the LCD disabled the machine is frozen in place.
func (p *PPU) Tick(cycles int) {
	if !p.enabled() {
		return
	}

	p.dots += cycles
	for {
		switch p.mode {
		case ModeOAMScan:
			if p.dots < oamScanDots {
				return
			}
			p.dots -= oamScanDots
			p.scanOAM(p.line, p.spriteHeight())
			p.mode = ModeDrawing

		case ModeDrawing:
			if p.dots < drawingDots {
				return
			}
			p.dots -= drawingDots
			p.renderScanline()
			p.mode = ModeHBlank
			p.statInterrupt(statSelectHBlank)

		case ModeHBlank:
			if p.dots < hblankDots {
				return
			}
			p.dots -= hblankDots
			p.setLine(p.line + 1)
			if p.line == visibleLines {
				p.enterVBlank()
			} else {
				p.mode = ModeOAMScan
				p.statInterrupt(statSelectOAMScan)
			}

		case ModeVBlank:
			if p.dots < lineDots {
				return
			}
			p.dots -= lineDots
			if p.line+1 == totalLines {
				p.startFrame()
			} else {
				p.setLine(p.line + 1)
			}
		}
	}
}

func (p *PPU) enterVBlank() {
	p.mode = ModeVBlank
	p.frameReady = true
	p.bus.RequestInterrupt(addr.VBlank)
	p.statInterrupt(statSelectVBlank)
}

func (p *PPU) startFrame() {
	p.setLine(0)
	p.mode = ModeOAMScan
	p.windowLine = 0
	p.frameWY = int(p.wy)
	p.statInterrupt(statSelectOAMScan)
}

// setLine is the only place the scanline counter changes, so the LY==LYC
// comparison is re-evaluated on every change and nowhere else: the STAT
// request is edge triggered on the transition into a match.
func (p *PPU) setLine(line int) {
	p.line = line
	if p.line == int(p.lyc) {
		p.statInterrupt(statSelectLYC)
	}
}

func (p *PPU) statInterrupt(selectBit uint8) {
	if bit.IsSet(selectBit, p.stat) {
		p.bus.RequestInterrupt(addr.LCDStat)
	}
}

func (p *PPU) spriteHeight() int {
	if bit.IsSet(lcdcSpriteSize, p.lcdc) {
		return 16
	}
	return 8
}

// ReadPort implements the MMU's delegated register block.
func (p *PPU) ReadPort(address uint16) byte {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		return p.composeSTAT()
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return byte(p.line)
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	}
	return 0xFF
}

// WritePort implements the MMU's delegated register block. LY is
// read-only from the program's perspective and the write is dropped.
func (p *PPU) WritePort(address uint16, value byte) {
	switch address {
	case addr.LCDC:
		p.writeLCDC(value)
	case addr.STAT:
		// Only the interrupt select bits are writable.
		p.stat = value & 0x78
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// ignored
	case addr.LYC:
		p.lyc = value
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}
}

func (p *PPU) writeLCDC(value byte) {
	wasEnabled := p.enabled()
	p.lcdc = value

	switch {
	case wasEnabled && !p.enabled():
		// Disabling freezes the state machine where it stands and
		// blanks the output.
		p.fb.Clear(0)
	case !wasEnabled && p.enabled():
		// Re-enabling restarts from the top of the frame.
		p.dots = 0
		p.line = 0
		p.mode = ModeOAMScan
		p.windowLine = 0
		p.frameWY = int(p.wy)
	}
}

func (p *PPU) composeSTAT() byte {
	s := 0x80 | p.stat
	if p.line == int(p.lyc) {
		s |= 0x04
	}
	if p.enabled() {
		s |= byte(p.mode)
	}
	return s
}

// renderScanline composites background, window and the sprites selected
// during OAM scan into one framebuffer row.
func (p *PPU) renderScanline() {
	// Raw background/window color indexes, kept pre-palette because the
	// sprite behind-BG flag tests against index 0, not shade 0.
	var bgIndex [FramebufferWidth]uint8

	if bit.IsSet(lcdcBGEnable, p.lcdc) {
		p.renderBackground(&bgIndex)
		p.renderWindow(&bgIndex)
	}

	for x := 0; x < FramebufferWidth; x++ {
		p.fb.Set(x, p.line, paletteShade(p.bgp, bgIndex[x]))
	}

	if bit.IsSet(lcdcSpriteEnable, p.lcdc) {
		p.renderSprites(&bgIndex)
	}
}

func (p *PPU) renderBackground(bgIndex *[FramebufferWidth]uint8) {
	mapBase := addr.TileMap0
	if bit.IsSet(lcdcBGTileMap, p.lcdc) {
		mapBase = addr.TileMap1
	}

	y := (p.line + int(p.scy)) & 0xFF
	for x := 0; x < FramebufferWidth; x++ {
		xx := (x + int(p.scx)) & 0xFF
		row := p.fetchTileRow(mapBase, xx>>3, y>>3, y&7)
		bgIndex[x] = row.pixel(xx & 7)
	}
}

func (p *PPU) renderWindow(bgIndex *[FramebufferWidth]uint8) {
	if !bit.IsSet(lcdcWindowEnable, p.lcdc) {
		return
	}
	if p.line < p.frameWY || p.wx > 166 {
		return
	}

	mapBase := addr.TileMap0
	if bit.IsSet(lcdcWindowTileMap, p.lcdc) {
		mapBase = addr.TileMap1
	}

	startX := int(p.wx) - 7
	for x := max(startX, 0); x < FramebufferWidth; x++ {
		wx := x - startX
		row := p.fetchTileRow(mapBase, wx>>3, p.windowLine>>3, p.windowLine&7)
		bgIndex[x] = row.pixel(wx & 7)
	}
	p.windowLine++
}

// fetchTileRow reads one row of the tile at (tileX, tileY) in the given
// tile map, honoring the signed/unsigned tile data addressing mode.
func (p *PPU) fetchTileRow(mapBase uint16, tileX, tileY, rowY int) tileRow {
	number := p.bus.Read(mapBase + uint16(tileY*32+tileX))

	var rowAddr uint16
	if bit.IsSet(lcdcTileData, p.lcdc) {
		rowAddr = addr.TileData0 + uint16(number)*16
	} else {
		rowAddr = uint16(int(addr.TileData2) + int(int8(number))*16)
	}
	rowAddr += uint16(rowY * 2)

	return tileRow{low: p.bus.Read(rowAddr), high: p.bus.Read(rowAddr + 1)}
}

// renderSprites draws the selected sprites over a completed row. Walking
// the selection in descending OAM order lets lower indexes overwrite, so
// the lowest index wins every overlap.
func (p *PPU) renderSprites(bgIndex *[FramebufferWidth]uint8) {
	height := p.spriteHeight()

	for i := p.spriteCount - 1; i >= 0; i-- {
		s := p.sprites[i]

		row := p.line - s.Y
		if s.flipY() {
			row = height - 1 - row
		}

		tile := s.Tile
		if height == 16 {
			tile &= 0xFE
		}
		rowAddr := addr.TileData0 + uint16(tile)*16 + uint16(row*2)
		tr := tileRow{low: p.bus.Read(rowAddr), high: p.bus.Read(rowAddr + 1)}

		palette := p.obp0
		if s.useOBP1() {
			palette = p.obp1
		}

		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= FramebufferWidth {
				continue
			}

			col := px
			if s.flipX() {
				col = 7 - px
			}
			index := tr.pixel(col)
			if index == 0 {
				// Sprite color 0 is transparent.
				continue
			}
			if s.behindBG() && bgIndex[x] != 0 {
				continue
			}
			p.fb.Set(x, p.line, paletteShade(palette, index))
		}
	}
}
