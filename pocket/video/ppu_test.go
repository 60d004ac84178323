package video

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solivar/go-pocket/pocket/addr"
)

// testBus is a flat 64KB memory with interrupt request recording.
type testBus struct {
	mem      [0x10000]byte
	requests []addr.Interrupt
}

func (b *testBus) Read(address uint16) byte {
	return b.mem[address]
}

func (b *testBus) RequestInterrupt(i addr.Interrupt) {
	b.requests = append(b.requests, i)
}

func (b *testBus) count(i addr.Interrupt) int {
	n := 0
	for _, r := range b.requests {
		if r == i {
			n++
		}
	}
	return n
}

func newTestPPU() (*PPU, *testBus) {
	bus := &testBus{}
	p := New(bus)
	p.WritePort(addr.LCDC, 0x91) // enabled, BG on, unsigned tile data
	p.WritePort(addr.BGP, 0xE4)  // identity palette: 3,2,1,0
	return p, bus
}

func TestModeSequence(t *testing.T) {
	p, _ := newTestPPU()

	assert.Equal(t, ModeOAMScan, p.CurrentMode())

	p.Tick(oamScanDots)
	assert.Equal(t, ModeDrawing, p.CurrentMode())

	p.Tick(drawingDots)
	assert.Equal(t, ModeHBlank, p.CurrentMode())

	p.Tick(hblankDots)
	assert.Equal(t, ModeOAMScan, p.CurrentMode())
	assert.Equal(t, 1, p.Line())
}

func TestVBlankEntry(t *testing.T) {
	p, bus := newTestPPU()

	p.Tick(lineDots * visibleLines)
	assert.Equal(t, ModeVBlank, p.CurrentMode())
	assert.Equal(t, visibleLines, p.Line())
	assert.Equal(t, 1, bus.count(addr.VBlank), "exactly one VBlank request on entry")
	assert.True(t, p.FrameReady())
	assert.False(t, p.FrameReady(), "ready flag is consumed")

	// Running through the rest of VBlank raises no further requests.
	p.Tick(lineDots * 9)
	assert.Equal(t, 1, bus.count(addr.VBlank))

	// The next frame starts from the top.
	p.Tick(lineDots)
	assert.Equal(t, 0, p.Line())
	assert.Equal(t, ModeOAMScan, p.CurrentMode())
}

func TestVBlankSTATSelect(t *testing.T) {
	p, bus := newTestPPU()
	p.WritePort(addr.STAT, 1<<statSelectVBlank)

	p.Tick(lineDots * visibleLines)
	assert.Equal(t, 1, bus.count(addr.LCDStat))
}

func TestLYCEdgeTrigger(t *testing.T) {
	p, bus := newTestPPU()
	p.WritePort(addr.LYC, 4)
	p.WritePort(addr.STAT, 1<<statSelectLYC)

	// Run to the end of line 3: the transition into line 4 must raise
	// exactly one STAT request.
	p.Tick(lineDots * 4)
	assert.Equal(t, 4, p.Line())
	assert.Equal(t, 1, bus.count(addr.LCDStat))

	// Staying on line 4 raises no further requests.
	p.Tick(100)
	p.Tick(100)
	assert.Equal(t, 1, bus.count(addr.LCDStat))

	// Leaving the match line raises nothing either.
	p.Tick(lineDots)
	assert.Equal(t, 1, bus.count(addr.LCDStat))

	assert.Zero(t, p.ReadPort(addr.STAT)&0x04, "coincidence bit clears once LY moves on")
}

func TestHBlankSTATSelect(t *testing.T) {
	p, bus := newTestPPU()
	p.WritePort(addr.STAT, 1<<statSelectHBlank)

	p.Tick(oamScanDots + drawingDots)
	assert.Equal(t, ModeHBlank, p.CurrentMode())
	assert.Equal(t, 1, bus.count(addr.LCDStat))
}

func TestLYIsReadOnly(t *testing.T) {
	p, _ := newTestPPU()

	p.Tick(lineDots * 3)
	assert.Equal(t, byte(3), p.ReadPort(addr.LY))

	p.WritePort(addr.LY, 42)
	assert.Equal(t, byte(3), p.ReadPort(addr.LY), "program writes to LY are dropped")
}

func TestSTATWritableBits(t *testing.T) {
	p, _ := newTestPPU()

	p.WritePort(addr.STAT, 0xFF)
	// Bit 7 reads 1, selects as written, match bit set (LY==LYC==0),
	// mode bits from the machine.
	assert.Equal(t, byte(0xFE), p.ReadPort(addr.STAT))
}

func TestLCDDisableFreezesAndBlanks(t *testing.T) {
	p, _ := newTestPPU()

	p.Tick(lineDots * 5)
	assert.Equal(t, 5, p.Line())

	p.fb.Set(10, 10, 3)
	p.WritePort(addr.LCDC, 0x11) // enable bit cleared

	assert.Equal(t, Shade(0), p.fb.At(10, 10), "framebuffer blanked on disable")
	assert.Equal(t, byte(0), p.ReadPort(addr.STAT)&0x03, "mode reads 0 while off")

	p.Tick(lineDots * 20)
	assert.Equal(t, 5, p.Line(), "state machine frozen while off")

	// Re-enable restarts from the top of the frame.
	p.WritePort(addr.LCDC, 0x91)
	assert.Equal(t, 0, p.Line())
	assert.Equal(t, ModeOAMScan, p.CurrentMode())
}

// writeTile fills a tile with a single solid color index.
func writeTile(bus *testBus, tileAddr uint16, index uint8) {
	var low, high byte
	if index&1 != 0 {
		low = 0xFF
	}
	if index&2 != 0 {
		high = 0xFF
	}
	for row := uint16(0); row < 8; row++ {
		bus.mem[tileAddr+row*2] = low
		bus.mem[tileAddr+row*2+1] = high
	}
}

func TestBackgroundRendering(t *testing.T) {
	p, bus := newTestPPU()

	// Tile 1 is solid color 3; the top-left map entry points at it.
	writeTile(bus, addr.TileData0+16, 3)
	bus.mem[addr.TileMap0] = 1

	p.Tick(oamScanDots + drawingDots) // render line 0

	for x := 0; x < 8; x++ {
		assert.Equal(t, Shade(3), p.fb.At(x, 0))
	}
	assert.Equal(t, Shade(0), p.fb.At(8, 0))
}

func TestBackgroundScrollWraps(t *testing.T) {
	p, bus := newTestPPU()

	writeTile(bus, addr.TileData0+16, 3)
	bus.mem[addr.TileMap0] = 1 // tile at map column 0
	p.WritePort(addr.SCX, 248) // view starts 8 pixels before column 0

	p.Tick(oamScanDots + drawingDots)

	assert.Equal(t, Shade(0), p.fb.At(0, 0))
	assert.Equal(t, Shade(3), p.fb.At(8, 0), "map column 0 appears 8 pixels in")
}

func TestSignedTileAddressing(t *testing.T) {
	p, bus := newTestPPU()
	p.WritePort(addr.LCDC, 0x81) // enabled, BG on, signed tile data

	// Tile number 0xFE is -2: two tiles below 0x9000.
	writeTile(bus, addr.TileData2-2*16, 3)
	bus.mem[addr.TileMap0] = 0xFE

	p.Tick(oamScanDots + drawingDots)
	assert.Equal(t, Shade(3), p.fb.At(0, 0))
}

func TestWindowOverlay(t *testing.T) {
	p, bus := newTestPPU()
	p.WritePort(addr.LCDC, 0xF1) // enabled, BG on, window on with map 1

	// Background map 0 stays color 0; window map 1 shows tile 2.
	writeTile(bus, addr.TileData0+2*16, 2)
	for i := 0; i < 32*32; i++ {
		bus.mem[int(addr.TileMap1)+i] = 2
	}
	p.WritePort(addr.WY, 0)
	p.WritePort(addr.WX, 87) // window starts at screen column 80

	p.Tick(oamScanDots + drawingDots)

	assert.Equal(t, Shade(0), p.fb.At(79, 0))
	assert.Equal(t, Shade(2), p.fb.At(80, 0))
	assert.Equal(t, Shade(2), p.fb.At(159, 0))
}

func TestWindowWYSampledPerFrame(t *testing.T) {
	p, bus := newTestPPU()
	p.WritePort(addr.LCDC, 0xF1)

	writeTile(bus, addr.TileData0+2*16, 2)
	bus.mem[addr.TileMap1] = 2
	p.WritePort(addr.WX, 7)

	// WY changes mid-frame take effect on the next frame.
	p.WritePort(addr.WY, 10)
	p.Tick(lineDots * totalLines) // finish the current frame

	p.Tick(oamScanDots + drawingDots) // line 0 of the next frame
	assert.Equal(t, Shade(0), p.fb.At(0, 0), "line above WY shows background")

	p.Tick(lineDots * 10) // through the render point of line 10
	assert.Equal(t, Shade(2), p.fb.At(0, 10), "window appears from WY down")
}
