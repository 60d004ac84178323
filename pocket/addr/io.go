// Package addr holds the memory-mapped register addresses of the DMG and
// the interrupt identifiers used across components.
package addr

// PPU registers.
const (
	// LCDC is the LCD control register.
	LCDC uint16 = 0xFF40
	// STAT is the LCD status register (mode, LYC match, interrupt selects).
	STAT uint16 = 0xFF41
	// SCY is the background scroll Y register.
	SCY uint16 = 0xFF42
	// SCX is the background scroll X register.
	SCX uint16 = 0xFF43
	// LY is the current scanline. Read-only for programs.
	LY uint16 = 0xFF44
	// LYC is the scanline compare register.
	LYC uint16 = 0xFF45
	// DMA starts an OAM DMA transfer from value<<8.
	DMA uint16 = 0xFF46
	// BGP is the background palette register.
	BGP uint16 = 0xFF47
	// OBP0 is sprite palette 0.
	OBP0 uint16 = 0xFF48
	// OBP1 is sprite palette 1.
	OBP1 uint16 = 0xFF49
	// WY is the window origin Y register.
	WY uint16 = 0xFF4A
	// WX is the window origin X register (screen X + 7).
	WX uint16 = 0xFF4B
)

// Timer registers.
const (
	// DIV is the divider register, the top byte of the internal 16-bit
	// counter. Writing any value resets the counter.
	DIV uint16 = 0xFF04
	// TIMA is the timer counter. Requests an interrupt on overflow.
	TIMA uint16 = 0xFF05
	// TMA is the value reloaded into TIMA after an overflow.
	TMA uint16 = 0xFF06
	// TAC is the timer control register (enable + clock select).
	TAC uint16 = 0xFF07
)

// Interrupt registers.
const (
	// IF is the interrupt request flags register.
	IF uint16 = 0xFF0F
	// IE is the interrupt enable register.
	IE uint16 = 0xFFFF
)

// Joypad and serial registers. Their hardware is not emulated here; the
// MMU only keeps the register storage programs expect to see.
const (
	P1 uint16 = 0xFF00
	SB uint16 = 0xFF01
	SC uint16 = 0xFF02
)

// Audio register block, kept as plain storage (no synthesis).
const (
	AudioStart uint16 = 0xFF10
	AudioEnd   uint16 = 0xFF3F
	NR52       uint16 = 0xFF26
)

// Video memory regions.
const (
	TileData0 uint16 = 0x8000
	TileData1 uint16 = 0x8800
	TileData2 uint16 = 0x9000
	TileMap0  uint16 = 0x9800
	TileMap1  uint16 = 0x9C00

	OAMStart uint16 = 0xFE00
	OAMEnd   uint16 = 0xFE9F
)

// Interrupt identifies one interrupt source. The value is the bit index
// in IF/IE; lower index means higher service priority.
type Interrupt uint8

const (
	// VBlank fires once per frame when the PPU enters vertical blank.
	VBlank Interrupt = iota
	// LCDStat fires on the STAT conditions selected in the STAT register.
	LCDStat
	// Timer fires when TIMA overflows and reloads.
	Timer
	// Serial fires when a serial transfer completes. Storage only here.
	Serial
	// Joypad fires on a button high-to-low transition. Storage only here.
	Joypad
)

// Vector returns the fixed service routine address for the interrupt.
func (i Interrupt) Vector() uint16 {
	return 0x40 + uint16(i)*8
}

// Mask returns the IF/IE bit mask for the interrupt.
func (i Interrupt) Mask() uint8 {
	return 1 << i
}
