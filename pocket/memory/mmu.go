// Package memory owns all addressable storage: the cartridge image behind
// its bank controller, video/work/high RAM, OAM and the IO register block.
// Every other component reaches memory only through the MMU's Read/Write.
package memory

import (
	"fmt"
	"log/slog"

	"github.com/solivar/go-pocket/pocket/addr"
	"github.com/solivar/go-pocket/pocket/bit"
)

type region uint8

const (
	regionROM region = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// Ports is the delegated IO register block of a component that owns its
// own registers (the PPU). The MMU routes reads and writes of those
// addresses through it so register side effects happen in one place.
type Ports interface {
	ReadPort(address uint16) byte
	WritePort(address uint16, value byte)
}

// MMU resolves every address access. It holds the 64KB address space,
// the bank controller for the cartridge windows, and the timer; the PPU
// register block is attached with SetVideoPorts.
type MMU struct {
	mem       []byte
	cart      *Cartridge
	mbc       BankController
	timer     Timer
	video     Ports
	regionMap [256]region
}

// New creates an MMU with no cartridge attached. Reads from the cartridge
// windows return open bus. Mostly useful for tests.
func New() *MMU {
	m := &MMU{mem: make([]byte, 0x10000)}
	m.timer.RequestInterrupt = func() { m.RequestInterrupt(addr.Timer) }
	m.initRegionMap()
	return m
}

// NewWithCartridge creates an MMU with the classified image mounted
// behind its bank controller.
func NewWithCartridge(cart *Cartridge) *MMU {
	return NewWithCartridgeClock(cart, nil)
}

// NewWithCartridgeClock is NewWithCartridge with an injected wall clock
// for the real-time-clock controller variant.
func NewWithCartridgeClock(cart *Cartridge, clock Clock) *MMU {
	m := New()
	m.cart = cart
	m.mbc = newBankController(cart, clock)
	return m
}

// SetVideoPorts attaches the PPU's register block.
func (m *MMU) SetVideoPorts(p Ports) {
	m.video = p
}

// Tick advances the timer by the given number of T-cycles.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
}

func (m *MMU) initRegionMap() {
	for page := 0; page <= 0xFF; page++ {
		switch {
		case page <= 0x7F:
			m.regionMap[page] = regionROM
		case page <= 0x9F:
			m.regionMap[page] = regionVRAM
		case page <= 0xBF:
			m.regionMap[page] = regionExtRAM
		case page <= 0xDF:
			m.regionMap[page] = regionWRAM
		case page <= 0xFD:
			m.regionMap[page] = regionEcho
		case page == 0xFE:
			m.regionMap[page] = regionOAM
		default:
			m.regionMap[page] = regionIO
		}
	}
}

// RequestInterrupt sets the request bit for the given interrupt. The bit
// is set even when the matching enable bit is clear; it stays pending.
func (m *MMU) RequestInterrupt(i addr.Interrupt) {
	m.mem[addr.IF] = m.mem[addr.IF] | i.Mask() | 0xE0
}

func (m *MMU) Read(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM, regionOAM:
		return m.mem[address]
	case regionEcho:
		return m.mem[address-0x2000]
	case regionIO:
		return m.readIO(address)
	}
	panic(fmt.Sprintf("unmapped read at 0x%04X", address))
}

func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("write to cartridge window with no cartridge",
				"addr", fmt.Sprintf("0x%04X", address))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM, regionWRAM, regionOAM:
		m.mem[address] = value
	case regionEcho:
		m.mem[address-0x2000] = value
	case regionIO:
		m.writeIO(address, value)
	default:
		panic(fmt.Sprintf("unmapped write at 0x%04X", address))
	}
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		// No input hardware attached: selection bits as written, no
		// buttons held, bits 6-7 high.
		return m.mem[address] | 0xCF
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address == addr.IF:
		// Upper three bits are unwired and read as 1.
		return m.mem[address] | 0xE0
	case address >= addr.LCDC && address <= addr.WX && address != addr.DMA:
		if m.video != nil {
			return m.video.ReadPort(address)
		}
		return m.mem[address]
	}
	return m.mem[address]
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		m.mem[address] = value & 0x30
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
	case address == addr.IF:
		m.mem[address] = value | 0xE0
	case address == addr.DMA:
		m.dmaTransfer(value)
	case address >= addr.LCDC && address <= addr.WX:
		if m.video != nil {
			m.video.WritePort(address, value)
			return
		}
		m.mem[address] = value
	default:
		m.mem[address] = value
	}
}

// dmaTransfer copies 160 bytes from value<<8 into OAM. Modeled as an
// instantaneous copy; the bus-blocking window is below this emulator's
// timing granularity.
func (m *MMU) dmaTransfer(value byte) {
	source := uint16(value) << 8
	for i := uint16(0); i < 160; i++ {
		m.mem[addr.OAMStart+i] = m.Read(source + i)
	}
	m.mem[addr.DMA] = value
}

// ReadBit reports the bit at index of the byte at address.
func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

// InterruptRegisters returns IE and IF directly, for the debugger.
func (m *MMU) InterruptRegisters() (ie, flags byte) {
	return m.mem[addr.IE], m.mem[addr.IF] | 0xE0
}

// SetInterruptRegisters stores IE and IF directly, bypassing write side
// effects. Debugger support only; program writes go through Write.
func (m *MMU) SetInterruptRegisters(ie, flags byte) {
	m.mem[addr.IE] = ie
	m.mem[addr.IF] = flags | 0xE0
}

// ExportSave returns the battery-backed RAM/clock blob, or nil when the
// cartridge has nothing to persist.
func (m *MMU) ExportSave() []byte {
	if b, ok := m.mbc.(BatteryBacked); ok && m.cart != nil && m.cart.hasBattery {
		return b.ExportSave()
	}
	return nil
}

// ImportSave restores a previously exported blob.
func (m *MMU) ImportSave(blob []byte) error {
	b, ok := m.mbc.(BatteryBacked)
	if !ok || m.cart == nil || !m.cart.hasBattery {
		return fmt.Errorf("save: cartridge has no battery-backed storage")
	}
	return b.ImportSave(blob)
}
