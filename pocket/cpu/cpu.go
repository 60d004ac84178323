// Package cpu implements the SM83 instruction engine: fetch/decode/execute
// with T-cycle costs, the IME/IF/IE interrupt sequence and the HALT quirks.
package cpu

import (
	"fmt"

	"github.com/solivar/go-pocket/pocket/addr"
	"github.com/solivar/go-pocket/pocket/bit"
)

// Bus is the CPU's view of the rest of the system.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	RequestInterrupt(interrupt addr.Interrupt)
}

// Flag is one of the 4 flags in the flag register (low byte of AF).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

const interruptDispatchCycles = 20

// IllegalOpcodeError is returned by Step when the fetched byte has no
// instruction assigned. Execution state is left at the fetch point.
type IllegalOpcodeError struct {
	Opcode  byte
	Address uint16
}

func (e *IllegalOpcodeError) Error() string {
	return fmt.Sprintf("illegal opcode 0x%02X at 0x%04X", e.Opcode, e.Address)
}

// CPU holds the SM83 register file and execution state.
type CPU struct {
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	ime       bool
	eiPending bool // EI takes effect after the following instruction
	halted    bool
	stopped   bool

	// haltBug makes the next fetch skip the PC increment, so the opcode
	// byte is read again as the first operand. Set by HALT executed with
	// IME clear while an enabled interrupt is already pending.
	haltBug bool

	cycles uint64

	bus Bus
}

// seedIO writes the register values the boot ROM leaves behind.
func seedIO(bus Bus) {
	bus.Write(addr.P1, 0xCF)
	bus.Write(addr.TIMA, 0x00)
	bus.Write(addr.TMA, 0x00)
	bus.Write(addr.TAC, 0x00)
	bus.Write(addr.LCDC, 0x91)
	bus.Write(addr.SCY, 0x00)
	bus.Write(addr.SCX, 0x00)
	bus.Write(addr.LYC, 0x00)
	bus.Write(addr.BGP, 0xFC)
	bus.Write(addr.OBP0, 0xFF)
	bus.Write(addr.OBP1, 0xFF)
	bus.Write(addr.WY, 0x00)
	bus.Write(addr.WX, 0x00)
	bus.Write(addr.IE, 0x00)
}

// New returns a CPU in the post-boot state, PC at the cartridge entry
// point.
func New(bus Bus) *CPU {
	seedIO(bus)

	cpu := &CPU{bus: bus}
	cpu.Reset()
	return cpu
}

// Reset restores the post-boot register file and clears execution state.
func (c *CPU) Reset() {
	c.setAF(0x01B0)
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100

	c.ime = false
	c.eiPending = false
	c.halted = false
	c.stopped = false
	c.haltBug = false
	c.cycles = 0
}

// Step runs the interrupt sequence and at most one instruction, returning
// the T-cycles consumed. The caller advances the other components by the
// same amount.
func (c *CPU) Step() (int, error) {
	pending := c.bus.Read(addr.IE) & c.bus.Read(addr.IF) & 0x1F

	// A pending enabled interrupt ends HALT even with IME clear; with
	// IME clear it is simply not serviced.
	if c.halted && pending != 0 {
		c.halted = false
	}

	if c.ime && pending != 0 {
		c.dispatchInterrupt(pending)
		return interruptDispatchCycles, nil
	}

	if c.halted || c.stopped {
		c.cycles += 4
		return 4, nil
	}

	// EI takes effect after the instruction that follows it. The flag
	// stays set through that instruction so DI (which clears it) and
	// HALT (which checks it) see the enable still in flight.
	pendingEnable := c.eiPending

	opcode := c.bus.Read(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}

	var instruction func(*CPU) int
	if opcode == 0xCB {
		opcode = c.bus.Read(c.pc)
		c.pc++
		instruction = extendedTable[opcode]
	} else {
		instruction = primaryTable[opcode]
	}

	if instruction == nil {
		return 0, &IllegalOpcodeError{Opcode: opcode, Address: c.pc - 1}
	}

	cycles := instruction(c)
	c.cycles += uint64(cycles)

	if pendingEnable && c.eiPending {
		c.ime = true
		c.eiPending = false
	}

	return cycles, nil
}

// dispatchInterrupt services the highest-priority pending request: clear
// its IF bit, drop IME, push PC and jump to the vector.
func (c *CPU) dispatchInterrupt(pending uint8) {
	for i := uint8(0); i < 5; i++ {
		if !bit.IsSet(i, pending) {
			continue
		}

		flags := c.bus.Read(addr.IF)
		c.bus.Write(addr.IF, bit.Clear(i, flags))
		c.ime = false
		c.eiPending = false

		c.pushStack(c.pc)
		c.pc = addr.Interrupt(i).Vector()
		c.cycles += interruptDispatchCycles
		return
	}
}

// peekImmediate returns the byte at PC without advancing it.
func (c *CPU) peekImmediate() uint8 {
	return c.bus.Read(c.pc)
}

func (c *CPU) readImmediate() uint8 {
	n := c.peekImmediate()
	c.pc++
	return n
}

func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit returns 1 if the flag is set, 0 otherwise.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
		return
	}
	c.resetFlag(flag)
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// The low 4 bits of F always read 0.
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f)
}

// Register getters for the debug surface.
func (c *CPU) AF() uint16     { return c.getAF() }
func (c *CPU) BC() uint16     { return c.getBC() }
func (c *CPU) DE() uint16     { return c.getDE() }
func (c *CPU) HL() uint16     { return c.getHL() }
func (c *CPU) SP() uint16     { return c.sp }
func (c *CPU) PC() uint16     { return c.pc }
func (c *CPU) Cycles() uint64 { return c.cycles }
func (c *CPU) IME() bool      { return c.ime }
func (c *CPU) Halted() bool   { return c.halted }
func (c *CPU) Stopped() bool  { return c.stopped }

// FlagString renders the flag register as "ZNHC" with dashes for clear
// bits.
func (c *CPU) FlagString() string {
	names := []struct {
		flag Flag
		ch   byte
	}{
		{zeroFlag, 'Z'},
		{subFlag, 'N'},
		{halfCarryFlag, 'H'},
		{carryFlag, 'C'},
	}

	out := make([]byte, 4)
	for i, n := range names {
		out[i] = '-'
		if c.isSetFlag(n.flag) {
			out[i] = n.ch
		}
	}
	return string(out)
}
