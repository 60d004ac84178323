package cpu

import "github.com/solivar/go-pocket/pocket/addr"

// instruction executes one decoded opcode and returns its T-cycle cost.
type instruction func(*CPU) int

var (
	primaryTable  [256]instruction
	extendedTable [256]instruction
)

// target is one of the 8 operand slots in the regular opcode encoding:
// B, C, D, E, H, L, (HL), A. The (HL) slot goes through the bus and
// costs extra cycles.
type target struct {
	get func(*CPU) uint8
	set func(*CPU, uint8)
	mem bool
}

var targets = [8]target{
	{get: func(c *CPU) uint8 { return c.b }, set: func(c *CPU, v uint8) { c.b = v }},
	{get: func(c *CPU) uint8 { return c.c }, set: func(c *CPU, v uint8) { c.c = v }},
	{get: func(c *CPU) uint8 { return c.d }, set: func(c *CPU, v uint8) { c.d = v }},
	{get: func(c *CPU) uint8 { return c.e }, set: func(c *CPU, v uint8) { c.e = v }},
	{get: func(c *CPU) uint8 { return c.h }, set: func(c *CPU, v uint8) { c.h = v }},
	{get: func(c *CPU) uint8 { return c.l }, set: func(c *CPU, v uint8) { c.l = v }},
	{
		get: func(c *CPU) uint8 { return c.bus.Read(c.getHL()) },
		set: func(c *CPU, v uint8) { c.bus.Write(c.getHL(), v) },
		mem: true,
	},
	{get: func(c *CPU) uint8 { return c.a }, set: func(c *CPU, v uint8) { c.a = v }},
}

// pairs are the rp operand slots: BC, DE, HL, SP.
var pairs = [4]struct {
	get func(*CPU) uint16
	set func(*CPU, uint16)
}{
	{get: (*CPU).getBC, set: (*CPU).setBC},
	{get: (*CPU).getDE, set: (*CPU).setDE},
	{get: (*CPU).getHL, set: (*CPU).setHL},
	{get: (*CPU).SP, set: func(c *CPU, v uint16) { c.sp = v }},
}

// conditions are the cc operand slots: NZ, Z, NC, C.
var conditions = [4]func(*CPU) bool{
	func(c *CPU) bool { return !c.isSetFlag(zeroFlag) },
	func(c *CPU) bool { return c.isSetFlag(zeroFlag) },
	func(c *CPU) bool { return !c.isSetFlag(carryFlag) },
	func(c *CPU) bool { return c.isSetFlag(carryFlag) },
}

// aluOps are the regular arithmetic group in encoding order:
// ADD, ADC, SUB, SBC, AND, XOR, OR, CP.
var aluOps = [8]func(*CPU, uint8){
	func(c *CPU, v uint8) { c.addToA(v, false) },
	func(c *CPU, v uint8) { c.addToA(v, true) },
	func(c *CPU, v uint8) { c.subFromA(v, false, true) },
	func(c *CPU, v uint8) { c.subFromA(v, true, true) },
	(*CPU).andA,
	(*CPU).xorA,
	(*CPU).orA,
	func(c *CPU, v uint8) { c.subFromA(v, false, false) },
}

func init() {
	buildRegularBlocks()
	buildControlFlow()
	buildSingles()
	buildExtendedTable()
}

// buildRegularBlocks fills the quadrants that follow the 8-slot operand
// encoding. Entries that belong to other groups (HALT at 0x76) are
// assigned elsewhere.
func buildRegularBlocks() {
	// LD r, r'
	for i := 0; i < 0x40; i++ {
		op := 0x40 + i
		if op == 0x76 {
			continue
		}
		dst, src := targets[i>>3], targets[i&7]
		cost := 4
		if dst.mem || src.mem {
			cost = 8
		}
		primaryTable[op] = func(c *CPU) int {
			dst.set(c, src.get(c))
			return cost
		}
	}

	// Arithmetic on A: register forms at 0x80-0xBF, immediate forms in
	// the 0xC6 column.
	for i := 0; i < 0x40; i++ {
		fn, src := aluOps[i>>3], targets[i&7]
		cost := 4
		if src.mem {
			cost = 8
		}
		primaryTable[0x80+i] = func(c *CPU) int {
			fn(c, src.get(c))
			return cost
		}
	}
	for i, fn := range aluOps {
		fn := fn
		primaryTable[0xC6+i*8] = func(c *CPU) int {
			fn(c, c.readImmediate())
			return 8
		}
	}

	// INC r, DEC r, LD r, n
	for r, t := range targets {
		t := t
		base := r << 3
		rmwCost, loadCost := 4, 8
		if t.mem {
			rmwCost, loadCost = 12, 12
		}
		primaryTable[base+0x04] = func(c *CPU) int {
			t.set(c, c.inc(t.get(c)))
			return rmwCost
		}
		primaryTable[base+0x05] = func(c *CPU) int {
			t.set(c, c.dec(t.get(c)))
			return rmwCost
		}
		primaryTable[base+0x06] = func(c *CPU) int {
			t.set(c, c.readImmediate())
			return loadCost
		}
	}

	// 16-bit pair arithmetic and loads.
	for p, pair := range pairs {
		pair := pair
		base := p << 4
		primaryTable[base+0x01] = func(c *CPU) int {
			pair.set(c, c.readImmediateWord())
			return 12
		}
		primaryTable[base+0x03] = func(c *CPU) int {
			pair.set(c, pair.get(c)+1)
			return 8
		}
		primaryTable[base+0x09] = func(c *CPU) int {
			c.addToHL(pair.get(c))
			return 8
		}
		primaryTable[base+0x0B] = func(c *CPU) int {
			pair.set(c, pair.get(c)-1)
			return 8
		}
	}
}

// buildControlFlow fills the conditional jump/call/return columns and the
// stack and restart groups.
func buildControlFlow() {
	for i, cond := range conditions {
		cond := cond
		primaryTable[0x20+i*8] = func(c *CPU) int {
			if !cond(c) {
				c.pc++
				return 8
			}
			c.jr()
			return 12
		}
		primaryTable[0xC0+i*8] = func(c *CPU) int {
			if !cond(c) {
				return 8
			}
			c.pc = c.popStack()
			return 20
		}
		primaryTable[0xC2+i*8] = func(c *CPU) int {
			dest := c.readImmediateWord()
			if !cond(c) {
				return 12
			}
			c.pc = dest
			return 16
		}
		primaryTable[0xC4+i*8] = func(c *CPU) int {
			dest := c.readImmediateWord()
			if !cond(c) {
				return 12
			}
			c.call(dest)
			return 24
		}
	}

	// PUSH/POP walk BC, DE, HL, AF. Popping into AF keeps the low flag
	// bits zero.
	stackPairs := [4]struct {
		get func(*CPU) uint16
		set func(*CPU, uint16)
	}{
		{get: (*CPU).getBC, set: (*CPU).setBC},
		{get: (*CPU).getDE, set: (*CPU).setDE},
		{get: (*CPU).getHL, set: (*CPU).setHL},
		{get: (*CPU).getAF, set: (*CPU).setAF},
	}
	for p, pair := range stackPairs {
		pair := pair
		base := 0xC0 + p<<4
		primaryTable[base+0x01] = func(c *CPU) int {
			pair.set(c, c.popStack())
			return 12
		}
		primaryTable[base+0x05] = func(c *CPU) int {
			c.pushStack(pair.get(c))
			return 16
		}
	}

	// RST jumps to vector n*8.
	for n := 0; n < 8; n++ {
		vector := uint16(n * 8)
		primaryTable[0xC7+n*8] = func(c *CPU) int {
			c.call(vector)
			return 16
		}
	}
}

// buildSingles fills every opcode outside the regular encodings. The gaps
// left nil (0xD3, 0xDB, ...) are the unassigned opcodes; fetching one is
// reported as an error by Step.
func buildSingles() {
	primaryTable[0x00] = func(c *CPU) int { return 4 } // NOP

	// A transfers through the pair pointers.
	primaryTable[0x02] = func(c *CPU) int { c.bus.Write(c.getBC(), c.a); return 8 }
	primaryTable[0x12] = func(c *CPU) int { c.bus.Write(c.getDE(), c.a); return 8 }
	primaryTable[0x0A] = func(c *CPU) int { c.a = c.bus.Read(c.getBC()); return 8 }
	primaryTable[0x1A] = func(c *CPU) int { c.a = c.bus.Read(c.getDE()); return 8 }
	primaryTable[0x22] = func(c *CPU) int {
		c.bus.Write(c.getHL(), c.a)
		c.setHL(c.getHL() + 1)
		return 8
	}
	primaryTable[0x32] = func(c *CPU) int {
		c.bus.Write(c.getHL(), c.a)
		c.setHL(c.getHL() - 1)
		return 8
	}
	primaryTable[0x2A] = func(c *CPU) int {
		c.a = c.bus.Read(c.getHL())
		c.setHL(c.getHL() + 1)
		return 8
	}
	primaryTable[0x3A] = func(c *CPU) int {
		c.a = c.bus.Read(c.getHL())
		c.setHL(c.getHL() - 1)
		return 8
	}

	// The accumulator rotates clear the zero flag unconditionally,
	// unlike their CB-prefixed forms.
	primaryTable[0x07] = func(c *CPU) int {
		c.a = c.rlc(c.a)
		c.resetFlag(zeroFlag)
		return 4
	}
	primaryTable[0x0F] = func(c *CPU) int {
		c.a = c.rrc(c.a)
		c.resetFlag(zeroFlag)
		return 4
	}
	primaryTable[0x17] = func(c *CPU) int {
		c.a = c.rl(c.a)
		c.resetFlag(zeroFlag)
		return 4
	}
	primaryTable[0x1F] = func(c *CPU) int {
		c.a = c.rr(c.a)
		c.resetFlag(zeroFlag)
		return 4
	}

	primaryTable[0x08] = func(c *CPU) int { // LD (nn), SP
		address := c.readImmediateWord()
		c.bus.Write(address, uint8(c.sp))
		c.bus.Write(address+1, uint8(c.sp>>8))
		return 20
	}

	primaryTable[0x10] = func(c *CPU) int { // STOP
		c.readImmediate() // padding byte
		c.stopped = true
		c.bus.Write(addr.DIV, 0)
		return 4
	}

	primaryTable[0x18] = func(c *CPU) int { c.jr(); return 12 }

	primaryTable[0x27] = func(c *CPU) int { c.daa(); return 4 }
	primaryTable[0x2F] = func(c *CPU) int { // CPL
		c.a = ^c.a
		c.setFlag(subFlag)
		c.setFlag(halfCarryFlag)
		return 4
	}
	primaryTable[0x37] = func(c *CPU) int { // SCF
		c.setFlag(carryFlag)
		c.resetFlag(subFlag)
		c.resetFlag(halfCarryFlag)
		return 4
	}
	primaryTable[0x3F] = func(c *CPU) int { // CCF
		c.setFlagToCondition(carryFlag, !c.isSetFlag(carryFlag))
		c.resetFlag(subFlag)
		c.resetFlag(halfCarryFlag)
		return 4
	}

	primaryTable[0x76] = func(c *CPU) int { // HALT
		pending := c.bus.Read(addr.IE) & c.bus.Read(addr.IF) & 0x1F
		if !c.ime && !c.eiPending && pending != 0 {
			// Executing HALT with IME clear while an enabled interrupt
			// is already pending skips the halt and corrupts the next
			// fetch instead. An enable still in flight from EI means the
			// interrupt will be serviced normally on wake.
			c.haltBug = true
		} else {
			c.halted = true
		}
		return 4
	}

	primaryTable[0xC3] = func(c *CPU) int { c.pc = c.readImmediateWord(); return 16 }
	primaryTable[0xC9] = func(c *CPU) int { c.pc = c.popStack(); return 16 }
	primaryTable[0xCD] = func(c *CPU) int { c.call(c.readImmediateWord()); return 24 }
	primaryTable[0xD9] = func(c *CPU) int { // RETI enables IME with no delay
		c.pc = c.popStack()
		c.ime = true
		return 16
	}

	// High-page loads (0xFF00 + offset).
	primaryTable[0xE0] = func(c *CPU) int {
		c.bus.Write(0xFF00+uint16(c.readImmediate()), c.a)
		return 12
	}
	primaryTable[0xF0] = func(c *CPU) int {
		c.a = c.bus.Read(0xFF00 + uint16(c.readImmediate()))
		return 12
	}
	primaryTable[0xE2] = func(c *CPU) int {
		c.bus.Write(0xFF00+uint16(c.c), c.a)
		return 8
	}
	primaryTable[0xF2] = func(c *CPU) int {
		c.a = c.bus.Read(0xFF00 + uint16(c.c))
		return 8
	}

	primaryTable[0xE8] = func(c *CPU) int { c.sp = c.addSPOffset(); return 16 }
	primaryTable[0xF8] = func(c *CPU) int { c.setHL(c.addSPOffset()); return 12 }
	primaryTable[0xF9] = func(c *CPU) int { c.sp = c.getHL(); return 8 }

	primaryTable[0xE9] = func(c *CPU) int { c.pc = c.getHL(); return 4 }

	primaryTable[0xEA] = func(c *CPU) int {
		c.bus.Write(c.readImmediateWord(), c.a)
		return 16
	}
	primaryTable[0xFA] = func(c *CPU) int {
		c.a = c.bus.Read(c.readImmediateWord())
		return 16
	}

	primaryTable[0xF3] = func(c *CPU) int { // DI cancels a pending EI
		c.ime = false
		c.eiPending = false
		return 4
	}
	primaryTable[0xFB] = func(c *CPU) int { // EI
		c.eiPending = true
		return 4
	}
}
