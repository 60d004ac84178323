package cpu

import "github.com/solivar/go-pocket/pocket/bit"

// The CB-prefixed page is fully regular: four 64-opcode blocks of
// rotate/shift, BIT, RES and SET over the 8 operand slots.

// rotOps are the rotate/shift group in encoding order:
// RLC, RRC, RL, RR, SLA, SRA, SWAP, SRL.
var rotOps = [8]func(*CPU, uint8) uint8{
	(*CPU).rlc,
	(*CPU).rrc,
	(*CPU).rl,
	(*CPU).rr,
	(*CPU).sla,
	(*CPU).sra,
	(*CPU).swap,
	(*CPU).srl,
}

func buildExtendedTable() {
	for i := 0; i < 0x40; i++ {
		fn, t := rotOps[i>>3], targets[i&7]
		cost := 8
		if t.mem {
			cost = 16
		}
		extendedTable[i] = func(c *CPU) int {
			t.set(c, fn(c, t.get(c)))
			return cost
		}
	}

	// BIT only reads, so its (HL) form is cheaper than the writing ones.
	for i := 0x40; i < 0x80; i++ {
		index, t := uint8(i>>3)&7, targets[i&7]
		cost := 8
		if t.mem {
			cost = 12
		}
		extendedTable[i] = func(c *CPU) int {
			c.bitTest(index, t.get(c))
			return cost
		}
	}

	for i := 0x80; i < 0xC0; i++ {
		index, t := uint8(i>>3)&7, targets[i&7]
		cost := 8
		if t.mem {
			cost = 16
		}
		extendedTable[i] = func(c *CPU) int {
			t.set(c, bit.Clear(index, t.get(c)))
			return cost
		}
	}

	for i := 0xC0; i < 0x100; i++ {
		index, t := uint8(i>>3)&7, targets[i&7]
		cost := 8
		if t.mem {
			cost = 16
		}
		extendedTable[i] = func(c *CPU) int {
			t.set(c, bit.Set(index, t.get(c)))
			return cost
		}
	}
}
