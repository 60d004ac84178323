package cpu

import "github.com/solivar/go-pocket/pocket/bit"

func (c *CPU) pushStack(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

func (c *CPU) inc(value uint8) uint8 {
	result := value + 1

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, value&0xF == 0xF)

	return result
}

func (c *CPU) dec(value uint8) uint8 {
	result := value - 1

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, value&0xF == 0)

	return result
}

// addToA adds value (plus the carry flag when withCarry) into A.
func (c *CPU) addToA(value uint8, withCarry bool) {
	var carryIn uint8
	if withCarry {
		carryIn = c.flagToBit(carryFlag)
	}

	sum := uint16(c.a) + uint16(value) + uint16(carryIn)
	halfSum := c.a&0xF + value&0xF + carryIn
	result := uint8(sum)

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, halfSum > 0xF)
	c.setFlagToCondition(carryFlag, sum > 0xFF)

	c.a = result
}

// subFromA subtracts value (plus the carry flag when withCarry) from A.
// With store=false only the flags change, which is CP.
func (c *CPU) subFromA(value uint8, withCarry, store bool) {
	var carryIn uint8
	if withCarry {
		carryIn = c.flagToBit(carryFlag)
	}

	diff := int(c.a) - int(value) - int(carryIn)
	halfDiff := int(c.a&0xF) - int(value&0xF) - int(carryIn)
	result := uint8(diff)

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, halfDiff < 0)
	c.setFlagToCondition(carryFlag, diff < 0)

	if store {
		c.a = result
	}
}

func (c *CPU) andA(value uint8) {
	c.a &= value

	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) orA(value uint8) {
	c.a |= value

	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) xorA(value uint8) {
	c.a ^= value

	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) addToHL(value uint16) {
	hl := c.getHL()
	sum := uint32(hl) + uint32(value)

	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, hl&0xFFF+value&0xFFF > 0xFFF)
	c.setFlagToCondition(carryFlag, sum > 0xFFFF)

	c.setHL(uint16(sum))
}

// addSPOffset computes SP plus a signed immediate. The flags come from
// unsigned byte arithmetic on the low byte, regardless of the sign.
func (c *CPU) addSPOffset() uint16 {
	offset := c.readSignedImmediate()
	unsigned := uint8(offset)

	c.resetFlag(zeroFlag)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.sp&0xF+uint16(unsigned&0xF) > 0xF)
	c.setFlagToCondition(carryFlag, c.sp&0xFF+uint16(unsigned) > 0xFF)

	return c.sp + uint16(int16(offset))
}

// Rotates and shifts. These set the zero flag from the result, matching
// the CB-prefixed forms; the four A-register opcodes clear it afterwards.

func (c *CPU) rlc(value uint8) uint8 {
	result := value<<1 | value>>7

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value > 0x7F)

	return result
}

func (c *CPU) rl(value uint8) uint8 {
	result := value<<1 | c.flagToBit(carryFlag)

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value > 0x7F)

	return result
}

func (c *CPU) rrc(value uint8) uint8 {
	result := value>>1 | value<<7

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value&1 != 0)

	return result
}

func (c *CPU) rr(value uint8) uint8 {
	result := value>>1 | c.flagToBit(carryFlag)<<7

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value&1 != 0)

	return result
}

func (c *CPU) sla(value uint8) uint8 {
	result := value << 1

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value > 0x7F)

	return result
}

// sra shifts right keeping bit 7 (arithmetic shift).
func (c *CPU) sra(value uint8) uint8 {
	result := value>>1 | value&0x80

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value&1 != 0)

	return result
}

func (c *CPU) srl(value uint8) uint8 {
	result := value >> 1

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, value&1 != 0)

	return result
}

func (c *CPU) swap(value uint8) uint8 {
	result := value<<4 | value>>4

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)

	return result
}

func (c *CPU) bitTest(index uint8, value uint8) {
	c.setFlagToCondition(zeroFlag, !bit.IsSet(index, value))
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
}

// daa adjusts A back to packed BCD after an add or subtract.
func (c *CPU) daa() {
	a := uint16(c.a)

	if c.isSetFlag(subFlag) {
		if c.isSetFlag(halfCarryFlag) {
			a -= 0x06
		}
		if c.isSetFlag(carryFlag) {
			a -= 0x60
		}
	} else {
		if c.isSetFlag(halfCarryFlag) || a&0x0F > 0x09 {
			a += 0x06
		}
		if c.isSetFlag(carryFlag) || a > 0x9F {
			a += 0x60
			c.setFlag(carryFlag)
		}
	}

	c.a = uint8(a)
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(halfCarryFlag)
}

// jr applies a signed relative jump from the byte following the operand.
func (c *CPU) jr() {
	offset := c.readSignedImmediate()
	c.pc += uint16(int16(offset))
}

func (c *CPU) call(target uint16) {
	c.pushStack(c.pc)
	c.pc = target
}
