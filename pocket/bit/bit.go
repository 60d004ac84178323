// Package bit provides the small byte/word helpers the emulator uses in
// hot paths.
package bit

// Combine joins two bytes into a 16 bit value, high byte first.
func Combine(high, low uint8) uint16 {
	return uint16(high)<<8 | uint16(low)
}

// High returns the most significant byte of a 16 bit value.
func High(value uint16) uint8 {
	return uint8(value >> 8)
}

// Low returns the least significant byte of a 16 bit value.
func Low(value uint16) uint8 {
	return uint8(value)
}

// IsSet reports whether the bit at index is 1.
func IsSet(index, value uint8) bool {
	return value>>index&1 == 1
}

// IsSet16 reports whether the bit at index of a 16 bit value is 1.
func IsSet16(index uint8, value uint16) bool {
	return value>>index&1 == 1
}

// Set returns value with the bit at index set to 1.
func Set(index, value uint8) uint8 {
	return value | 1<<index
}

// Clear returns value with the bit at index set to 0.
func Clear(index, value uint8) uint8 {
	return value &^ (1 << index)
}
