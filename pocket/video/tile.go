package video

import "github.com/solivar/go-pocket/pocket/bit"

// Tiles are 8x8 pixels at 2 bits per pixel, stored as two bit planes per
// row: the low byte holds bit 0 of each pixel, the high byte bit 1, with
// bit 7 as the leftmost pixel.
//
//	Low  (0x3C): 0 0 1 1 1 1 0 0
//	High (0x7E): 0 1 1 1 1 1 1 0
//	Indexes:     0 2 3 3 3 3 2 0
type tileRow struct {
	low  byte
	high byte
}

// pixel returns the 2-bit color index at x (0 = leftmost).
func (r tileRow) pixel(x int) uint8 {
	idx := uint8(7 - x)
	var p uint8
	if bit.IsSet(idx, r.low) {
		p |= 1
	}
	if bit.IsSet(idx, r.high) {
		p |= 2
	}
	return p
}

// paletteShade maps a color index through a BGP/OBP palette register.
func paletteShade(palette byte, index uint8) Shade {
	return Shade(palette >> (2 * index) & 0x03)
}
