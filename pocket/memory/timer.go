package memory

import (
	"github.com/solivar/go-pocket/pocket/addr"
	"github.com/solivar/go-pocket/pocket/bit"
)

// tapBits maps the TAC clock select (bits 1-0) to the bit of the internal
// divider whose falling edge increments TIMA:
//
//	00 -> bit 9 (4096 Hz)
//	01 -> bit 3 (262144 Hz)
//	10 -> bit 5 (65536 Hz)
//	11 -> bit 7 (16384 Hz)
var tapBits = [4]uint8{9, 3, 5, 7}

// overflowWindow is how long TIMA reads 0 after overflowing before the
// reload from TMA and the interrupt request happen: one machine cycle.
const overflowWindow = 4

// Timer implements DIV/TIMA/TMA/TAC. The divider is a 16-bit counter that
// increments every T-cycle; DIV is its top byte. TIMA increments whenever
// the selected divider bit falls while the timer is enabled, which makes
// the DIV-write reset able to produce one spurious increment.
type Timer struct {
	divider  uint16
	tima     byte
	tma      byte
	tac      byte
	lastEdge bool
	overflow int // T-cycles left in the post-overflow reload window

	// RequestInterrupt is called when TIMA reloads after an overflow.
	RequestInterrupt func()
}

// Tick advances the timer by the given number of T-cycles.
func (t *Timer) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		t.divider++

		if t.overflow > 0 {
			t.overflow--
			if t.overflow == 0 {
				t.tima = t.tma
				if t.RequestInterrupt != nil {
					t.RequestInterrupt()
				}
			}
		}

		t.syncEdge()
	}
}

// syncEdge recomputes the selected divider bit and increments TIMA on a
// falling edge. Every path that can move the edge input (divider ticks,
// DIV resets, TAC rewrites) funnels through here so glitch increments
// come out of the same detection instead of special cases.
func (t *Timer) syncEdge() {
	edge := bit.IsSet(2, t.tac) && bit.IsSet16(tapBits[t.tac&0x03], t.divider)
	if t.lastEdge && !edge {
		t.increment()
	}
	t.lastEdge = edge
}

func (t *Timer) increment() {
	t.tima++
	if t.tima == 0 {
		// Holds zero until the window elapses, then reloads from TMA.
		t.overflow = overflowWindow
	}
}

func (t *Timer) Read(address uint16) byte {
	switch address {
	case addr.DIV:
		return byte(t.divider >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	default:
		return 0xFF
	}
}

func (t *Timer) Write(address uint16, value byte) {
	switch address {
	case addr.DIV:
		t.divider = 0
		t.syncEdge()
	case addr.TIMA:
		if t.overflow > 0 {
			// A TIMA write inside the reload window cancels both the
			// pending reload and the interrupt.
			t.overflow = 0
		}
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
		t.syncEdge()
	}
}

// Reset returns the timer to its power-on state.
func (t *Timer) Reset() {
	t.divider = 0
	t.tima = 0
	t.tma = 0
	t.tac = 0
	t.lastEdge = false
	t.overflow = 0
}
