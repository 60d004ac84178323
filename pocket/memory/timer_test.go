package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solivar/go-pocket/pocket/addr"
)

func newTestTimer() (*Timer, *int) {
	t := &Timer{}
	requests := 0
	t.RequestInterrupt = func() { requests++ }
	return t, &requests
}

func TestTimerDIVIncrements(t *testing.T) {
	tm, _ := newTestTimer()

	assert.Equal(t, byte(0), tm.Read(addr.DIV))
	tm.Tick(256)
	assert.Equal(t, byte(1), tm.Read(addr.DIV))
	tm.Tick(256 * 10)
	assert.Equal(t, byte(11), tm.Read(addr.DIV))
}

func TestTimerDIVWriteResets(t *testing.T) {
	tm, _ := newTestTimer()

	tm.Tick(0x1234)
	tm.Write(addr.DIV, 0x55) // value is ignored, any write resets
	assert.Equal(t, byte(0), tm.Read(addr.DIV))
}

func TestTimerRates(t *testing.T) {
	// One TIMA increment needs a full period of the selected tap bit.
	tests := []struct {
		name   string
		tac    byte
		period int
	}{
		{"4096 Hz", 0x04, 1024},
		{"262144 Hz", 0x05, 16},
		{"65536 Hz", 0x06, 64},
		{"16384 Hz", 0x07, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, _ := newTestTimer()
			tm.Write(addr.TAC, tt.tac)

			tm.Tick(tt.period * 5)
			assert.Equal(t, byte(5), tm.Read(addr.TIMA))
		})
	}
}

func TestTimerDisabledDoesNotCount(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Write(addr.TAC, 0x00)

	tm.Tick(1024 * 8)
	assert.Equal(t, byte(0), tm.Read(addr.TIMA))
}

func TestTimerOverflowReloadsAndRequests(t *testing.T) {
	tm, requests := newTestTimer()
	tm.Write(addr.TAC, 0x05) // enabled, period 16
	tm.Write(addr.TMA, 0xAB)
	tm.Write(addr.TIMA, 0xFF)

	// Run up to the overflow edge.
	tm.Tick(16)
	assert.Equal(t, byte(0), tm.Read(addr.TIMA), "TIMA holds zero during the reload window")
	assert.Equal(t, 0, *requests)

	// One machine cycle later the reload and the request land together.
	tm.Tick(4)
	assert.Equal(t, byte(0xAB), tm.Read(addr.TIMA))
	assert.Equal(t, 1, *requests)
}

func TestTimerTMAWriteDuringWindowChangesReload(t *testing.T) {
	tm, requests := newTestTimer()
	tm.Write(addr.TAC, 0x05)
	tm.Write(addr.TMA, 0x10)
	tm.Write(addr.TIMA, 0xFF)

	tm.Tick(16) // overflow, window open
	tm.Write(addr.TMA, 0x42)
	tm.Tick(4)

	assert.Equal(t, byte(0x42), tm.Read(addr.TIMA))
	assert.Equal(t, 1, *requests)
}

func TestTimerTIMAWriteDuringWindowCancelsReload(t *testing.T) {
	tm, requests := newTestTimer()
	tm.Write(addr.TAC, 0x05)
	tm.Write(addr.TMA, 0x10)
	tm.Write(addr.TIMA, 0xFF)

	tm.Tick(16) // overflow, window open
	tm.Write(addr.TIMA, 0x77)
	tm.Tick(8)

	assert.Equal(t, byte(0x77), tm.Read(addr.TIMA))
	assert.Equal(t, 0, *requests, "cancelled reload must not request an interrupt")
}

func TestTimerDIVWriteGlitchIncrement(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Write(addr.TAC, 0x05) // tap bit 3

	// Advance until the tap bit is high, then reset DIV: the bit falls
	// from 1 to 0, which reads as a falling edge and increments TIMA.
	tm.Tick(8) // divider = 8, bit 3 set
	assert.Equal(t, byte(0), tm.Read(addr.TIMA))

	tm.Write(addr.DIV, 0)
	assert.Equal(t, byte(1), tm.Read(addr.TIMA), "DIV reset should produce exactly one spurious increment")

	// Resetting again with the bit already low does nothing.
	tm.Write(addr.DIV, 0)
	assert.Equal(t, byte(1), tm.Read(addr.TIMA))
}

func TestTimerTACReadUpperBitsHigh(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Write(addr.TAC, 0x05)
	assert.Equal(t, byte(0xFD), tm.Read(addr.TAC))
}
