package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bankedROM builds a ROM where every byte of bank n reads as n.
func bankedROM(banks int) []byte {
	rom := make([]byte, banks*romBankSize)
	for i := range rom {
		rom[i] = byte(i / romBankSize)
	}
	return rom
}

func TestMBC1BankSelect(t *testing.T) {
	m := newMBC1(bankedROM(8), 8, 0)

	assert.Equal(t, byte(0), m.Read(0x0000), "low window is always bank 0")
	assert.Equal(t, byte(1), m.Read(0x4000), "bank 1 selected at reset")

	m.Write(0x2000, 3)
	assert.Equal(t, byte(3), m.Read(0x4000))
	assert.Equal(t, byte(0), m.Read(0x3FFF), "low window unaffected by select")
}

func TestMBC1BankZeroPassThrough(t *testing.T) {
	m := newMBC1(bankedROM(4), 4, 0)

	m.Write(0x2000, 0)
	assert.Equal(t, byte(1), m.Read(0x4000), "selecting bank 0 maps to bank 1")
}

func TestMBC1BankWraparound(t *testing.T) {
	m := newMBC1(bankedROM(4), 4, 0)

	// Banks 4, 5, 6... alias to 0, 1, 2 on a 4-bank image.
	for _, tt := range []struct{ sel, want byte }{{4, 0}, {5, 1}, {6, 2}, {7, 3}} {
		m.Write(0x2000, tt.sel)
		assert.Equal(t, tt.want, m.Read(0x4000), "bank %d should alias to %d", tt.sel, tt.want)
	}
}

func TestMBC1RAMEnableLatch(t *testing.T) {
	m := newMBC1(bankedROM(2), 2, 1)

	assert.Equal(t, byte(0xFF), m.Read(0xA000), "disabled RAM reads open bus")

	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x42)
	assert.Equal(t, byte(0x42), m.Read(0xA000))

	m.Write(0x0000, 0x00)
	assert.Equal(t, byte(0xFF), m.Read(0xA000))

	m.Write(0x0000, 0x0A)
	assert.Equal(t, byte(0x42), m.Read(0xA000), "contents survive the disable")
}

func TestMBC1RAMBanking(t *testing.T) {
	m := newMBC1(bankedROM(2), 2, 4)
	m.Write(0x0000, 0x0A)
	m.Write(0x6000, 1) // RAM banking mode

	for b := byte(0); b < 4; b++ {
		m.Write(0x4000, b)
		m.Write(0xA000, 0x40+b)
	}
	for b := byte(0); b < 4; b++ {
		m.Write(0x4000, b)
		assert.Equal(t, 0x40+b, m.Read(0xA000))
	}
}

func TestFlatROM(t *testing.T) {
	rom := bankedROM(2)
	f := newFlatROM(rom, 0)

	assert.Equal(t, byte(0), f.Read(0x1000))
	assert.Equal(t, byte(1), f.Read(0x7FFF))

	// Control writes are inert with no controller.
	f.Write(0x2000, 2)
	assert.Equal(t, byte(1), f.Read(0x4000))

	// No RAM fitted: the external window is open bus.
	f.Write(0xA000, 0x42)
	assert.Equal(t, byte(0xFF), f.Read(0xA000))
}

func TestFlatROMWithRAM(t *testing.T) {
	f := newFlatROM(bankedROM(2), 1)

	// Unbanked RAM has no enable latch.
	f.Write(0xA000, 0x42)
	assert.Equal(t, byte(0x42), f.Read(0xA000))
	f.Write(0xBFFF, 0x24)
	assert.Equal(t, byte(0x24), f.Read(0xBFFF))

	blob := f.ExportSave()
	restored := newFlatROM(bankedROM(2), 1)
	require.NoError(t, restored.ImportSave(blob))
	assert.Equal(t, byte(0x42), restored.Read(0xA000))
}

func TestMBC2BankSelect(t *testing.T) {
	m := newMBC2(bankedROM(4), 4)

	assert.Equal(t, byte(0), m.Read(0x0000), "low window is always bank 0")
	assert.Equal(t, byte(1), m.Read(0x4000), "bank 1 selected at reset")

	// Bank select needs address bit 8 set; writes with it clear hit
	// the RAM enable latch instead.
	m.Write(0x2100, 3)
	assert.Equal(t, byte(3), m.Read(0x4000))
	m.Write(0x2000, 2)
	assert.Equal(t, byte(3), m.Read(0x4000), "bit-8-clear write must not change the bank")

	m.Write(0x2100, 0)
	assert.Equal(t, byte(1), m.Read(0x4000), "bank 0 pass-through")

	m.Write(0x2100, 6) // wraps on a 4-bank image
	assert.Equal(t, byte(2), m.Read(0x4000))
}

func TestMBC2RAMEnableLatch(t *testing.T) {
	m := newMBC2(bankedROM(2), 2)

	assert.Equal(t, byte(0xFF), m.Read(0xA000), "disabled RAM reads open bus")
	m.Write(0xA000, 0x05)
	assert.Equal(t, byte(0xFF), m.Read(0xA000), "writes ignored while disabled")

	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x05)
	assert.Equal(t, byte(0xF5), m.Read(0xA000))

	// A write with address bit 8 set selects the bank, not the latch.
	m.Write(0x0100, 0x00)
	assert.Equal(t, byte(0xF5), m.Read(0xA000), "RAM must stay enabled")

	m.Write(0x0000, 0x00)
	assert.Equal(t, byte(0xFF), m.Read(0xA000))
}

func TestMBC2NibbleRAM(t *testing.T) {
	m := newMBC2(bankedROM(2), 2)
	m.Write(0x0000, 0x0A)

	// Only the low nibble of each cell is stored.
	m.Write(0xA000, 0xA7)
	assert.Equal(t, byte(0xF7), m.Read(0xA000))

	m.Write(0xA1FF, 0x03)
	assert.Equal(t, byte(0xF3), m.Read(0xA1FF), "last cell of the 512-nibble array")
	assert.Equal(t, byte(0xFF), m.Read(0xA200), "window ends at 0xA1FF")

	blob := m.ExportSave()
	restored := newMBC2(bankedROM(2), 2)
	require.NoError(t, restored.ImportSave(blob))
	restored.Write(0x0000, 0x0A)
	assert.Equal(t, byte(0xF7), restored.Read(0xA000))
	assert.Equal(t, byte(0xF3), restored.Read(0xA1FF))
}

func TestMBC3BankSelect(t *testing.T) {
	m := newMBC3(bankedROM(8), 8, 0, false, nil)

	m.Write(0x2000, 5)
	assert.Equal(t, byte(5), m.Read(0x4000))

	m.Write(0x2000, 0)
	assert.Equal(t, byte(1), m.Read(0x4000), "bank 0 pass-through")

	m.Write(0x2000, 12) // wraps on an 8-bank image
	assert.Equal(t, byte(4), m.Read(0x4000))
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestMBC3RTCLatchProtocol(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newMBC3(bankedROM(2), 2, 1, true, clock)

	m.Write(0x0000, 0x0A)
	clock.advance(90 * time.Second)

	// Before a latch the registers read the stale snapshot.
	m.Write(0x4000, 0x08)
	assert.Equal(t, byte(0), m.Read(0xA000))

	// Latch: write 0x00 then 0x01.
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01)

	m.Write(0x4000, 0x08)
	assert.Equal(t, byte(30), m.Read(0xA000), "seconds")
	m.Write(0x4000, 0x09)
	assert.Equal(t, byte(1), m.Read(0xA000), "minutes")

	// Latched values hold while time moves on.
	clock.advance(45 * time.Second)
	m.Write(0x4000, 0x08)
	assert.Equal(t, byte(30), m.Read(0xA000))

	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01)
	m.Write(0x4000, 0x08)
	assert.Equal(t, byte(15), m.Read(0xA000))
	m.Write(0x4000, 0x09)
	assert.Equal(t, byte(2), m.Read(0xA000))
}

func TestMBC3RTCHaltFlagFreezes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newMBC3(bankedROM(2), 2, 1, true, clock)
	m.Write(0x0000, 0x0A)

	m.Write(0x4000, 0x0C)
	m.Write(0xA000, 0x40) // set halt flag

	clock.advance(10 * time.Minute)
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01)

	m.Write(0x4000, 0x08)
	assert.Equal(t, byte(0), m.Read(0xA000), "halted clock must not advance")
}

func TestSaveBlobRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newMBC3(bankedROM(2), 2, 2, true, clock)
	m.Write(0x0000, 0x0A)

	// Scribble over both RAM banks.
	for b := byte(0); b < 2; b++ {
		m.Write(0x4000, b)
		for i := uint16(0); i < 16; i++ {
			m.Write(0xA000+i, byte(i)^(b<<4))
		}
	}

	blob := m.ExportSave()
	require.NotEmpty(t, blob)

	restored := newMBC3(bankedROM(2), 2, 2, true, clock)
	require.NoError(t, restored.ImportSave(blob))
	restored.Write(0x0000, 0x0A)

	for b := byte(0); b < 2; b++ {
		m.Write(0x4000, b)
		restored.Write(0x4000, b)
		for i := uint16(0); i < ramBankSize; i++ {
			if m.Read(0xA000+i) != restored.Read(0xA000+i) {
				t.Fatalf("bank %d offset 0x%04X differs after round trip", b, i)
			}
		}
	}
}

func TestSaveBlobSizeMismatchRejected(t *testing.T) {
	a := newMBC1(bankedROM(2), 2, 1)
	blob := a.ExportSave()

	b := newMBC1(bankedROM(2), 2, 4)
	assert.Error(t, b.ImportSave(blob))
	assert.Error(t, b.ImportSave([]byte{1, 2, 3}))
}
