package memory

import (
	"fmt"
	"strings"
)

// Cartridge header layout.
const (
	titleOffset          = 0x134
	titleLength          = 11
	cartTypeOffset       = 0x147
	romSizeOffset        = 0x148
	ramSizeOffset        = 0x149
	headerChecksumOffset = 0x14D
	headerEnd            = 0x150

	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// ControllerKind classifies the bank controller a cartridge carries.
type ControllerKind uint8

const (
	// ControllerNone is a direct-mapped 32KB image with no banking.
	ControllerNone ControllerKind = iota
	// ControllerMBC1 is the common 5+2 bit bank-select controller.
	ControllerMBC1
	// ControllerMBC2 carries a 4-bit bank select and 512 nibbles of
	// built-in RAM addressed through 0xA000-0xA1FF.
	ControllerMBC2
	// ControllerMBC3 adds RAM banking and the latched real-time clock.
	ControllerMBC3
)

func (k ControllerKind) String() string {
	switch k {
	case ControllerNone:
		return "none"
	case ControllerMBC1:
		return "MBC1"
	case ControllerMBC2:
		return "MBC2"
	case ControllerMBC3:
		return "MBC3"
	}
	return fmt.Sprintf("ControllerKind(%d)", uint8(k))
}

// Cartridge is a classified ROM image: the raw bytes plus everything the
// core needs to pick and size a bank controller. Build one with Load.
type Cartridge struct {
	data       []byte
	title      string
	kind       ControllerKind
	romBanks   int
	ramBanks   int
	hasBattery bool
	hasRTC     bool
}

// Load parses and validates a raw ROM image. Malformed images (truncated
// header, bad checksum, unknown controller byte, declared size exceeding
// the actual byte length) are rejected here, before any component is
// constructed.
func Load(data []byte) (*Cartridge, error) {
	if len(data) < headerEnd {
		return nil, fmt.Errorf("cartridge: image too small for a header (%d bytes)", len(data))
	}

	if sum := headerChecksum(data); sum != data[headerChecksumOffset] {
		return nil, fmt.Errorf("cartridge: header checksum mismatch (computed 0x%02X, header 0x%02X)",
			sum, data[headerChecksumOffset])
	}

	c := &Cartridge{
		data:  data,
		title: cleanTitle(data[titleOffset : titleOffset+titleLength]),
	}

	switch data[cartTypeOffset] {
	case 0x00:
		c.kind = ControllerNone
	case 0x01, 0x02:
		c.kind = ControllerMBC1
	case 0x03:
		c.kind = ControllerMBC1
		c.hasBattery = true
	case 0x05:
		c.kind = ControllerMBC2
	case 0x06:
		c.kind = ControllerMBC2
		c.hasBattery = true
	case 0x08:
		c.kind = ControllerNone
	case 0x09:
		c.kind = ControllerNone
		c.hasBattery = true
	case 0x0F, 0x10:
		c.kind = ControllerMBC3
		c.hasBattery = true
		c.hasRTC = true
	case 0x11, 0x12:
		c.kind = ControllerMBC3
	case 0x13:
		c.kind = ControllerMBC3
		c.hasBattery = true
	default:
		return nil, fmt.Errorf("cartridge: unsupported controller byte 0x%02X", data[cartTypeOffset])
	}

	romCode := data[romSizeOffset]
	if romCode > 0x08 {
		return nil, fmt.Errorf("cartridge: invalid ROM size code 0x%02X", romCode)
	}
	c.romBanks = 2 << romCode

	switch data[ramSizeOffset] {
	case 0x00, 0x01:
		c.ramBanks = 0
	case 0x02:
		c.ramBanks = 1
	case 0x03:
		c.ramBanks = 4
	case 0x04:
		c.ramBanks = 16
	case 0x05:
		c.ramBanks = 8
	default:
		return nil, fmt.Errorf("cartridge: invalid RAM size code 0x%02X", data[ramSizeOffset])
	}

	if declared := c.romBanks * romBankSize; declared > len(data) {
		return nil, fmt.Errorf("cartridge: header declares %d bytes but image has %d", declared, len(data))
	}
	if c.kind == ControllerNone && c.romBanks > 2 {
		return nil, fmt.Errorf("cartridge: unbanked image declares %d ROM banks", c.romBanks)
	}
	if c.kind == ControllerMBC2 && c.romBanks > 16 {
		return nil, fmt.Errorf("cartridge: MBC2 image declares %d ROM banks, controller addresses 16", c.romBanks)
	}

	return c, nil
}

// Title returns the cleaned-up cartridge title.
func (c *Cartridge) Title() string { return c.title }

// Kind returns the classified bank controller kind.
func (c *Cartridge) Kind() ControllerKind { return c.kind }

// ROMBanks returns the number of 16KB ROM banks the image declares.
func (c *Cartridge) ROMBanks() int { return c.romBanks }

// RAMBanks returns the number of 8KB external RAM banks.
func (c *Cartridge) RAMBanks() int { return c.ramBanks }

// HasBattery reports whether external RAM is battery backed.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// HasRTC reports whether the cartridge carries the real-time clock.
func (c *Cartridge) HasRTC() bool { return c.hasRTC }

// headerChecksum computes the 8-bit checksum over 0x134-0x14C the way the
// boot ROM does.
func headerChecksum(data []byte) byte {
	var sum byte
	for i := 0x134; i <= 0x14C; i++ {
		sum = sum - data[i] - 1
	}
	return sum
}

func cleanTitle(raw []byte) string {
	var b strings.Builder
	for _, ch := range raw {
		if ch == 0 {
			break
		}
		if ch < 0x20 || ch > 0x7E {
			ch = '?'
		}
		b.WriteByte(ch)
	}
	return strings.TrimSpace(b.String())
}
