package memory

import (
	"encoding/binary"
	"fmt"
	"time"
)

// BankController resolves accesses to the cartridge ROM and external RAM
// windows. Writes into the ROM range are control writes (bank select, RAM
// enable, clock latch), never data writes. A controller is selected once
// at load time from the cartridge classification and never changed.
type BankController interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// BatteryBacked is implemented by controllers whose external RAM (and
// clock, when present) persists across runs as an opaque blob.
type BatteryBacked interface {
	ExportSave() []byte
	ImportSave(blob []byte) error
}

// newBankController instantiates the controller for a classified image.
func newBankController(c *Cartridge, clock Clock) BankController {
	switch c.kind {
	case ControllerNone:
		return newFlatROM(c.data, c.ramBanks)
	case ControllerMBC1:
		return newMBC1(c.data, c.romBanks, c.ramBanks)
	case ControllerMBC2:
		return newMBC2(c.data, c.romBanks)
	case ControllerMBC3:
		return newMBC3(c.data, c.romBanks, c.ramBanks, c.hasRTC, clock)
	}
	panic(fmt.Sprintf("unreachable controller kind %d", c.kind))
}

// bankOffset reduces a requested bank index modulo the banks physically
// present. Selecting a bank past the end of an odd-sized image aliases
// back into it, matching hardware.
func bankOffset(bank, bankCount, bankSize int) int {
	if bankCount == 0 {
		return 0
	}
	return (bank % bankCount) * bankSize
}

// flatROM is the no-controller case: a 32KB image mapped directly. A
// few unbanked cartridges still carry external RAM; it sits at 0xA000
// with no enable gate, so control writes into the ROM range do nothing.
type flatROM struct {
	rom []byte
	ram []byte
}

func newFlatROM(rom []byte, ramBanks int) *flatROM {
	return &flatROM{
		rom: rom,
		ram: make([]byte, ramBanks*ramBankSize),
	}
}

func (f *flatROM) Read(address uint16) byte {
	switch {
	case int(address) < len(f.rom) && address <= 0x7FFF:
		return f.rom[address]
	case address >= 0xA000 && address <= 0xBFFF:
		if offset := int(address - 0xA000); offset < len(f.ram) {
			return f.ram[offset]
		}
	}
	return 0xFF
}

func (f *flatROM) Write(address uint16, value byte) {
	if address >= 0xA000 && address <= 0xBFFF {
		if offset := int(address - 0xA000); offset < len(f.ram) {
			f.ram[offset] = value
		}
	}
}

func (f *flatROM) ExportSave() []byte {
	return exportSave(f.ram, nil)
}

func (f *flatROM) ImportSave(blob []byte) error {
	return importSave(blob, f.ram, nil)
}

// mbc1 is the common bank-select controller: 5-bit ROM bank select with a
// 2-bit extension that serves as either the ROM bank high bits or the RAM
// bank, depending on the banking mode latch.
type mbc1 struct {
	rom      []byte
	ram      []byte
	romBanks int
	ramBanks int

	bankLow    uint8 // 5-bit ROM bank select, 0 reads as 1
	bankHigh   uint8 // 2-bit extension
	mode       uint8
	ramEnabled bool
}

func newMBC1(rom []byte, romBanks, ramBanks int) *mbc1 {
	return &mbc1{
		rom:      rom,
		ram:      make([]byte, ramBanks*ramBankSize),
		romBanks: romBanks,
		ramBanks: ramBanks,
		bankLow:  1,
	}
}

func (m *mbc1) romBank() int {
	return int(m.bankHigh)<<5 | int(m.bankLow)
}

func (m *mbc1) ramBank() int {
	if m.mode == 1 {
		return int(m.bankHigh)
	}
	return 0
}

func (m *mbc1) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		offset := bankOffset(m.romBank(), m.romBanks, romBankSize)
		return m.rom[offset+int(address-0x4000)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := bankOffset(m.ramBank(), m.ramBanks, ramBankSize)
		return m.ram[offset+int(address-0xA000)]
	}
	return 0xFF
}

func (m *mbc1) Write(address uint16, value byte) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		// Bank 0 is a pass-through to bank 1 on this variant.
		m.bankLow = value & 0x1F
		if m.bankLow == 0 {
			m.bankLow = 1
		}
	case address <= 0x5FFF:
		m.bankHigh = value & 0x03
	case address <= 0x7FFF:
		m.mode = value & 0x01
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		offset := bankOffset(m.ramBank(), m.ramBanks, ramBankSize)
		m.ram[offset+int(address-0xA000)] = value
	}
}

func (m *mbc1) ExportSave() []byte {
	return exportSave(m.ram, nil)
}

func (m *mbc1) ImportSave(blob []byte) error {
	return importSave(blob, m.ram, nil)
}

// mbc2RAMSize is the controller's built-in RAM: 512 half-byte cells
// mapped at 0xA000-0xA1FF. The header RAM size code stays zero for
// these cartridges; the RAM comes with the controller itself.
const mbc2RAMSize = 512

// mbc2 is the small-cartridge controller: a 4-bit ROM bank select and
// built-in nibble RAM. Both control registers share the 0x0000-0x3FFF
// range and are told apart by address bit 8: clear selects the RAM
// enable latch, set selects the ROM bank.
type mbc2 struct {
	rom      []byte
	ram      []byte
	romBanks int

	romBank    uint8
	ramEnabled bool
}

func newMBC2(rom []byte, romBanks int) *mbc2 {
	return &mbc2{
		rom:      rom,
		ram:      make([]byte, mbc2RAMSize),
		romBanks: romBanks,
		romBank:  1,
	}
}

func (m *mbc2) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		offset := bankOffset(int(m.romBank), m.romBanks, romBankSize)
		return m.rom[offset+int(address-0x4000)]
	case address >= 0xA000 && address <= 0xA1FF:
		if !m.ramEnabled {
			return 0xFF
		}
		// Only the low nibble of each cell is wired.
		return 0xF0 | m.ram[address-0xA000]&0x0F
	}
	return 0xFF
}

func (m *mbc2) Write(address uint16, value byte) {
	switch {
	case address <= 0x3FFF:
		if address&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
			return
		}
		m.romBank = value & 0x0F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case address >= 0xA000 && address <= 0xA1FF:
		if m.ramEnabled {
			m.ram[address-0xA000] = value & 0x0F
		}
	}
}

func (m *mbc2) ExportSave() []byte {
	return exportSave(m.ram, nil)
}

func (m *mbc2) ImportSave(blob []byte) error {
	return importSave(blob, m.ram, nil)
}

// Clock abstracts wall-clock time so the RTC is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// rtcRegisterCount covers seconds, minutes, hours, day low, day high/flags.
const rtcRegisterCount = 5

// mbc3 adds RAM banking and a battery-backed real-time clock. The clock
// registers sit behind RAM bank selects 0x08-0x0C and are read through a
// latch protocol: writing 0x00 then 0x01 to the 0x6000 range freezes a
// snapshot of the counters until the next latch.
type mbc3 struct {
	rom      []byte
	ram      []byte
	romBanks int
	ramBanks int

	romBank    uint8
	ramBank    uint8 // also selects RTC registers 0x08-0x0C
	ramEnabled bool

	hasRTC    bool
	clock     Clock
	rtc       [rtcRegisterCount]byte // live counters
	rtcLatch  [rtcRegisterCount]byte // latched snapshot
	latchPrev byte
	rtcBase   time.Time // wall time of the last live-counter update
}

func newMBC3(rom []byte, romBanks, ramBanks int, hasRTC bool, clock Clock) *mbc3 {
	if hasRTC && clock == nil {
		clock = systemClock{}
	}
	m := &mbc3{
		rom:       rom,
		ram:       make([]byte, ramBanks*ramBankSize),
		romBanks:  romBanks,
		ramBanks:  ramBanks,
		romBank:   1,
		hasRTC:    hasRTC,
		clock:     clock,
		latchPrev: 0xFF,
	}
	if hasRTC {
		m.rtcBase = clock.Now()
	}
	return m
}

func (m *mbc3) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		offset := bankOffset(int(m.romBank), m.romBanks, romBankSize)
		return m.rom[offset+int(address-0x4000)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank <= 0x03 {
			if len(m.ram) == 0 {
				return 0xFF
			}
			offset := bankOffset(int(m.ramBank), m.ramBanks, ramBankSize)
			return m.ram[offset+int(address-0xA000)]
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.rtcLatch[m.ramBank-0x08]
		}
		return 0xFF
	}
	return 0xFF
}

func (m *mbc3) Write(address uint16, value byte) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case address <= 0x5FFF:
		m.ramBank = value & 0x0F
	case address <= 0x7FFF:
		if m.hasRTC && m.latchPrev == 0x00 && value == 0x01 {
			m.updateRTC()
			m.rtcLatch = m.rtc
		}
		m.latchPrev = value
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramBank <= 0x03 {
			if len(m.ram) == 0 {
				return
			}
			offset := bankOffset(int(m.ramBank), m.ramBanks, ramBankSize)
			m.ram[offset+int(address-0xA000)] = value
		} else if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.updateRTC()
			m.rtc[m.ramBank-0x08] = value
		}
	}
}

// updateRTC folds elapsed wall time into the live counters.
func (m *mbc3) updateRTC() {
	now := m.clock.Now()
	elapsed := int64(now.Sub(m.rtcBase).Seconds())
	if elapsed <= 0 {
		return
	}
	m.rtcBase = now

	if m.rtc[4]&0x40 != 0 {
		// Halt flag set, counters frozen.
		return
	}

	total := int64(m.rtc[0]) + elapsed
	m.rtc[0] = byte(total % 60)
	total = int64(m.rtc[1]) + total/60
	m.rtc[1] = byte(total % 60)
	total = int64(m.rtc[2]) + total/60
	m.rtc[2] = byte(total % 24)

	days := int64(m.rtc[3]) | int64(m.rtc[4]&0x01)<<8
	days += total / 24
	m.rtc[3] = byte(days)
	m.rtc[4] = m.rtc[4]&^0x01 | byte(days>>8&0x01)
	if days > 0x1FF {
		// Day counter carry is sticky until software clears it.
		m.rtc[4] |= 0x80
	}
}

func (m *mbc3) ExportSave() []byte {
	if !m.hasRTC {
		return exportSave(m.ram, nil)
	}
	m.updateRTC()
	rtc := make([]byte, 0, rtcRegisterCount*2)
	rtc = append(rtc, m.rtc[:]...)
	rtc = append(rtc, m.rtcLatch[:]...)
	return exportSave(m.ram, rtc)
}

func (m *mbc3) ImportSave(blob []byte) error {
	if !m.hasRTC {
		return importSave(blob, m.ram, nil)
	}
	rtc := make([]byte, rtcRegisterCount*2)
	if err := importSave(blob, m.ram, rtc); err != nil {
		return err
	}
	copy(m.rtc[:], rtc[:rtcRegisterCount])
	copy(m.rtcLatch[:], rtc[rtcRegisterCount:])
	m.rtcBase = m.clock.Now()
	return nil
}

// Save blob format: "PKSV", then two little-endian u32 section lengths
// (RAM, clock), then the sections. The blob is opaque to callers; the
// only contract is a byte-identical round trip.
var saveMagic = [4]byte{'P', 'K', 'S', 'V'}

func exportSave(ram, rtc []byte) []byte {
	blob := make([]byte, 0, 12+len(ram)+len(rtc))
	blob = append(blob, saveMagic[:]...)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(ram)))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(rtc)))
	blob = append(blob, ram...)
	blob = append(blob, rtc...)
	return blob
}

func importSave(blob, ram, rtc []byte) error {
	if len(blob) < 12 || [4]byte(blob[:4]) != saveMagic {
		return fmt.Errorf("save: missing header")
	}
	ramLen := int(binary.LittleEndian.Uint32(blob[4:8]))
	rtcLen := int(binary.LittleEndian.Uint32(blob[8:12]))
	if ramLen != len(ram) || rtcLen != len(rtc) {
		return fmt.Errorf("save: blob sized for %d+%d bytes, cartridge has %d+%d",
			ramLen, rtcLen, len(ram), len(rtc))
	}
	if len(blob) != 12+ramLen+rtcLen {
		return fmt.Errorf("save: truncated blob (%d bytes)", len(blob))
	}
	copy(ram, blob[12:12+ramLen])
	copy(rtc, blob[12+ramLen:])
	return nil
}
