// Package pocket wires the emulated components into a runnable machine:
// cartridge, bus, instruction engine and picture unit stepping in
// lockstep.
package pocket

import (
	"fmt"
	"log/slog"

	"github.com/solivar/go-pocket/pocket/cpu"
	"github.com/solivar/go-pocket/pocket/memory"
	"github.com/solivar/go-pocket/pocket/video"
)

// FrameCycles is the length of one full frame in T-cycles.
const FrameCycles = 70224

// Machine owns one emulated system. All components advance from Step, so
// state is only consistent between calls.
type Machine struct {
	cart *memory.Cartridge
	mmu  *memory.MMU
	cpu  *cpu.CPU
	ppu  *video.PPU
}

// NewMachine boots a machine from a ROM image.
func NewMachine(rom []byte) (*Machine, error) {
	cart, err := memory.Load(rom)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}

	slog.Info("cartridge loaded",
		"title", cart.Title(),
		"controller", cart.Kind().String(),
		"romBanks", cart.ROMBanks(),
		"ramBanks", cart.RAMBanks(),
		"battery", cart.HasBattery())

	mmu := memory.NewWithCartridge(cart)
	ppu := video.New(mmu)
	mmu.SetVideoPorts(ppu)

	m := &Machine{
		cart: cart,
		mmu:  mmu,
		ppu:  ppu,
		cpu:  cpu.New(mmu),
	}
	return m, nil
}

// Step executes one CPU step and advances the timer and picture unit by
// the same number of T-cycles.
func (m *Machine) Step() (int, error) {
	cycles, err := m.cpu.Step()
	if err != nil {
		return 0, err
	}

	m.mmu.Tick(cycles)
	m.ppu.Tick(cycles)
	return cycles, nil
}

// RunFrame steps until the picture unit hands over a completed frame.
// With the LCD off no frame ever completes, so it also returns after a
// frame's worth of cycles.
func (m *Machine) RunFrame() error {
	elapsed := 0
	for elapsed < FrameCycles {
		cycles, err := m.Step()
		if err != nil {
			return err
		}
		elapsed += cycles

		if m.ppu.FrameReady() {
			return nil
		}
	}
	return nil
}

// Frame returns the picture unit's framebuffer.
func (m *Machine) Frame() *video.FrameBuffer {
	return m.ppu.Frame()
}

// Reset reboots into the post-boot state. The bus is rebuilt from the
// loaded cartridge, so bank selects, enable latches and the timer all
// return to power-on values. Battery-backed RAM and the RTC carry over,
// matching a power cycle with the battery still fitted.
func (m *Machine) Reset() {
	save := m.mmu.ExportSave()

	m.mmu = memory.NewWithCartridge(m.cart)
	if save != nil {
		// The blob came from the same cartridge, so it always fits.
		_ = m.mmu.ImportSave(save)
	}
	m.ppu = video.New(m.mmu)
	m.mmu.SetVideoPorts(m.ppu)
	m.cpu = cpu.New(m.mmu)
}

// Cartridge returns the loaded cartridge header information.
func (m *Machine) Cartridge() *memory.Cartridge {
	return m.cart
}

// CPU exposes the instruction engine for the debug surface.
func (m *Machine) CPU() *cpu.CPU {
	return m.cpu
}

// PPU exposes the picture unit for the debug surface.
func (m *Machine) PPU() *video.PPU {
	return m.ppu
}

// MMU exposes the bus for the debug surface.
func (m *Machine) MMU() *memory.MMU {
	return m.mmu
}

// ExportSave serializes cartridge RAM and RTC state, or nil when the
// cartridge has nothing battery-backed.
func (m *Machine) ExportSave() []byte {
	return m.mmu.ExportSave()
}

// ImportSave restores a save blob produced by ExportSave.
func (m *Machine) ImportSave(blob []byte) error {
	return m.mmu.ImportSave(blob)
}
