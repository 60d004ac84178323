// Package debug renders machine state for inspection: a styled register
// dump for the terminal and framebuffer snapshots as PNG.
package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/solivar/go-pocket/pocket"
	"github.com/solivar/go-pocket/pocket/video"
)

// Snapshot is a point-in-time copy of the externally visible machine
// state.
type Snapshot struct {
	AF, BC, DE, HL uint16
	SP, PC         uint16
	Flags          string
	IME            bool
	Halted         bool
	Cycles         uint64

	Mode video.Mode
	Line int

	IE, IF byte

	Title      string
	Controller string
}

// Capture reads the machine state. Only call between steps.
func Capture(m *pocket.Machine) Snapshot {
	c := m.CPU()
	ie, flags := m.MMU().InterruptRegisters()

	return Snapshot{
		AF:         c.AF(),
		BC:         c.BC(),
		DE:         c.DE(),
		HL:         c.HL(),
		SP:         c.SP(),
		PC:         c.PC(),
		Flags:      c.FlagString(),
		IME:        c.IME(),
		Halted:     c.Halted(),
		Cycles:     c.Cycles(),
		Mode:       m.PPU().CurrentMode(),
		Line:       m.PPU().Line(),
		IE:         ie,
		IF:         flags,
		Title:      m.Cartridge().Title(),
		Controller: m.Cartridge().Kind().String(),
	}
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(4))
	cartStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(3))
	videoStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(6))
)

var modeNames = [4]string{"HBlank", "VBlank", "OAMScan", "Drawing"}

// Render formats the snapshot for the terminal.
func (s Snapshot) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s (%s)\n", cartStyle.Render("cart"), s.Title, s.Controller)
	fmt.Fprintf(&b, "%s AF=%04X BC=%04X DE=%04X HL=%04X\n",
		labelStyle.Render("cpu "), s.AF, s.BC, s.DE, s.HL)
	fmt.Fprintf(&b, "%s SP=%04X PC=%04X flags=%s cycles=%d\n",
		labelStyle.Render("    "), s.SP, s.PC, s.Flags, s.Cycles)
	fmt.Fprintf(&b, "%s IME=%v halted=%v IE=%02X IF=%02X\n",
		labelStyle.Render("int "), s.IME, s.Halted, s.IE, s.IF)
	fmt.Fprintf(&b, "%s mode=%s LY=%d\n",
		videoStyle.Render("lcd "), modeNames[s.Mode&3], s.Line)

	return b.String()
}

// shadePalette maps the four shades to the classic green-tinted ramp.
var shadePalette = [4]color.RGBA{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

// SaveFramePNG writes the framebuffer to path as a PNG image.
func SaveFramePNG(frame *video.FrameBuffer, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, video.FramebufferWidth, video.FramebufferHeight))
	for i, shade := range frame.Pixels() {
		img.SetRGBA(i%video.FramebufferWidth, i/video.FramebufferWidth, shadePalette[shade&3])
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	slog.Info("frame snapshot saved", "path", path,
		"size", fmt.Sprintf("%dx%d", video.FramebufferWidth, video.FramebufferHeight))
	return nil
}
