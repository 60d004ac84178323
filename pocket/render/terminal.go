// Package render displays frames in the terminal using tcell.
package render

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/solivar/go-pocket/pocket"
	"github.com/solivar/go-pocket/pocket/video"
)

const (
	scaleX    = 2
	frameTime = time.Second / 60
)

// shadeChars maps the four shades to block characters, lightest first.
var shadeChars = [4]rune{' ', '░', '▒', '█'}

type TerminalRenderer struct {
	screen  tcell.Screen
	machine *pocket.Machine
	running atomic.Bool // shared between Run and the input goroutine
}

func NewTerminalRenderer(m *pocket.Machine) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}
	return newRenderer(m, screen)
}

func newRenderer(m *pocket.Machine, screen tcell.Screen) (*TerminalRenderer, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}

	t := &TerminalRenderer{
		screen:  screen,
		machine: m,
	}
	t.running.Store(true)
	return t, nil
}

// Run drives the machine at 60 frames per second until interrupted or a
// key ends the session.
func (t *TerminalRenderer) Run() error {
	defer func() {
		slog.Info("closing terminal display")
		t.screen.Fini()
	}()

	t.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go t.handleInput()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for t.running.Load() {
		select {
		case <-ticker.C:
			if err := t.machine.RunFrame(); err != nil {
				return err
			}
			t.render()
			t.screen.Show()
		case <-signals:
			slog.Info("received signal to stop")
			t.running.Store(false)
			return nil
		}
	}

	return nil
}

func (t *TerminalRenderer) handleInput() {
	for t.running.Load() {
		ev := t.screen.PollEvent()
		if ev == nil {
			// The screen was finalized under us.
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
				t.running.Store(false)
			case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
				t.running.Store(false)
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *TerminalRenderer) render() {
	frame := t.machine.Frame()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	for y := 0; y < video.FramebufferHeight; y++ {
		for x := 0; x < video.FramebufferWidth; x++ {
			char := shadeChars[frame.At(x, y)&3]
			for sx := 0; sx < scaleX; sx++ {
				t.screen.SetContent(x*scaleX+sx, y, char, nil, style)
			}
		}
	}
}
