package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/solivar/go-pocket/pocket"
	"github.com/solivar/go-pocket/pocket/debug"
	"github.com/solivar/go-pocket/pocket/render"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app := cli.NewApp()
	app.Name = "pocket"
	app.Usage = "a cycle-level game boy emulator"
	app.ArgsUsage = "<rom>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "headless",
			Usage: "run without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "number of frames to run in headless mode",
			Value: 1,
		},
		cli.BoolFlag{
			Name:  "dump-state",
			Usage: "print machine state after the run",
		},
		cli.StringFlag{
			Name:  "dump-frame",
			Usage: "write the final frame to a PNG file",
		},
		cli.StringFlag{
			Name:  "save",
			Usage: "battery save file to load and persist",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("no ROM file given")
	}

	rom, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("reading ROM: %w", err)
	}

	machine, err := pocket.NewMachine(rom)
	if err != nil {
		return err
	}

	savePath := c.String("save")
	if savePath != "" {
		if err := loadSave(machine, savePath); err != nil {
			return err
		}
	}

	if c.Bool("headless") {
		err = runHeadless(machine, c.Int("frames"))
	} else {
		err = runDisplay(machine)
	}
	if err != nil {
		return err
	}

	if c.Bool("dump-state") {
		fmt.Print(debug.Capture(machine).Render())
	}
	if path := c.String("dump-frame"); path != "" {
		if err := debug.SaveFramePNG(machine.Frame(), path); err != nil {
			return err
		}
	}
	if savePath != "" {
		if err := writeSave(machine, savePath); err != nil {
			return err
		}
	}

	return nil
}

func runHeadless(m *pocket.Machine, frames int) error {
	for i := 0; i < frames; i++ {
		if err := m.RunFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

func runDisplay(m *pocket.Machine) error {
	renderer, err := render.NewTerminalRenderer(m)
	if err != nil {
		return err
	}
	return renderer.Run()
}

func loadSave(m *pocket.Machine, path string) error {
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading save: %w", err)
	}
	if err := m.ImportSave(blob); err != nil {
		return fmt.Errorf("restoring save: %w", err)
	}
	slog.Info("save restored", "path", path, "bytes", len(blob))
	return nil
}

func writeSave(m *pocket.Machine, path string) error {
	blob := m.ExportSave()
	if blob == nil {
		return nil
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("writing save: %w", err)
	}
	slog.Info("save written", "path", path, "bytes", len(blob))
	return nil
}
