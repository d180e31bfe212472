package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/intuitionamiga/zxcore"
)

var (
	flagModel     string
	flagROMDir    string
	flagTape      string
	flagSnapshot  string
	flagQuickLoad bool
	flagTrace     string
)

var rootCmd = &cobra.Command{
	Use:   "zxcore",
	Short: "Run a ZX Spectrum core against a tape or snapshot",
	Long:  `zxcore drives the Z80/ULA/tape emulation core. The run loop has no exit condition of its own and does not stop on a CPU HALT; it runs until the process is interrupted.`,
}

var runCmd = &cobra.Command{
	Use:                   "run",
	Short:                 "Load ROM, optional snapshot/tape, and run the machine",
	DisableFlagsInUseLine: true,
	RunE:                  runMachine,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "48k", "hardware model: 48k, 128k, +2, +2a, +3")
	rootCmd.PersistentFlags().StringVar(&flagROMDir, "rom-dir", "roms", "directory containing the model's ROM file(s)")
	rootCmd.PersistentFlags().StringVar(&flagTape, "tape", "", "TAP/TZX/WAV tape file to load")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "Z80/SNA snapshot file to load")
	rootCmd.PersistentFlags().BoolVar(&flagQuickLoad, "quick-load", true, "service the ROM quick tape load trap")
	rootCmd.PersistentFlags().StringVar(&flagTrace, "trace", "", "write an I/O trace to this file")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseModel(name string) (zxcore.Model, error) {
	switch name {
	case "48k":
		return zxcore.Model48K, nil
	case "128k":
		return zxcore.Model128K, nil
	case "+2":
		return zxcore.ModelPlus2, nil
	case "+2a":
		return zxcore.ModelPlus2A, nil
	case "+3":
		return zxcore.ModelPlus3, nil
	case "zx81":
		return zxcore.ModelZX81, nil
	default:
		return 0, fmt.Errorf("unknown model %q", name)
	}
}

func runMachine(cmd *cobra.Command, args []string) error {
	model, err := parseModel(flagModel)
	if err != nil {
		return err
	}

	rom, err := zxcore.LoadROMSet(model, flagROMDir)
	if err != nil {
		return err
	}

	m := zxcore.NewMachine(zxcore.MachineConfig{
		Model: model,
		ROM:   rom,
		RAM:   zxcore.NewRAMSet(model),
	})

	if flagTrace != "" {
		f, err := os.Create(flagTrace)
		if err != nil {
			return err
		}
		defer f.Close()
		trace := zxcore.NewFileIOTrace(f)
		defer trace.Flush()
		m.IO.SetTrace(trace)
	}

	if flagSnapshot != "" {
		if err := loadSnapshotFile(m, flagSnapshot); err != nil {
			return err
		}
	}

	if flagTape != "" {
		if err := loadTapeFile(m, flagTape); err != nil {
			return err
		}
		m.Tape.Play(0)
	}

	m.SetQuickLoadEnabled(flagQuickLoad)

	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Printf("zxcore: running model=%s quick-load=%v", flagModel, flagQuickLoad)
	}

	m.Run()
	return nil
}

func loadSnapshotFile(m *zxcore.Machine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isZ80Snapshot(path) {
		return zxcore.LoadZ80(m, data)
	}
	return zxcore.LoadSNA(m, data)
}

func isZ80Snapshot(path string) bool {
	return strings.HasSuffix(path, ".z80")
}

func loadTapeFile(m *zxcore.Machine, path string) error {
	switch {
	case strings.HasSuffix(path, ".tap"):
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tape, err := zxcore.LoadTAP(data)
		if err != nil {
			return err
		}
		m.Tape.LoadTape(tape)
	case strings.HasSuffix(path, ".tzx"):
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tape, err := zxcore.LoadTZX(data)
		if err != nil {
			return err
		}
		m.Tape.LoadTape(tape)
	case strings.HasSuffix(path, ".wav"):
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		tape, err := zxcore.LoadWAV(f)
		if err != nil {
			return err
		}
		m.Tape.LoadTape(tape)
	default:
		return fmt.Errorf("unrecognized tape file extension: %s", path)
	}
	return nil
}
