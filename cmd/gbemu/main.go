// Command gbemu runs, inspects, or headlessly drives a DMG ROM.
package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/pocketmono/dmgcore/internal/cart"
	"github.com/pocketmono/dmgcore/internal/emu"
	"github.com/pocketmono/dmgcore/internal/ui"
)

// CLI is the top-level kong command tree: run (windowed), info (header
// dump), headless (no window, frame budget + optional CRC32 assertion).
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run a ROM in a window." default:"1"`
	Info     InfoCmd     `cmd:"" help:"Print cartridge header information."`
	Headless HeadlessCmd `cmd:"" help:"Run a ROM without a window, for regression checks."`
}

// RunCmd opens the ebiten window and plays a ROM interactively.
type RunCmd struct {
	ROM     string `arg:"" optional:"" type:"existingfile" help:"Path to ROM (.gb)."`
	BootROM string `help:"Optional DMG boot ROM."`
	Scale   int    `default:"3" help:"Window scale."`
	Title   string `default:"gbemu" help:"Window title."`
	Trace   bool   `help:"CPU trace log."`
	SaveRAM bool   `default:"true" help:"Persist battery RAM next to ROM (.sav) on exit and load on start."`
}

// Run loads the ROM (if any) and hands off to the ebiten UI loop.
func (c *RunCmd) Run() error {
	rom := mustRead(c.ROM)
	boot := mustRead(c.BootROM)

	logHeader(rom)

	m := emu.New(emu.Config{Trace: c.Trace, LimitFPS: false})
	if len(boot) >= 0x100 {
		m.SetBootROM(boot)
	}

	var savPath string
	if len(rom) > 0 {
		if err := m.LoadCartridge(rom, boot); err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if abs, err := filepath.Abs(c.ROM); err == nil {
			_ = m.LoadROMFromFile(abs)
		} else {
			_ = m.LoadROMFromFile(c.ROM)
		}
		if c.SaveRAM {
			savPath = strings.TrimSuffix(m.ROMPath(), ".gb") + ".sav"
			if data, err := os.ReadFile(savPath); err == nil && m.LoadBattery(data) {
				log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
			}
		}
	}

	app := ui.NewApp(ui.Config{Title: c.Title, Scale: c.Scale}, m)
	runErr := app.Run()
	app.SaveSettings()

	if c.SaveRAM {
		if savPath == "" && m.ROMPath() != "" && strings.HasSuffix(strings.ToLower(m.ROMPath()), ".gb") {
			savPath = strings.TrimSuffix(m.ROMPath(), ".gb") + ".sav"
		}
		if savPath != "" {
			if data, ok := m.SaveBattery(); ok {
				if err := os.WriteFile(savPath, data, 0644); err == nil {
					log.Printf("wrote %s", savPath)
				}
			}
		}
	}
	return runErr
}

// InfoCmd prints the cartridge header without running anything.
type InfoCmd struct {
	ROM string `arg:"" type:"existingfile" help:"Path to ROM (.gb)."`
}

// Run parses and prints the cartridge header.
func (c *InfoCmd) Run() error {
	rom, err := os.ReadFile(c.ROM)
	if err != nil {
		return err
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	fmt.Printf("Title:    %s\n", h.Title)
	fmt.Printf("Type:     %s\n", h.CartTypeStr)
	fmt.Printf("ROM:      %d banks\n", h.ROMBanks)
	fmt.Printf("RAM:      %d bytes\n", h.RAMSizeBytes)
	return nil
}

// HeadlessCmd runs a fixed number of frames with no window, for CI-style
// regression checks against a known-good framebuffer checksum.
type HeadlessCmd struct {
	ROM     string `arg:"" type:"existingfile" help:"Path to ROM (.gb)."`
	BootROM string `help:"Optional DMG boot ROM."`
	Frames  int    `default:"300" help:"Frames to run."`
	PNGOut  string `help:"Write the final framebuffer to a PNG at this path."`
	Expect  string `help:"Assert the final framebuffer CRC32 (hex)."`
}

// Run steps the machine for Frames frames and reports timing, optionally
// writing a PNG and/or asserting the final framebuffer checksum.
func (c *HeadlessCmd) Run() error {
	rom := mustRead(c.ROM)
	boot := mustRead(c.BootROM)
	logHeader(rom)

	m := emu.New(emu.Config{LimitFPS: false})
	if len(boot) >= 0x100 {
		m.SetBootROM(boot)
	}
	if err := m.LoadCartridge(rom, boot); err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	frames := c.Frames
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), float64(frames)/dur.Seconds(), crc)

	if c.PNGOut != "" {
		if err := saveFramePNG(fb, 160, 144, c.PNGOut); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", c.PNGOut)
	}

	if c.Expect != "" {
		want := strings.TrimPrefix(strings.ToLower(c.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func logHeader(rom []byte) {
	if len(rom) < 0x150 {
		return
	}
	if h, err := cart.ParseHeader(rom); err == nil {
		log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
	}
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("gbemu"),
		kong.Description("A DMG (original Game Boy) emulator."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
