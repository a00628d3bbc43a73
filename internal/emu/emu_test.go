package emu

import (
	"os"
	"path/filepath"
	"testing"
)

// buildROM makes a minimal synthetic cartridge: a valid header followed by
// an infinite JP loop at the entry point, enough to exercise frame stepping
// without any real game logic.
func buildROM(cartType, ramSizeCode byte, size int) []byte {
	rom := make([]byte, size)
	copy(rom[0x0134:0x0144], []byte("TESTROM"))
	rom[0x0143] = 0x00
	rom[0x0144], rom[0x0145] = '0', '1'
	rom[0x0147] = cartType
	switch {
	case size <= 32*1024:
		rom[0x0148] = 0x00
	case size <= 64*1024:
		rom[0x0148] = 0x01
	default:
		rom[0x0148] = 0x02
	}
	rom[0x0149] = ramSizeCode
	rom[0x014B] = 0x33

	var hsum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		hsum = hsum - rom[addr] - 1
	}
	rom[0x014D] = hsum

	// JP 0x0100 at the entry point: spins forever with no interrupts enabled.
	rom[0x0100] = 0xC3
	rom[0x0101] = 0x00
	rom[0x0102] = 0x01
	return rom
}

func TestLoadCartridgeAndStepFrame(t *testing.T) {
	m := New(Config{})
	rom := buildROM(0x00, 0x00, 32*1024)
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	fb := m.Framebuffer()
	if len(fb) != 160*144*4 {
		t.Fatalf("unexpected framebuffer size: %d", len(fb))
	}
}

func TestLoadCartridgeRejectsShortROM(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(make([]byte, 16), nil); err == nil {
		t.Fatalf("expected error loading undersized ROM")
	}
}

func TestROMTitleAndPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.gb")
	rom := buildROM(0x00, 0x00, 32*1024)
	if err := os.WriteFile(path, rom, 0644); err != nil {
		t.Fatalf("write rom: %v", err)
	}

	m := New(Config{})
	if err := m.LoadROMFromFile(path); err != nil {
		t.Fatalf("LoadROMFromFile: %v", err)
	}
	if m.ROMPath() != path {
		t.Fatalf("ROMPath got %q want %q", m.ROMPath(), path)
	}
	if got := m.ROMTitle(); got != "TESTROM" {
		t.Fatalf("ROMTitle got %q want TESTROM", got)
	}
}

func TestBatteryRoundTripWithMBC3(t *testing.T) {
	rom := buildROM(0x10, 0x03, 64*1024) // MBC3+RAM+BATTERY, 32KB RAM

	m := New(Config{})
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	data, ok := m.SaveBattery()
	if !ok {
		t.Fatalf("expected MBC3 to report battery-backed RAM")
	}
	if !m.LoadBattery(data) {
		t.Fatalf("expected LoadBattery to succeed for MBC3")
	}
}

func TestBatteryUnsupportedForROMOnly(t *testing.T) {
	m := New(Config{})
	rom := buildROM(0x00, 0x00, 32*1024)
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if _, ok := m.SaveBattery(); ok {
		t.Fatalf("ROM-only cartridge should not report battery RAM")
	}
	if m.LoadBattery([]byte{1, 2, 3}) {
		t.Fatalf("ROM-only cartridge should reject LoadBattery")
	}
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slot1.state")

	m := New(Config{})
	rom := buildROM(0x00, 0x00, 32*1024)
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	if err := m.SaveStateToFile(path); err != nil {
		t.Fatalf("SaveStateToFile: %v", err)
	}

	m2 := New(Config{})
	if err := m2.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m2.LoadStateFromFile(path); err != nil {
		t.Fatalf("LoadStateFromFile: %v", err)
	}
}

func TestAPUBufferingHooks(t *testing.T) {
	m := New(Config{})
	rom := buildROM(0x00, 0x00, 32*1024)
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	if m.APUBufferedStereo() == 0 {
		t.Fatalf("expected buffered audio frames after a stepped frame")
	}
	m.APUCapBufferedStereo(10)
	if got := m.APUBufferedStereo(); got > 10 {
		t.Fatalf("APUCapBufferedStereo did not bound buffer: got %d", got)
	}
	m.APUClearAudioLatency()
	if got := m.APUBufferedStereo(); got != 0 {
		t.Fatalf("APUClearAudioLatency left %d frames buffered", got)
	}
}
