// Package emu assembles the CPU, bus, cartridge, PPU, and APU into a single
// steppable Machine, and owns the host-facing collaborators named in §6:
// framebuffer handoff, serial sink, save states, and battery RAM.
package emu

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pocketmono/dmgcore/internal/bus"
	"github.com/pocketmono/dmgcore/internal/cart"
	"github.com/pocketmono/dmgcore/internal/cpu"
)

// Buttons is the joypad state for one frame, matching the eight DMG inputs.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine owns one running DMG session: a CPU stepping a Bus that in turn
// owns the PPU, APU, and cartridge.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romData  []byte
	bootData []byte
	romPath  string

	serial io.Writer
}

// New returns a Machine with no cartridge loaded yet.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// SetBootROM stashes boot ROM bytes to be mapped at 0x0000-0x00FF on the
// next LoadCartridge/LoadROMFromFile, matching the DMG boot sequence.
func (m *Machine) SetBootROM(boot []byte) {
	m.bootData = boot
}

// LoadCartridge wires a fresh Bus and CPU around rom, with boot (if non-nil)
// mapped in until the boot ROM itself disables it via the 0xFF50 write.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(rom) < 0x150 {
		return fmt.Errorf("emu: ROM too small (%d bytes)", len(rom))
	}
	if _, err := cart.ParseHeader(rom); err != nil {
		return fmt.Errorf("emu: parse header: %w", err)
	}

	m.romData = rom
	if boot != nil {
		m.bootData = boot
	}

	b := bus.NewWithCartridge(cart.NewCartridge(rom))
	c := cpu.New(b)
	if len(m.bootData) >= 0x100 {
		b.SetBootROM(m.bootData)
		c.SetPC(0x0000)
	} else {
		c.ResetNoBoot()
		c.SetPC(0x0100)
		// Post-boot LCD state: display and BG on, standard BG palette.
		b.Write(0xFF40, 0x91)
		b.Write(0xFF47, 0xFC)
	}
	if m.serial != nil {
		b.SetSerialWriter(m.serial)
	}
	if m.cfg.LimitFPS {
		b.PPU().SetClock(hostTicks, hostDelay)
	}

	m.bus = b
	m.cpu = c
	return nil
}

// LoadROMFromFile reads path and loads it as the current cartridge,
// recording path as ROMPath() for save-state/battery-RAM placement.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, m.bootData); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// SetSerialWriter attaches a sink for bytes written through the serial port
// (0xFF01/0xFF02), used by test ROMs that report pass/fail over serial.
func (m *Machine) SetSerialWriter(w io.Writer) {
	m.serial = w
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons applies the current joypad state for the next frame.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// ResetWithBoot reloads the current ROM with the boot ROM active, replaying
// the DMG startup sequence from 0x0000.
func (m *Machine) ResetWithBoot() error {
	if m.romData == nil {
		return fmt.Errorf("emu: no ROM loaded")
	}
	return m.LoadCartridge(m.romData, m.bootData)
}

// ResetPostBoot reloads the current ROM directly into typical post-boot
// register state, skipping the boot ROM entirely.
func (m *Machine) ResetPostBoot() error {
	if m.romData == nil {
		return fmt.Errorf("emu: no ROM loaded")
	}
	return m.LoadCartridge(m.romData, nil)
}

// StepFrame runs the CPU/bus until the PPU completes one frame (VBLANK to
// VBLANK), leaving a fresh frame in Framebuffer.
func (m *Machine) StepFrame() {
	m.runFrame()
}

// StepFrameNoRender is StepFrame without any implied presentation step; the
// PPU always renders into its own framebuffer regardless, so this simply
// avoids a host pacing assumption for callers that step far ahead of
// real time (e.g. test-ROM harnesses).
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

func (m *Machine) runFrame() {
	if m.bus == nil || m.cpu == nil {
		return
	}
	start := m.bus.PPU().FrameCount()
	for m.bus.PPU().FrameCount() == start {
		m.cpu.Step()
	}
}

// Framebuffer returns the most recently completed RGBA8888 frame, 160x144.
func (m *Machine) Framebuffer() []byte {
	if m.bus == nil {
		return make([]byte, 160*144*4)
	}
	return m.bus.PPU().Framebuffer()
}

// ROMPath returns the path LoadROMFromFile was called with, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" if none is loaded.
func (m *Machine) ROMTitle() string {
	if m.romData == nil {
		return ""
	}
	h, err := cart.ParseHeader(m.romData)
	if err != nil {
		return ""
	}
	return h.Title
}

// LoadBattery restores external RAM from a prior SaveBattery dump. Returns
// false if the current cartridge has no battery-backed RAM.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns a copy of the cartridge's external RAM, if any.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	data := bb.SaveRAM()
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// SaveStateToFile gob-serializes the Bus/PPU/APU state to path. Cartridge
// state is included only for cartridges implementing cart.StateSaver, so
// MBC1/MBC3/MBC5 banking registers and external RAM are not saved.
func (m *Machine) SaveStateToFile(path string) error {
	if m.bus == nil {
		return fmt.Errorf("emu: no ROM loaded")
	}
	return os.WriteFile(path, m.bus.SaveState(), 0644)
}

// LoadStateFromFile restores a save state written by SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	if m.bus == nil {
		return fmt.Errorf("emu: no ROM loaded")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.bus.LoadState(data)
	return nil
}

// APUPullStereo drains up to maxFrames interleaved stereo samples.
func (m *Machine) APUPullStereo(maxFrames int) []int16 {
	if m.bus == nil {
		return nil
	}
	return m.bus.APU().PullStereo(maxFrames)
}

// APUBufferedStereo reports how many stereo frames are currently queued.
func (m *Machine) APUBufferedStereo() int {
	if m.bus == nil {
		return 0
	}
	return m.bus.APU().BufferedStereo()
}

// APUCapBufferedStereo bounds queued audio latency after a stall.
func (m *Machine) APUCapBufferedStereo(ceiling int) {
	if m.bus != nil {
		m.bus.APU().CapBufferedStereo(ceiling)
	}
}

// APUClearAudioLatency discards all buffered audio.
func (m *Machine) APUClearAudioLatency() {
	if m.bus != nil {
		m.bus.APU().ClearAudioLatency()
	}
}

// hostTicks/hostDelay wire the PPU's optional frame-pacing hook (§6 host
// clock) to the real wall clock when Config.LimitFPS is set.
func hostTicks() int64 { return time.Now().UnixMilli() }
func hostDelay(ms int64) {
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}
