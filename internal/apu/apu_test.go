package apu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerOffClearsChannelsButKeepsWaveRAM(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF1A, 0x80) // DAC on
	a.CPUWrite(0xFF30, 0x42) // wave RAM byte 0
	a.CPUWrite(0xFF24, 0x77) // NR50
	a.CPUWrite(0xFF25, 0xFF) // NR51

	a.CPUWrite(0xFF26, 0x00) // power off

	assert.Equal(t, byte(0), a.nr50)
	assert.Equal(t, byte(0), a.nr51)
	assert.Equal(t, byte(0x42), a.ch3.ram[0], "wave RAM must survive a power-off")
}

func TestRegisterWritesIgnoredWhilePoweredOff(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF26, 0x00) // power off
	a.CPUWrite(0xFF11, 0xFF) // NR11 duty/length, should be dropped

	assert.Equal(t, byte(0), a.shadow[0x01])
}

func TestNR52ReportsChannelEnableBits(t *testing.T) {
	a := New()
	a.ch1.enabled = true
	a.ch3.enabled = true

	got := a.readNR52()
	assert.NotZero(t, got&0x80, "master enable bit should read back set")
	assert.NotZero(t, got&0x01, "channel 1 status bit should be set")
	assert.Zero(t, got&0x02, "channel 2 status bit should be clear")
	assert.NotZero(t, got&0x04, "channel 3 status bit should be set")
}

func TestMixRoutesChannelsPerNR51(t *testing.T) {
	a := New()
	a.nr50 = 0x77 // full volume both sides
	a.nr51 = 0x11 // channel 1 only, both left and right
	a.ch1.output = 4
	a.ch2.output = 4 // not routed, should not contribute

	a.mix()

	l, r := a.outL[0], a.outR[0]
	require.NotZero(t, l)
	require.NotZero(t, r)
	assert.Equal(t, l, r, "symmetric NR50/NR51 routing should give equal L/R")
}

func TestPullStereoDrainsInFIFOOrder(t *testing.T) {
	a := New()
	a.push(1, -1)
	a.push(2, -2)
	a.push(3, -3)

	require.Equal(t, 3, a.BufferedStereo())
	frames := a.PullStereo(2)
	require.Len(t, frames, 4)
	assert.Equal(t, []int16{1, -1, 2, -2}, frames)
	assert.Equal(t, 1, a.BufferedStereo())
}

func TestCapBufferedStereoDropsOldestFrames(t *testing.T) {
	a := New()
	for i := 0; i < 10; i++ {
		a.push(int16(i), int16(i))
	}
	require.Equal(t, 10, a.BufferedStereo())

	a.CapBufferedStereo(3)
	assert.Equal(t, 3, a.BufferedStereo())

	frames := a.PullStereo(3)
	// the oldest 7 frames (values 0..6) should have been dropped
	assert.Equal(t, []int16{7, 7, 8, 8, 9, 9}, frames)
}

func TestClearAudioLatencyEmptiesBuffer(t *testing.T) {
	a := New()
	a.push(1, 1)
	a.push(2, 2)
	require.NotZero(t, a.BufferedStereo())

	a.ClearAudioLatency()
	assert.Equal(t, 0, a.BufferedStereo())
}

func TestFrameSequencerLengthClockFiresEveryOtherStep(t *testing.T) {
	fs := newFrameSequencer()
	var lengthFires int
	for i := 0; i < cpuHz/512*8; i++ {
		if fired, clocks := fs.tick(); fired && clocks.length {
			lengthFires++
		}
	}
	assert.Equal(t, 4, lengthFires, "length should clock on steps 0,2,4,6 across one full 8-step cycle")
}

func TestTickMixesDownToConfiguredSampleRate(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF24, 0x77)
	a.CPUWrite(0xFF25, 0xFF)
	a.CPUWrite(0xFF12, 0xF0) // ch1 envelope, DAC on
	a.CPUWrite(0xFF14, 0x80) // trigger ch1

	a.Tick(cpuHz / sampleRate * 10)

	assert.InDelta(t, 10, a.BufferedStereo(), 1, "ticking ~10 sample periods should queue ~10 stereo frames")
}
