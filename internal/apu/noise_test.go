package apu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// advanceLFSR runs exactly one logical LFSR clock. With clockShift=0 and
// divisorCode=0 the frequency timer reloads to noiseDivisors[0]=8, so one
// clock is always 8 calls to step().
func advanceLFSR(c *noiseChannel) {
	for i := 0; i < 8; i++ {
		c.step()
	}
}

// TestCh4LFSRFullPeriodIn15BitMode reproduces spec.md §8 scenario S5: the
// 15-bit LFSR is a maximal-length sequence of period 32767, so clocking it
// exactly that many times from the trigger seed must return it to the seed.
func TestCh4LFSRFullPeriodIn15BitMode(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF21, 0xF0) // envelope initial 15, DAC on
	a.CPUWrite(0xFF22, 0x00) // clock shift 0, 15-bit mode, divisor code 0
	a.CPUWrite(0xFF23, 0x80) // trigger

	require.Equal(t, uint16(0x7FFF), a.ch4.lfsr, "trigger must reseed the LFSR to all-ones")

	for i := 0; i < 32767; i++ {
		advanceLFSR(&a.ch4)
	}
	assert.Equal(t, uint16(0x7FFF), a.ch4.lfsr, "15-bit LFSR must return to its seed after exactly one full 32767-clock period")
}

// TestCh4LFSRShortOfFullPeriodDiffersIn15BitMode is S5's inverse: one clock
// short of the full period, the state must NOT have returned to the seed.
func TestCh4LFSRShortOfFullPeriodDiffersIn15BitMode(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF21, 0xF0)
	a.CPUWrite(0xFF22, 0x00)
	a.CPUWrite(0xFF23, 0x80)

	for i := 0; i < 32766; i++ {
		advanceLFSR(&a.ch4)
	}
	assert.NotEqual(t, uint16(0x7FFF), a.ch4.lfsr, "LFSR must not repeat before the full 32767-clock period elapses")
}

// TestCh4LFSROutputPeriodIs127InWidthMode covers S5's 7-bit/width-mode half:
// forcing bit 6 from the same feedback bit as bit 14 confines the low 7 bits
// to a self-contained 7-bit LFSR, so the output bit sequence must repeat with
// period 127. Comparing a 254-clock window this way is robust to exactly
// which register bits the low 7 of 0x7FFF happen to hold, unlike asserting a
// specific lfsr value at a fixed clock count.
func TestCh4LFSROutputPeriodIs127InWidthMode(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF21, 0xF0)
	a.CPUWrite(0xFF22, 0x08) // width mode (7-bit), clock shift 0, divisor code 0
	a.CPUWrite(0xFF23, 0x80)

	require.Equal(t, uint16(0x7FFF), a.ch4.lfsr)

	const period = 127
	bits := make([]byte, 2*period)
	for i := range bits {
		advanceLFSR(&a.ch4)
		bits[i] = byte(a.ch4.lfsr & 1)
	}

	assert.Equal(t, bits[:period], bits[period:], "width-mode output bit sequence must repeat every 127 clocks")
}
