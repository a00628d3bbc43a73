package apu

// dutyTable holds the four 8-step waveform patterns shared by channels 1 and 2.
var dutyTable = [4][8]byte{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}

// pulseChannel is channel 2's shape; channel 1 embeds it and adds sweep.
type pulseChannel struct {
	channelCommon
	duty    byte
	dutyPos byte
}

func (p *pulseChannel) reloadTimer() {
	p.timer = int(2048-p.frequency) * 4
	if p.timer <= 0 {
		p.timer = 4
	}
}

func (p *pulseChannel) trigger() {
	p.enabled = p.dacEnabled
	p.triggerLength(64)
	p.triggerEnvelope()
	p.reloadTimer()
}

// step advances the frequency timer by one T-cycle and recomputes the
// instantaneous 4-bit output per §4.2.
func (p *pulseChannel) step() {
	if !p.enabled {
		p.output = 0
		return
	}
	p.timer--
	if p.timer <= 0 {
		p.reloadTimer()
		p.dutyPos = (p.dutyPos + 1) & 7
	}
	if dutyTable[p.duty][p.dutyPos] != 0 {
		p.output = p.volume
	} else {
		p.output = 0
	}
}

// ch1Channel adds the frequency sweep unit to pulseChannel.
type ch1Channel struct {
	pulseChannel

	sweepPeriod byte
	sweepDir    bool // true = subtract
	sweepShift  byte
	sweepTimer  byte
	sweepShadow uint16
	sweepEnabled bool
}

// computeSweep applies the current sign/shift to the sweep shadow register,
// used both by the trigger-time predictive check and by clockSweep.
func (c *ch1Channel) computeSweep() int {
	delta := int(c.sweepShadow) >> c.sweepShift
	if c.sweepDir {
		return int(c.sweepShadow) - delta
	}
	return int(c.sweepShadow) + delta
}

func (c *ch1Channel) trigger() {
	c.pulseChannel.trigger()

	c.sweepShadow = c.frequency & 0x7FF
	period := c.sweepPeriod
	if period == 0 {
		period = 8
	}
	c.sweepTimer = period
	c.sweepEnabled = c.sweepPeriod != 0 || c.sweepShift != 0

	if c.sweepShift > 0 && c.computeSweep() > 2047 {
		c.enabled = false
	}
}

// clockSweep runs on frame-sequencer steps 2 and 6 (§4.2).
func (c *ch1Channel) clockSweep() {
	if !c.enabled || !c.sweepEnabled || c.sweepPeriod == 0 {
		return
	}
	if c.sweepTimer > 0 {
		c.sweepTimer--
	}
	if c.sweepTimer != 0 {
		return
	}
	period := c.sweepPeriod
	if period == 0 {
		period = 8
	}
	c.sweepTimer = period

	next := c.computeSweep()
	if next > 2047 {
		c.enabled = false
		return
	}
	if c.sweepShift > 0 {
		c.sweepShadow = uint16(next)
		c.frequency = uint16(next) & 0x7FF
		c.reloadTimer()
		if c.computeSweep() > 2047 {
			c.enabled = false
		}
	}
}
