package apu

// frameSequencer is the 512 Hz, 8-step divider that multiplexes length,
// sweep and envelope clocks out to the four channels. It advances once
// every cpuHz/512 T-cycles (8192 at the DMG clock).
type frameSequencer struct {
	timer int
	step  int
}

// sequencerClocks reports which auxiliary units fire on a given step,
// per the table in spec §4.1.
type sequencerClocks struct {
	length   bool
	sweep    bool
	envelope bool
}

func newFrameSequencer() *frameSequencer {
	return &frameSequencer{timer: cpuHz / 512}
}

// tick advances the sequencer by one T-cycle. It returns fired=true on the
// cycle a step actually dispatches, along with which clocks fired.
func (fs *frameSequencer) tick() (fired bool, clocks sequencerClocks) {
	fs.timer--
	if fs.timer > 0 {
		return false, clocks
	}
	fs.timer += cpuHz / 512
	fs.step = (fs.step + 1) & 7
	switch fs.step {
	case 0, 4:
		clocks.length = true
	case 2, 6:
		clocks.length = true
		clocks.sweep = true
	case 7:
		clocks.envelope = true
	}
	return true, clocks
}
