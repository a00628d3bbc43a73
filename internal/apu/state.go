package apu

import (
	"bytes"
	"encoding/gob"
)

// apuState is the gob-serializable snapshot of everything SaveState needs
// to restore, mirroring the teacher's save/load shape in the new layout.
type apuState struct {
	Enabled    bool
	NR50, NR51 byte
	Shadow     [23]byte
	FSTimer    int
	FSStep     int
	CycAccum   float64

	Ch1 ch1State
	Ch2 commonState
	Ch3 waveState
	Ch4 noiseState
}

type commonState struct {
	Enabled       bool
	DACEnabled    bool
	LengthCounter int
	LengthEnabled bool
	Volume        byte
	EnvInitial    byte
	EnvDir        bool
	EnvPeriod     byte
	EnvTimer      byte
	Frequency     uint16
	Timer         int
	Output        byte
	Duty          byte
	DutyPos       byte
}

type ch1State struct {
	Common       commonState
	SweepPeriod  byte
	SweepDir     bool
	SweepShift   byte
	SweepTimer   byte
	SweepShadow  uint16
	SweepEnabled bool
}

type waveState struct {
	Common      commonState
	RAM         [16]byte
	WavePos     int
	VolumeShift byte
}

type noiseState struct {
	Common      commonState
	WidthMode   bool
	ClockShift  byte
	DivisorCode byte
	LFSR        uint16
}

func saveCommon(c *channelCommon) commonState {
	return commonState{
		Enabled: c.enabled, DACEnabled: c.dacEnabled,
		LengthCounter: c.lengthCounter, LengthEnabled: c.lengthEnabled,
		Volume: c.volume, EnvInitial: c.envInitial, EnvDir: c.envDir,
		EnvPeriod: c.envPeriod, EnvTimer: c.envTimer,
		Frequency: c.frequency, Timer: c.timer, Output: c.output,
	}
}

func loadCommon(c *channelCommon, s commonState) {
	c.enabled, c.dacEnabled = s.Enabled, s.DACEnabled
	c.lengthCounter, c.lengthEnabled = s.LengthCounter, s.LengthEnabled
	c.volume, c.envInitial, c.envDir = s.Volume, s.EnvInitial, s.EnvDir
	c.envPeriod, c.envTimer = s.EnvPeriod, s.EnvTimer
	c.frequency, c.timer, c.output = s.Frequency, s.Timer, s.Output
}

// SaveState serializes the full APU register/channel state via gob.
func (a *APU) SaveState() []byte {
	s := apuState{
		Enabled: a.enabled, NR50: a.nr50, NR51: a.nr51, Shadow: a.shadow,
		FSTimer: a.fs.timer, FSStep: a.fs.step, CycAccum: a.cycAccum,
		Ch1: ch1State{
			Common:       saveCommon(&a.ch1.channelCommon),
			SweepPeriod:  a.ch1.sweepPeriod, SweepDir: a.ch1.sweepDir,
			SweepShift:   a.ch1.sweepShift, SweepTimer: a.ch1.sweepTimer,
			SweepShadow:  a.ch1.sweepShadow, SweepEnabled: a.ch1.sweepEnabled,
		},
		Ch3: waveState{
			Common: saveCommon(&a.ch3.channelCommon), RAM: a.ch3.ram,
			WavePos: a.ch3.wavePos, VolumeShift: a.ch3.volumeShift,
		},
		Ch4: noiseState{
			Common: saveCommon(&a.ch4.channelCommon), WidthMode: a.ch4.widthMode,
			ClockShift: a.ch4.clockShift, DivisorCode: a.ch4.divisorCode, LFSR: a.ch4.lfsr,
		},
	}
	s.Ch1.Common.Duty, s.Ch1.Common.DutyPos = a.ch1.duty, a.ch1.dutyPos
	s.Ch2 = saveCommon(&a.ch2.channelCommon)
	s.Ch2.Duty, s.Ch2.DutyPos = a.ch2.duty, a.ch2.dutyPos

	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores a snapshot produced by SaveState; malformed data is
// ignored, leaving the APU in its current state.
func (a *APU) LoadState(data []byte) {
	var s apuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	a.enabled, a.nr50, a.nr51, a.shadow = s.Enabled, s.NR50, s.NR51, s.Shadow
	a.fs.timer, a.fs.step, a.cycAccum = s.FSTimer, s.FSStep, s.CycAccum

	loadCommon(&a.ch1.channelCommon, s.Ch1.Common)
	a.ch1.duty, a.ch1.dutyPos = s.Ch1.Common.Duty, s.Ch1.Common.DutyPos
	a.ch1.sweepPeriod, a.ch1.sweepDir = s.Ch1.SweepPeriod, s.Ch1.SweepDir
	a.ch1.sweepShift, a.ch1.sweepTimer = s.Ch1.SweepShift, s.Ch1.SweepTimer
	a.ch1.sweepShadow, a.ch1.sweepEnabled = s.Ch1.SweepShadow, s.Ch1.SweepEnabled

	loadCommon(&a.ch2.channelCommon, s.Ch2)
	a.ch2.duty, a.ch2.dutyPos = s.Ch2.Duty, s.Ch2.DutyPos

	loadCommon(&a.ch3.channelCommon, s.Ch3.Common)
	a.ch3.ram, a.ch3.wavePos, a.ch3.volumeShift = s.Ch3.RAM, s.Ch3.WavePos, s.Ch3.VolumeShift

	loadCommon(&a.ch4.channelCommon, s.Ch4.Common)
	a.ch4.widthMode, a.ch4.clockShift = s.Ch4.WidthMode, s.Ch4.ClockShift
	a.ch4.divisorCode, a.ch4.lfsr = s.Ch4.DivisorCode, s.Ch4.LFSR
}
