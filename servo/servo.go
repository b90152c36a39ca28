/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package servo implements the four-stage synchronization servo driving the
// slave RTC toward the master: delay acquisition, coarse syntonization of
// the hardware increment, fine syntonization via slope estimation, and
// residual constant offset correction.
//
// Timestamps are captured from the syntonized (frequency-only) counters
// while corrections go to the separate time-offset register, so each stage
// is explicit about which quantity it observes and which it corrects.
package servo

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/ptpsim/protocol"
	"github.com/facebook/ptpsim/rtc"
)

// SyncStage is the state of the synchronization state machine
type SyncStage uint8

// The four stages, in the order they are traversed. StageConstToff is
// terminal: the servo remains there, slope corrections continuing.
const (
	StageDelayEst   SyncStage = 1
	StageCoarseSynt SyncStage = 2
	StageFineSynt   SyncStage = 3
	StageConstToff  SyncStage = 4
)

// SyncStageToString is a map from SyncStage to string
var SyncStageToString = map[SyncStage]string{
	StageDelayEst:   "DELAY_EST",
	StageCoarseSynt: "COARSE_SYNT",
	StageFineSynt:   "FINE_SYNT",
	StageConstToff:  "CONST_TOFF",
}

func (s SyncStage) String() string {
	return SyncStageToString[s]
}

// StageConfig is the packet selection setup of one stage
type StageConfig struct {
	WindowLen int      `yaml:"window_len"`
	Strategy  Strategy `yaml:"strategy"`
}

// Config specifies servo run options
type Config struct {
	SyncRate         float64 // SYNC frames per second
	RTCIncEstPeriod  int     // selections per increment estimate
	PacketSelection  bool
	SampleWinDelay   bool // hold the delay estimate fixed across a window
	PerfectDelayEst  bool // debug: correct with the true network delay
	FoffsetThreshPPB float64
	FilterRTCInc     bool
	RTCIncFiltLen    int
	FilterDelayEst   bool
	DelayEstFiltLen  int
	EnFPIncVal       bool
	NIncValIntBits   uint
	NIncValFrcBits   uint
	NominalRTCClk    float64 // Hz
	Stages           [4]StageConfig
}

// Validate Config is sane
func (c *Config) Validate() error {
	if c.SyncRate <= 0 {
		return fmt.Errorf("sync rate must be positive, got %v", c.SyncRate)
	}
	if c.RTCIncEstPeriod < 1 {
		return fmt.Errorf("rtc_inc_est_period must be at least 1, got %d", c.RTCIncEstPeriod)
	}
	if c.FoffsetThreshPPB <= 0 {
		return fmt.Errorf("foffset_thresh_ppb must be positive, got %v", c.FoffsetThreshPPB)
	}
	if c.FilterRTCInc && c.RTCIncFiltLen < 1 {
		return fmt.Errorf("rtc_inc_filt_len must be at least 1, got %d", c.RTCIncFiltLen)
	}
	if c.FilterDelayEst && c.DelayEstFiltLen < 1 {
		return fmt.Errorf("delay_est_filt_len must be at least 1, got %d", c.DelayEstFiltLen)
	}
	if c.NominalRTCClk <= 0 {
		return fmt.Errorf("nominal clock must be positive, got %v", c.NominalRTCClk)
	}
	for i, sc := range c.Stages {
		if sc.WindowLen < 1 {
			return fmt.Errorf("stage %d window length must be at least 1, got %d", i+1, sc.WindowLen)
		}
		if _, ok := StrategyToString[sc.Strategy]; !ok {
			return fmt.Errorf("stage %d has unknown strategy %d", i+1, sc.Strategy)
		}
	}
	return nil
}

// Result is what one SYNC reception produced, reported against the stage
// that processed it (pre-transition)
type Result struct {
	Stage           SyncStage
	OffsetErr       protocol.Offset
	RawDelayNs      float64
	FilteredDelayNs float64
	CorrStrobe      bool
	IncEstStrobe    bool
}

// Servo owns the estimators and the stage state machine. It mutates only the
// slave RTC: the offset register in stages 1 and 4, the increment value in
// stage 2.
type Servo struct {
	cfg   Config
	slave *rtc.RTC

	delay *DelayEstimator
	sel   *Selector
	tuner *IncTuner
	slope *SlopeCorrector

	stage     SyncStage
	nextStage SyncStage

	slopeNsPerSync float64
	syncPeriodNs   float64
	selections     int // completed selections since stage entry
	syncSeen       int // SYNC receptions since stage entry, selection-disabled cadence

	sampledDelayNs float64
}

// New creates a servo disciplining the given slave RTC
func New(cfg Config, slave *rtc.RTC) (*Servo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	delayFiltLen := 1
	if cfg.FilterDelayEst {
		delayFiltLen = cfg.DelayEstFiltLen
	}
	incFiltLen := 1
	if cfg.FilterRTCInc {
		incFiltLen = cfg.RTCIncFiltLen
	}
	q := rtc.Quantizer{Enabled: cfg.EnFPIncVal, IntBits: cfg.NIncValIntBits, FracBits: cfg.NIncValFrcBits}
	nominalPeriodNs := protocol.NsPerSec / cfg.NominalRTCClk
	s := &Servo{
		cfg:          cfg,
		slave:        slave,
		delay:        NewDelayEstimator(delayFiltLen),
		sel:          NewSelector(cfg.Stages[StageDelayEst-1].WindowLen, cfg.Stages[StageDelayEst-1].Strategy),
		tuner:        NewIncTuner(q, incFiltLen, cfg.FoffsetThreshPPB, nominalPeriodNs),
		slope:        &SlopeCorrector{},
		stage:        StageDelayEst,
		nextStage:    StageDelayEst,
		syncPeriodNs: protocol.NsPerSec / cfg.SyncRate,
	}
	return s, nil
}

// Stage returns the current synchronization stage
func (s *Servo) Stage() SyncStage {
	return s.stage
}

// SlopeNsPerSync returns the slope captured at the end of fine syntonization
func (s *Servo) SlopeNsPerSync() float64 {
	return s.slopeNsPerSync
}

// Delay exposes the delay estimator state
func (s *Servo) Delay() *DelayEstimator {
	return s.delay
}

// ResPPB returns the increment register frequency resolution in ppb
func (s *Servo) ResPPB() float64 {
	return s.tuner.ResPPB()
}

// OnPdelayResp processes one completed peer-delay exchange. The first
// post-transient delay report advances DELAY_EST to COARSE_SYNT.
func (s *Servo) OnPdelayResp(t1, t2, t3, t4 protocol.Timestamp) {
	s.delay.Update(t1, t2, t3, t4)
	if s.stage == StageDelayEst && s.delay.PostTransient() {
		s.nextStage = StageCoarseSynt
	}
	s.commitStage()
}

// OnSyncRx processes one SYNC reception: estimates the offset, feeds the
// packet selector, and routes the per-stage correction. Stage transitions
// are latched and committed at the end of the handler, so the whole handler
// observes the pre-transition stage.
func (s *Servo) OnSyncRx(t1, t2 protocol.Timestamp, trueDelayNs float64) (Result, error) {
	stage := s.stage

	delayNs := s.delay.EstNs()
	if s.cfg.PerfectDelayEst {
		delayNs = math.Floor(trueDelayNs)
	} else if s.cfg.SampleWinDelay && s.cfg.PacketSelection {
		if s.sel.Count() == 0 {
			s.sampledDelayNs = s.delay.EstNs()
		}
		delayNs = s.sampledDelayNs
	}

	offsetErr, mSec, mNs := EstimateOffset(t1, t2, delayNs)
	masterNs := float64(mSec)*protocol.NsPerSec + float64(mNs)

	var sel Selection
	var corr, incEst bool
	if s.cfg.PacketSelection {
		sel, corr = s.sel.Push(offsetErr, masterNs, s.slopeNsPerSync, stage == StageConstToff)
		if corr {
			s.selections++
			if stage == StageCoarseSynt && s.selections%s.cfg.RTCIncEstPeriod == 0 {
				incEst = true
			}
		}
	} else {
		corr = true
		sel = Selection{Sec: offsetErr.Sec, Ns: float64(offsetErr.Ns), MasterNs: masterNs}
		s.syncSeen++
		if stage == StageCoarseSynt && s.syncSeen%s.cfg.RTCIncEstPeriod == 0 {
			incEst = true
		}
	}

	switch stage {
	case StageDelayEst:
		// step correction: clears offsets of any size, including whole seconds
		if corr {
			s.slave.SetTimeOffset(protocol.Offset{Sec: sel.Sec, Ns: int64(math.Floor(sel.Ns))})
		}
	case StageCoarseSynt:
		if incEst {
			incNs, norm, ok := s.tuner.Update(sel.MasterNs, sel.Total(), s.slave.IncValNs())
			if ok {
				if err := s.slave.SetIncValNs(incNs); err != nil {
					return Result{}, fmt.Errorf("committing increment value: %w", err)
				}
				log.Debugf("coarse syntonization: foffset %.3f ppb, inc %v ns", norm*1e9, incNs)
				if math.Abs(norm*1e9) < s.tuner.ResPPB()/2 {
					s.nextStage = StageFineSynt
				}
			}
		}
	case StageFineSynt:
		// a single window selection; its slope becomes the standing
		// per-SYNC correction
		if corr {
			s.slopeNsPerSync = sel.Slope * s.syncPeriodNs
			s.nextStage = StageConstToff
			log.Infof("fine syntonization: slope %.6f ns per SYNC", s.slopeNsPerSync)
		}
	case StageConstToff:
		if corr {
			s.slave.SetTimeOffset(protocol.Offset{Sec: sel.Sec, Ns: int64(math.Floor(sel.Ns))})
		}
	}

	if stage > StageFineSynt {
		s.slope.Apply(s.slopeNsPerSync, s.slave)
	}

	res := Result{
		Stage:           stage,
		OffsetErr:       offsetErr,
		RawDelayNs:      s.delay.RawNs(),
		FilteredDelayNs: s.delay.EstNs(),
		CorrStrobe:      corr,
		IncEstStrobe:    incEst,
	}
	s.commitStage()
	return res, nil
}

// commitStage applies a latched transition: installs the new stage's window
// and strategy and resets the in-window state
func (s *Servo) commitStage() {
	if s.nextStage == s.stage {
		return
	}
	log.Infof("sync stage %s -> %s", s.stage, s.nextStage)
	s.stage = s.nextStage
	sc := s.cfg.Stages[s.stage-1]
	s.sel.Configure(sc.WindowLen, sc.Strategy)
	s.selections = 0
	s.syncSeen = 0
	s.sampledDelayNs = 0
}
