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

// Package rtc models a hardware real-time clock: a sec/ns counter pair
// incremented on every rising edge of a free-running oscillator, plus a
// separate time-offset register. The counters are syntonized only; the
// synchronized view is counters plus offset register.
package rtc

import (
	"fmt"
	"math"

	"github.com/facebook/ptpsim/protocol"
)

// Config describes one RTC and its driving oscillator
type Config struct {
	FreqOffsetPPB    float64 `yaml:"freq_offset_ppb"`     // constant oscillator offset from nominal
	InitTimeSec      uint64  `yaml:"init_time_sec"`       // initial wall-clock seconds
	InitTimeNs       uint32  `yaml:"init_time_ns"`        // initial wall-clock nanoseconds
	InitRisingEdgeNs float64 `yaml:"init_rising_edge_ns"` // simulated time of the first rising edge, ns
}

// Validate Config is sane
func (c *Config) Validate() error {
	if c.InitTimeNs >= protocol.NsPerSec {
		return fmt.Errorf("init_time_ns must be below 1e9, got %d", c.InitTimeNs)
	}
	if c.InitRisingEdgeNs < 0 {
		return fmt.Errorf("init_rising_edge_ns must be 0 or positive, got %v", c.InitRisingEdgeNs)
	}
	return nil
}

// RTC is the clock model. All mutation happens on the simulation goroutine:
// Tick from the driver, SetIncValNs from the increment tuner, offset register
// writes from the servo.
type RTC struct {
	cfg       Config
	clkFreq   float64 // oscillator frequency, Hz
	clkPeriod float64 // oscillator period, seconds

	iInc     uint64  // rising edges consumed so far
	secCnt   uint64  // syntonized seconds counter
	nsCnt    float64 // syntonized ns counter, keeps sub-ns fraction, [0, 1e9)
	incValNs float64 // ns added to nsCnt per rising edge

	timeOffset protocol.Offset
}

// New creates an RTC driven by an oscillator at nominalHz adjusted by the
// configured ppb offset. The increment value starts at the nominal period.
func New(nominalHz float64, cfg Config) (*RTC, error) {
	if nominalHz <= 0 {
		return nil, fmt.Errorf("nominal clock frequency must be positive, got %v", nominalHz)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clkFreq := nominalHz * (1 + cfg.FreqOffsetPPB*1e-9)
	return &RTC{
		cfg:       cfg,
		clkFreq:   clkFreq,
		clkPeriod: 1 / clkFreq,
		secCnt:    cfg.InitTimeSec,
		nsCnt:     float64(cfg.InitTimeNs),
		incValNs:  protocol.NsPerSec / nominalHz,
	}, nil
}

// Tick advances the counters to the simulated time tSim (seconds). The edge
// count is always derived from tSim and the first-edge time, never from the
// increment value, so retuning incValNs only affects future increments.
// Multiplying by the frequency keeps the count exact at whole-period
// boundaries where dividing by the rounded period loses an edge.
func (r *RTC) Tick(tSim float64) error {
	n := math.Floor((tSim - r.cfg.InitRisingEdgeNs*1e-9) * r.clkFreq)
	if n < 0 {
		n = 0
	}
	nIncs := uint64(n)
	if nIncs <= r.iInc {
		// iInc is non-decreasing even if tSim stalls
		return nil
	}
	newIncs := nIncs - r.iInc
	r.nsCnt += float64(newIncs) * r.incValNs
	if math.IsNaN(r.nsCnt) {
		return fmt.Errorf("ns counter became NaN after %d increments of %v ns", newIncs, r.incValNs)
	}
	if r.nsCnt >= protocol.NsPerSec {
		secs := math.Floor(r.nsCnt / protocol.NsPerSec)
		r.secCnt += uint64(secs)
		r.nsCnt -= secs * protocol.NsPerSec
	}
	r.iInc = nIncs
	return nil
}

// Timestamp captures the syntonized counters as an integer frame timestamp,
// discarding the sub-ns fraction
func (r *RTC) Timestamp() protocol.Timestamp {
	return protocol.Timestamp{Sec: r.secCnt, Ns: uint32(math.Floor(r.nsCnt))}
}

// IncValNs returns the current per-edge increment in ns
func (r *RTC) IncValNs() float64 {
	return r.incValNs
}

// SetIncValNs installs a new per-edge increment. Only the coarse
// syntonization stage calls this.
func (r *RTC) SetIncValNs(v float64) error {
	if math.IsNaN(v) || v <= 0 {
		return fmt.Errorf("refusing to set increment value to %v ns", v)
	}
	r.incValNs = v
	return nil
}

// ClkFreq returns the true oscillator frequency in Hz
func (r *RTC) ClkFreq() float64 {
	return r.clkFreq
}

// ClkPeriod returns the true oscillator period in seconds
func (r *RTC) ClkPeriod() float64 {
	return r.clkPeriod
}

// Edges returns the number of rising edges consumed so far
func (r *RTC) Edges() uint64 {
	return r.iInc
}

// TimeOffset returns the current time-offset register value
func (r *RTC) TimeOffset() protocol.Offset {
	return r.timeOffset
}

// SetTimeOffset overwrites the time-offset register
func (r *RTC) SetTimeOffset(o protocol.Offset) {
	o.Normalize()
	r.timeOffset = o
}

// AddTimeOffsetNs adds delta ns to the time-offset register, keeping it
// normalized. Used by the slope corrector.
func (r *RTC) AddTimeOffsetNs(delta int64) {
	r.timeOffset.AddNs(delta)
}

// SyntonizedNs returns the raw counters on a single unwrapped ns axis,
// including the sub-ns fraction
func (r *RTC) SyntonizedNs() float64 {
	return float64(r.secCnt)*protocol.NsPerSec + r.nsCnt
}

// SynchronizedNs returns the synchronized view: syntonized counters plus the
// time-offset register, unwrapped
func (r *RTC) SynchronizedNs() float64 {
	return r.SyntonizedNs() + r.timeOffset.Nanoseconds()
}
