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

package servo

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/ptpsim/protocol"
	"github.com/facebook/ptpsim/rtc"
)

// IncTuner turns the frequency offset measured between two selected SYNC
// instants into a new RTC increment value, optionally quantized to the
// hardware fixed-point register and smoothed by a moving average
type IncTuner struct {
	quantizer rtc.Quantizer
	sm        *Smoother
	threshPPB float64
	resPPB    float64

	havePrev     bool
	prevMasterNs float64
	prevSlaveNs  float64
}

// NewIncTuner creates a tuner. filterLen is the moving-average length for
// increment values (1 disables smoothing); threshPPB is the discard
// threshold for implausible frequency offsets; nominalPeriodNs is the
// nominal RTC increment used to report the quantizer resolution.
func NewIncTuner(q rtc.Quantizer, filterLen int, threshPPB, nominalPeriodNs float64) *IncTuner {
	return &IncTuner{
		quantizer: q,
		sm:        NewSmoother(filterLen),
		threshPPB: threshPPB,
		resPPB:    q.ResolutionPPB(nominalPeriodNs),
	}
}

// ResPPB returns the frequency resolution of the increment register in ppb
func (t *IncTuner) ResPPB() float64 {
	return t.resPPB
}

// wrapInterval fixes a raw ns interval that went negative because of a
// single seconds wrap
func wrapInterval(ns float64) float64 {
	if ns < 0 {
		ns += protocol.NsPerSec
	}
	return ns
}

// Update consumes one selected SYNC instant. masterNs is the unwrapped
// master-side time of the selection; errTotalNs the selected error, so the
// slave-side instant is reconstructed as masterNs - errTotalNs, consistent
// with the selected offset rather than the last raw sample.
//
// Returns the increment value to commit, the measured normalized frequency
// offset, and false until two instants have been observed. A measurement
// above the discard threshold also returns false: nothing is committed and
// the caller must not treat the strobe as a valid estimate.
func (t *IncTuner) Update(masterNs, errTotalNs, curIncValNs float64) (float64, float64, bool) {
	slaveNs := masterNs - errTotalNs
	if !t.havePrev {
		t.prevMasterNs = masterNs
		t.prevSlaveNs = slaveNs
		t.havePrev = true
		return 0, 0, false
	}

	masterInterval := wrapInterval(masterNs - t.prevMasterNs)
	slaveInterval := wrapInterval(slaveNs - t.prevSlaveNs)
	t.prevMasterNs = masterNs
	t.prevSlaveNs = slaveNs

	slaveErrNs := slaveInterval - masterInterval
	normFoffset := slaveErrNs / masterInterval
	if math.Abs(normFoffset*1e9) > t.threshPPB {
		log.Warningf("discarding frequency offset %.3f ppb above threshold %.3f ppb", normFoffset*1e9, t.threshPPB)
		return 0, 0, false
	}

	fNew := (1 + normFoffset) * (protocol.NsPerSec / curIncValNs)
	incNew := protocol.NsPerSec / fNew
	incNew, saturated := t.quantizer.Quantize(incNew)
	if saturated {
		log.Warningf("increment value saturated the fixed-point register, clamped to %v ns", incNew)
	}

	avg, post := t.sm.Push(incNew)
	committed := incNew
	if post {
		committed = avg
	}
	return committed, normFoffset, true
}
