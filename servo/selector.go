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
	"sort"

	"github.com/facebook/ptpsim/protocol"
)

// Strategy selects how a full observation window is reduced to one estimate
type Strategy int

// Supported packet selection strategies
const (
	StrategyMean   Strategy = 0
	StrategyLS     Strategy = 1
	StrategyMedian Strategy = 2
	StrategyMin    Strategy = 3
	StrategyMax    Strategy = 4
)

// StrategyToString is a map from Strategy to string
var StrategyToString = map[Strategy]string{
	StrategyMean:   "MEAN",
	StrategyLS:     "LS",
	StrategyMedian: "MEDIAN",
	StrategyMin:    "MIN",
	StrategyMax:    "MAX",
}

func (s Strategy) String() string {
	return StrategyToString[s]
}

// Selection is the scalar result of reducing one observation window.
// Slope is normalized: ns of error drift per ns of master time, so the
// controller converts it to ns per SYNC by multiplying with the sync period.
// MasterNs is the unwrapped master-side time of the last sample, i.e. the
// selection instant.
type Selection struct {
	Sec      int64
	Ns       float64
	Slope    float64
	MasterNs float64
}

// Total returns the selected error on a single signed ns axis
func (s Selection) Total() float64 {
	return float64(s.Sec)*protocol.NsPerSec + s.Ns
}

type entry struct {
	ns  float64
	sec int64
	t   float64 // master-side time relative to the window's first sample, ns
}

// Selector buffers per-SYNC error samples into fixed-length observation
// windows and reduces each full window with the configured strategy
type Selector struct {
	winLen   int
	strategy Strategy
	entries  []entry
	tStart   float64
}

// NewSelector creates a selector with the given window length and strategy
func NewSelector(winLen int, strategy Strategy) *Selector {
	s := &Selector{}
	s.Configure(winLen, strategy)
	return s
}

// Configure installs a new window length and strategy and clears the buffer.
// Called on every stage entry.
func (s *Selector) Configure(winLen int, strategy Strategy) {
	if winLen < 1 {
		winLen = 1
	}
	s.winLen = winLen
	s.strategy = strategy
	s.entries = make([]entry, 0, winLen)
}

// Count returns the number of samples buffered in the current window
func (s *Selector) Count() int {
	return len(s.entries)
}

// Push adds one error sample. masterNs is the unwrapped master-side time of
// the sample. When preSubtract is set (terminal stage), the expected slope
// contribution slopeNsPerSync*i is removed before buffering, i being the
// 1-based index within the window.
//
// Returns the window's Selection and true when the window just filled; the
// buffer is then reset for the next window.
func (s *Selector) Push(err protocol.Offset, masterNs, slopeNsPerSync float64, preSubtract bool) (Selection, bool) {
	if len(s.entries) == 0 {
		s.tStart = masterNs
	}
	ns := float64(err.Ns)
	if preSubtract {
		ns -= slopeNsPerSync * float64(len(s.entries)+1)
	}
	s.entries = append(s.entries, entry{ns: ns, sec: err.Sec, t: masterNs - s.tStart})
	if len(s.entries) < s.winLen {
		return Selection{}, false
	}

	sel := s.reduce()
	sel.MasterNs = s.tStart + s.entries[len(s.entries)-1].t
	s.entries = s.entries[:0]
	return sel, true
}

func (s *Selector) reduce() Selection {
	switch s.strategy {
	case StrategyLS:
		return s.reduceLS()
	case StrategyMedian:
		return s.reduceMedian()
	case StrategyMin:
		return s.reduceOrdered(false)
	case StrategyMax:
		return s.reduceOrdered(true)
	default:
		return s.reduceMean()
	}
}

// endpointSlope is the drift rate between the window's first and last
// samples, the slope convention shared by every strategy except LS
func (s *Selector) endpointSlope() float64 {
	n := len(s.entries)
	if n < 2 {
		return 0
	}
	first := s.entries[0]
	last := s.entries[n-1]
	dy := (float64(last.sec)-float64(first.sec))*protocol.NsPerSec + last.ns - first.ns
	dt := last.t - first.t
	if dt <= 0 {
		return 0
	}
	return dy / dt
}

// totals returns the window's error samples unwrapped onto a single signed
// ns axis, in arrival order
func (s *Selector) totals() []float64 {
	out := make([]float64, len(s.entries))
	for i, e := range s.entries {
		out[i] = float64(e.sec)*protocol.NsPerSec + e.ns
	}
	return out
}

// reduceMean averages the error samples
func (s *Selector) reduceMean() Selection {
	var sum float64
	for _, v := range s.totals() {
		sum += v
	}
	return split(sum/float64(len(s.entries)), s.endpointSlope())
}

// reduceMedian picks the middle sample of the window; an even window
// averages the two middle samples
func (s *Selector) reduceMedian() Selection {
	vals := s.totals()
	sort.Float64s(vals)
	n := len(vals)
	med := vals[n/2]
	if n%2 == 0 {
		med = (vals[n/2-1] + vals[n/2]) / 2
	}
	return split(med, s.endpointSlope())
}

// reduceOrdered picks the extreme sample of the window, largest when max is
// set and smallest otherwise
func (s *Selector) reduceOrdered(max bool) Selection {
	vals := s.totals()
	pick := vals[0]
	for _, v := range vals[1:] {
		if (max && v > pick) || (!max && v < pick) {
			pick = v
		}
	}
	return split(pick, s.endpointSlope())
}

// reduceLS fits y = B*t + A by ordinary least squares over the window and
// returns the intercept A and normalized slope B
func (s *Selector) reduceLS() Selection {
	n := float64(len(s.entries))
	if len(s.entries) == 1 {
		e := s.entries[0]
		return split(float64(e.sec)*protocol.NsPerSec+e.ns, 0)
	}
	var sumT, sumY, sumTY, sumTT float64
	for _, e := range s.entries {
		y := float64(e.sec)*protocol.NsPerSec + e.ns
		sumT += e.t
		sumY += y
		sumTY += e.t * y
		sumTT += e.t * e.t
	}
	den := n*sumTT - sumT*sumT
	if den == 0 {
		return split(sumY/n, 0)
	}
	b := (n*sumTY - sumT*sumY) / den
	a := (sumY - b*sumT) / n
	return split(a, b)
}

// split decomposes an unwrapped ns value into (sec, ns) with ns in [0, 1e9)
func split(total, slope float64) Selection {
	sec := math.Floor(total / protocol.NsPerSec)
	return Selection{
		Sec:   int64(sec),
		Ns:    total - sec*protocol.NsPerSec,
		Slope: slope,
	}
}
