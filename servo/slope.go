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

	"github.com/facebook/ptpsim/rtc"
)

// SlopeCorrector applies the per-SYNC slope correction to the slave's
// time-offset register. The fractional accumulator and the integer applied
// accumulator never drift apart by more than 1 ns, preserving sub-ns
// resolution over arbitrarily many SYNCs.
type SlopeCorrector struct {
	slopeAccum     float64 // accumulated slope, fractional ns
	appliedNsAccum int64   // integer ns already written to the register
}

// Apply accumulates one SYNC period worth of slope and writes the integer
// part not yet applied to the offset register
func (c *SlopeCorrector) Apply(slopeNsPerSync float64, clk *rtc.RTC) {
	c.slopeAccum += slopeNsPerSync
	unapplied := c.slopeAccum - float64(c.appliedNsAccum)
	step := int64(math.Floor(unapplied))
	if step != 0 {
		clk.AddTimeOffsetNs(step)
		c.appliedNsAccum += step
	}
}

// AccumNs returns the fractional accumulator value
func (c *SlopeCorrector) AccumNs() float64 {
	return c.slopeAccum
}

// AppliedNs returns the integer ns already written to the register
func (c *SlopeCorrector) AppliedNs() int64 {
	return c.appliedNsAccum
}
