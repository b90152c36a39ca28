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

package rtc

import (
	"math"
)

// defaultResPPB is the resolution floor reported when no fractional width is
// configured. Keeps the coarse/fine handover threshold meaningful when the
// quantizer runs as identity.
const defaultResPPB = 0.5

// Quantizer models the unsigned fixed-point register holding the RTC
// increment value in hardware: IntBits integer bits and FracBits fractional
// bits. Disabled, it is an identity function.
type Quantizer struct {
	Enabled  bool
	IntBits  uint
	FracBits uint
}

// Quantize rounds v to the nearest representable value (ties to even) and
// clamps to the register range. The second return reports saturation.
func (q Quantizer) Quantize(v float64) (float64, bool) {
	if !q.Enabled {
		return v, false
	}
	scale := math.Pow(2, float64(q.FracBits))
	raw := math.RoundToEven(v * scale)
	maxRaw := math.Pow(2, float64(q.IntBits+q.FracBits)) - 1
	saturated := false
	if raw < 0 {
		raw = 0
		saturated = true
	} else if raw > maxRaw {
		raw = maxRaw
		saturated = true
	}
	return raw / scale, saturated
}

// ResolutionPPB reports the frequency resolution of one fractional LSB
// around the nominal period: the normalized distance from nominal to the
// closest neighboring representable frequency, in ppb.
func (q Quantizer) ResolutionPPB(nominalPeriodNs float64) float64 {
	if q.FracBits == 0 {
		return defaultResPPB
	}
	nominalFreq := 1e9 / nominalPeriodNs
	closerFreq := 1e9 / (nominalPeriodNs + math.Pow(2, -float64(q.FracBits)))
	return (nominalFreq - closerFreq) / nominalFreq * 1e9
}
