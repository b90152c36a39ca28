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
	"github.com/facebook/ptpsim/protocol"
)

// EstimateOffset computes the raw RTC error from one SYNC exchange.
// t1 is the master departure timestamp, t2 the slave arrival timestamp from
// the syntonized counter, delayNs the current one-way delay estimate.
//
// It returns the normalized error (master minus slave) and the master-side
// time of the arrival instant as (sec, ns) with the ns carry applied exactly
// once. The carry is folded into err.Ns before normalization, so a SYNC
// arriving across a ns wrap does not lose a second.
func EstimateOffset(t1, t2 protocol.Timestamp, delayNs float64) (err protocol.Offset, masterSec uint64, masterNs int64) {
	arrivalNs := int64(t1.Ns) + int64(delayNs)

	err = protocol.Offset{
		Sec: int64(t1.Sec) - int64(t2.Sec),
		Ns:  arrivalNs - int64(t2.Ns),
	}
	err.Normalize()

	masterSec = t1.Sec
	masterNs = arrivalNs
	if masterNs >= protocol.NsPerSec {
		masterNs -= protocol.NsPerSec
		masterSec++
	}
	return err, masterSec, masterNs
}
