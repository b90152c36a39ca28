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

	"github.com/facebook/ptpsim/protocol"
)

// DelayEstimator computes the one-way delay from the four peer-delay
// timestamps and smooths it with a moving average. Until the filter
// transient completes it reports the floor of the raw estimate.
type DelayEstimator struct {
	sm            *Smoother
	rawNs         float64
	estNs         float64
	postTransient bool
}

// NewDelayEstimator creates a delay estimator with the given filter length.
// Length below 1 disables filtering (length 1).
func NewDelayEstimator(filterLen int) *DelayEstimator {
	return &DelayEstimator{sm: NewSmoother(filterLen)}
}

// Update processes one completed Pdelay exchange:
// t1 slave-TX, t2 master-RX, t3 master-TX, t4 slave-RX.
// Negative ns differences are fixed by a single 1e9 wrap.
func (d *DelayEstimator) Update(t1, t2, t3, t4 protocol.Timestamp) {
	dMS := float64(int64(t4.Ns) - int64(t1.Ns))
	if dMS < 0 {
		dMS += protocol.NsPerSec
	}
	dSM := float64(int64(t3.Ns) - int64(t2.Ns))
	if dSM < 0 {
		dSM += protocol.NsPerSec
	}
	raw := (dMS - dSM) / 2

	avg, post := d.sm.Push(raw)
	d.rawNs = raw
	if post {
		d.estNs = math.Floor(avg)
	} else {
		d.estNs = math.Floor(raw)
	}
	d.postTransient = post
}

// RawNs returns the latest unfiltered delay in ns
func (d *DelayEstimator) RawNs() float64 {
	return d.rawNs
}

// EstNs returns the current integer-ns delay estimate: the filtered value
// once the transient completed, the raw value before that
func (d *DelayEstimator) EstNs() float64 {
	return d.estNs
}

// PostTransient reports whether the filter has seen a full window
func (d *DelayEstimator) PostTransient() bool {
	return d.postTransient
}
