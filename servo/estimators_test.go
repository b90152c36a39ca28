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
	"testing"

	"github.com/facebook/ptpsim/protocol"
	"github.com/stretchr/testify/require"
)

func ts(sec uint64, ns uint32) protocol.Timestamp {
	return protocol.Timestamp{Sec: sec, Ns: ns}
}

func TestDelayEstimatorSymmetric(t *testing.T) {
	d := NewDelayEstimator(1)
	// 5000ns each way, 100ns turnaround on the master
	d.Update(ts(0, 1000), ts(0, 6000), ts(0, 6100), ts(0, 11100))
	require.InDelta(t, 5000.0, d.RawNs(), 1e-9)
	require.InDelta(t, 5000.0, d.EstNs(), 1e-9)
	require.True(t, d.PostTransient())
}

func TestDelayEstimatorNsWrap(t *testing.T) {
	d := NewDelayEstimator(1)
	// slave TX just before the wrap, RX just after
	d.Update(ts(0, 999_999_000), ts(1, 4000), ts(1, 4100), ts(1, 9100))
	require.InDelta(t, 5000.0, d.RawNs(), 1e-9)
}

func TestDelayEstimatorTransient(t *testing.T) {
	d := NewDelayEstimator(4)
	samples := []float64{4000, 5000, 6000, 5000}
	for i, raw := range samples {
		// construct a symmetric exchange with the wanted delay
		d.Update(ts(0, 0), ts(0, uint32(raw)), ts(0, uint32(raw)), ts(0, uint32(2*raw)))
		if i < len(samples)-1 {
			require.False(t, d.PostTransient())
			// pre-transient: floor of raw
			require.InDelta(t, raw, d.EstNs(), 1e-9)
		}
	}
	require.True(t, d.PostTransient())
	require.InDelta(t, 5000.0, d.EstNs(), 1e-9)
}

func TestEstimateOffsetSimple(t *testing.T) {
	// master ahead by 250ns, delay 1000ns
	err, mSec, mNs := EstimateOffset(ts(10, 2000), ts(10, 2750), 1000)
	require.Equal(t, protocol.Offset{Sec: 0, Ns: 250}, err)
	require.Equal(t, uint64(10), mSec)
	require.Equal(t, int64(3000), mNs)
}

func TestEstimateOffsetCarryOnce(t *testing.T) {
	// arrival instant crosses the ns wrap: carry applied exactly once
	err, mSec, mNs := EstimateOffset(ts(10, 999_999_900), ts(11, 400), 1000)
	require.Equal(t, protocol.Offset{Sec: 0, Ns: 500}, err)
	require.Equal(t, uint64(11), mSec)
	require.Equal(t, int64(900), mNs)
}

func TestEstimateOffsetNegative(t *testing.T) {
	// slave ahead of master: normalized with borrowed second
	err, _, _ := EstimateOffset(ts(10, 1000), ts(10, 2500), 1000)
	require.Equal(t, protocol.Offset{Sec: -1, Ns: protocol.NsPerSec - 500}, err)
	require.InDelta(t, -500.0, err.Nanoseconds(), 1e-9)
}

func TestEstimateOffsetMultiSecond(t *testing.T) {
	err, _, _ := EstimateOffset(ts(12, 1000), ts(10, 1000), 0)
	require.Equal(t, protocol.Offset{Sec: 2, Ns: 0}, err)
}
