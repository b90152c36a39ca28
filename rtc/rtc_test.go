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
	"testing"

	"github.com/facebook/ptpsim/protocol"
	"github.com/stretchr/testify/require"
)

const nominalHz = 125e6

func TestNewValidation(t *testing.T) {
	_, err := New(0, Config{})
	require.Error(t, err)
	_, err = New(nominalHz, Config{InitTimeNs: protocol.NsPerSec})
	require.Error(t, err)
	_, err = New(nominalHz, Config{InitRisingEdgeNs: -1})
	require.Error(t, err)
}

func TestTickAccrual(t *testing.T) {
	r, err := New(nominalHz, Config{})
	require.NoError(t, err)
	require.InDelta(t, 8.0, r.IncValNs(), 1e-12)

	// one second of simulated time: 125e6 edges at 8ns each
	require.NoError(t, r.Tick(1.0))
	require.Equal(t, uint64(125_000_000), r.Edges())
	ts := r.Timestamp()
	require.Equal(t, uint64(1), ts.Sec)
	require.Equal(t, uint32(0), ts.Ns)
}

func TestTickExactPeriodBoundary(t *testing.T) {
	// ticking exactly on a rising edge must count that edge: multiplying by
	// the frequency keeps whole-second quotients exact where dividing by the
	// rounded 1/125e6 period drops one edge
	r, err := New(nominalHz, Config{})
	require.NoError(t, err)
	require.NoError(t, r.Tick(0.2))
	require.Equal(t, uint64(25_000_000), r.Edges())
	require.NoError(t, r.Tick(0.5))
	require.Equal(t, uint64(62_500_000), r.Edges())
	require.NoError(t, r.Tick(1.0))
	require.Equal(t, uint64(125_000_000), r.Edges())
	ts := r.Timestamp()
	require.Equal(t, uint64(1), ts.Sec)
	require.Equal(t, uint32(0), ts.Ns)
}

func TestTickNsBounded(t *testing.T) {
	r, err := New(nominalHz, Config{FreqOffsetPPB: 400})
	require.NoError(t, err)
	for i := 1; i <= 1000; i++ {
		require.NoError(t, r.Tick(float64(i)*0.0097))
		ts := r.Timestamp()
		require.Less(t, ts.Ns, uint32(protocol.NsPerSec))
	}
}

func TestTickEdgesMonotone(t *testing.T) {
	r, err := New(nominalHz, Config{InitRisingEdgeNs: 3})
	require.NoError(t, err)
	prev := r.Edges()
	times := []float64{0, 1e-9, 1e-9, 5e-7, 4e-7, 1e-3}
	for _, tm := range times {
		require.NoError(t, r.Tick(tm))
		require.GreaterOrEqual(t, r.Edges(), prev)
		prev = r.Edges()
	}
}

func TestIncValChangeAffectsOnlyFuture(t *testing.T) {
	r, err := New(nominalHz, Config{})
	require.NoError(t, err)
	require.NoError(t, r.Tick(0.5))
	edges := r.Edges()
	before := r.SyntonizedNs()

	require.NoError(t, r.SetIncValNs(9.0))
	// no time passed: counters untouched, edge count untouched
	require.NoError(t, r.Tick(0.5))
	require.Equal(t, edges, r.Edges())
	require.InDelta(t, before, r.SyntonizedNs(), 1e-9)

	// next half second accrues at the new increment
	require.NoError(t, r.Tick(1.0))
	require.InDelta(t, before+9.0*float64(r.Edges()-edges), r.SyntonizedNs(), 1e-3)
}

func TestSetIncValNsRejectsGarbage(t *testing.T) {
	r, err := New(nominalHz, Config{})
	require.NoError(t, err)
	require.Error(t, r.SetIncValNs(0))
	require.Error(t, r.SetIncValNs(-8))
}

func TestOffsetRegister(t *testing.T) {
	r, err := New(nominalHz, Config{InitTimeSec: 10})
	require.NoError(t, err)
	r.SetTimeOffset(protocol.Offset{Sec: 2, Ns: 500})
	require.InDelta(t, r.SyntonizedNs()+2e9+500, r.SynchronizedNs(), 1e-6)

	r.AddTimeOffsetNs(-600)
	off := r.TimeOffset()
	require.Equal(t, int64(1), off.Sec)
	require.Equal(t, int64(protocol.NsPerSec-100), off.Ns)
}

func TestQuantizer(t *testing.T) {
	t.Run("disabled is identity", func(t *testing.T) {
		q := Quantizer{}
		v, sat := q.Quantize(8.000123456789)
		require.False(t, sat)
		require.Equal(t, 8.000123456789, v)
	})
	t.Run("round to nearest", func(t *testing.T) {
		q := Quantizer{Enabled: true, IntBits: 4, FracBits: 4}
		v, sat := q.Quantize(8.03)
		require.False(t, sat)
		require.InDelta(t, 8.0, v, 1e-12)
		v, sat = q.Quantize(8.05)
		require.False(t, sat)
		require.InDelta(t, 8.0625, v, 1e-12)
	})
	t.Run("ties to even", func(t *testing.T) {
		q := Quantizer{Enabled: true, IntBits: 4, FracBits: 1}
		v, _ := q.Quantize(8.25) // raw 16.5, rounds to 16
		require.InDelta(t, 8.0, v, 1e-12)
		v, _ = q.Quantize(8.75) // raw 17.5, rounds to 18
		require.InDelta(t, 9.0, v, 1e-12)
	})
	t.Run("saturation", func(t *testing.T) {
		q := Quantizer{Enabled: true, IntBits: 3, FracBits: 2}
		v, sat := q.Quantize(9.0)
		require.True(t, sat)
		require.InDelta(t, 7.75, v, 1e-12) // 2^5-1 raw / 2^2
		v, sat = q.Quantize(-1.0)
		require.True(t, sat)
		require.Equal(t, 0.0, v)
	})
	t.Run("resolution", func(t *testing.T) {
		q := Quantizer{Enabled: true, IntBits: 26, FracBits: 20}
		res := q.ResolutionPPB(8.0)
		// one 2^-20 ns LSB on an 8ns period is ~119 ppb
		require.InDelta(t, 119.2, res, 0.1)
		require.Equal(t, defaultResPPB, Quantizer{}.ResolutionPPB(8.0))
	})
}
