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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageTypeString(t *testing.T) {
	require.Equal(t, "SYNC", MessageSync.String())
	require.Equal(t, "PDELAY_REQ", MessagePDelayReq.String())
	require.Equal(t, "PDELAY_RESP", MessagePDelayResp.String())
}

func TestOffsetNormalize(t *testing.T) {
	t.Run("carry up", func(t *testing.T) {
		o := Offset{Sec: 0, Ns: 2*NsPerSec + 42}
		o.Normalize()
		require.Equal(t, Offset{Sec: 2, Ns: 42}, o)
	})
	t.Run("borrow down", func(t *testing.T) {
		o := Offset{Sec: 0, Ns: -100}
		o.Normalize()
		require.Equal(t, Offset{Sec: -1, Ns: NsPerSec - 100}, o)
	})
	t.Run("already normalized", func(t *testing.T) {
		o := Offset{Sec: 3, Ns: 999_999_999}
		o.Normalize()
		require.Equal(t, Offset{Sec: 3, Ns: 999_999_999}, o)
	})
}

func TestOffsetAddNs(t *testing.T) {
	o := Offset{Sec: 0, Ns: 999_999_999}
	o.AddNs(2)
	require.Equal(t, Offset{Sec: 1, Ns: 1}, o)
	o.AddNs(-10)
	require.Equal(t, Offset{Sec: 0, Ns: 999_999_991}, o)
	require.InDelta(t, 999_999_991.0, o.Nanoseconds(), 0.0)
}

func TestTimestampNanoseconds(t *testing.T) {
	ts := Timestamp{Sec: 2, Ns: 500_000_000}
	require.InDelta(t, 2.5e9, ts.Nanoseconds(), 0.0)
}
