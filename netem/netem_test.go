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

package netem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErlangValidation(t *testing.T) {
	_, err := NewErlang(0, 5e-6, 1)
	require.Error(t, err)
	_, err = NewErlang(2, 0, 1)
	require.Error(t, err)
	_, err = NewErlang(2, -1, 1)
	require.Error(t, err)
}

func TestErlangMean(t *testing.T) {
	mean := 5e-6
	g, err := NewErlang(2, mean, 42)
	require.NoError(t, err)

	n := 200000
	var sum float64
	for i := 0; i < n; i++ {
		d := g.Sample()
		require.Greater(t, d, 0.0)
		sum += d
	}
	// sample mean of Erlang-2 with n=200k has stddev mean/sqrt(2n) ~ 0.16%
	require.InDelta(t, mean, sum/float64(n), mean*0.02)
}

func TestErlangDeterministic(t *testing.T) {
	a, err := NewErlang(3, 1e-6, 7)
	require.NoError(t, err)
	b, err := NewErlang(3, 1e-6, 7)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Sample(), b.Sample())
	}
}
