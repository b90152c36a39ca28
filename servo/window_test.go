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

	"github.com/stretchr/testify/require"
)

func TestSmootherTransient(t *testing.T) {
	s := NewSmoother(3)
	v, post := s.Push(3)
	require.False(t, post)
	require.InDelta(t, 3.0, v, 1e-12)

	v, post = s.Push(6)
	require.False(t, post)
	require.InDelta(t, 4.5, v, 1e-12)

	v, post = s.Push(9)
	require.True(t, post)
	require.InDelta(t, 6.0, v, 1e-12)

	// sliding: oldest (3) dropped
	v, post = s.Push(12)
	require.True(t, post)
	require.InDelta(t, 9.0, v, 1e-12)
	require.InDelta(t, 12.0, s.Last(), 1e-12)
}

func TestSmootherLengthClamped(t *testing.T) {
	s := NewSmoother(0)
	v, post := s.Push(42)
	require.True(t, post)
	require.InDelta(t, 42.0, v, 1e-12)
}
