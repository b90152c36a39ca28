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

// Package netem generates the stochastic per-frame network delays the
// simulated PTP frames experience. Delay is modeled as Erlang-K: the sum of
// K i.i.d. exponential stages, approximating a frame crossing K queues.
package netem

import (
	"fmt"
	"math/rand"
)

// Erlang samples Erlang-K distributed delays with the configured mean.
// Each stage has rate K/mean so the sum keeps the mean.
type Erlang struct {
	k    int
	mean float64
	rng  *rand.Rand
}

// NewErlang creates an Erlang-K delay generator. mean is in seconds.
// The generator is deterministic for a given seed.
func NewErlang(k int, mean float64, seed int64) (*Erlang, error) {
	if k < 1 {
		return nil, fmt.Errorf("erlang K must be at least 1, got %d", k)
	}
	if mean <= 0 {
		return nil, fmt.Errorf("queueing mean must be positive, got %v", mean)
	}
	return &Erlang{
		k:    k,
		mean: mean,
		rng:  rand.New(rand.NewSource(seed)),
	}, nil
}

// Sample returns one delay realization in seconds
func (e *Erlang) Sample() float64 {
	stageMean := e.mean / float64(e.k)
	var d float64
	for i := 0; i < e.k; i++ {
		d += e.rng.ExpFloat64() * stageMean
	}
	return d
}
