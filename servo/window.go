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
)

type slidingWindow struct {
	size        int
	currentSize int
	sum         float64
	samples     []float64
}

func newSlidingWindow(size int) *slidingWindow {
	if size < 1 {
		size = 1
	}
	w := &slidingWindow{
		size:    size,
		samples: make([]float64, size),
	}
	for i := range w.samples {
		w.samples[i] = math.NaN()
	}
	return w
}

func (w *slidingWindow) add(sample float64) {
	if !w.Full() {
		w.currentSize++
	} else {
		w.sum -= w.samples[w.size-1]
	}
	for i := w.currentSize - 1; i > 0; i-- {
		w.samples[i] = w.samples[i-1]
	}

	w.samples[0] = sample
	w.sum += sample
}

func (w *slidingWindow) lastSample() float64 {
	return w.samples[0]
}

func (w *slidingWindow) mean() float64 {
	return w.sum / float64(w.currentSize)
}

func (w *slidingWindow) Full() bool {
	return w.currentSize == w.size
}

// Smoother is a length-N moving average with transient semantics: Push
// reports the running mean and whether the filter has seen at least N
// samples. Stage transitions key on the post-transient flag.
type Smoother struct {
	win *slidingWindow
}

// NewSmoother creates a moving average of the given length. Lengths below 1
// are clamped to 1, which makes the filter transparent.
func NewSmoother(length int) *Smoother {
	return &Smoother{win: newSlidingWindow(length)}
}

// Push adds a sample and returns (current mean, post-transient)
func (s *Smoother) Push(x float64) (float64, bool) {
	s.win.add(x)
	return s.win.mean(), s.win.Full()
}

// Last returns the most recent raw sample
func (s *Smoother) Last() float64 {
	return s.win.lastSample()
}
