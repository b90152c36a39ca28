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

// Package stats accumulates per-run statistics of a simulation: running
// summaries per sync stage, bounded sample histories for formula evaluation,
// and an optional prometheus exporter.
package stats

import (
	"github.com/eclesh/welford"

	"github.com/facebook/ptpsim/servo"
	"github.com/facebook/ptpsim/sim"
)

// DefaultHistory is the default number of samples kept for formulas
const DefaultHistory = 100

// StageStats is the running summary of one sync stage
type StageStats struct {
	ErrorNs *welford.Stats
	DelayNs *welford.Stats
	FreqPPB *welford.Stats
}

func newStageStats() *StageStats {
	return &StageStats{
		ErrorNs: welford.New(),
		DelayNs: welford.New(),
		FreqPPB: welford.New(),
	}
}

// Count returns the number of SYNC receptions summarized for this stage
func (s *StageStats) Count() uint64 {
	return s.ErrorNs.Count()
}

// Recorder consumes simulation outputs and keeps per-stage welford summaries
// plus a bounded most-recent-first history of each observed series
type Recorder struct {
	history int
	stages  map[servo.SyncStage]*StageStats

	offsets []float64
	delays  []float64
	freqs   []float64
}

// NewRecorder creates a Recorder keeping up to history samples per series
func NewRecorder(history int) *Recorder {
	if history < 1 {
		history = DefaultHistory
	}
	return &Recorder{
		history: history,
		stages:  map[servo.SyncStage]*StageStats{},
	}
}

// Observe records one simulation output
func (r *Recorder) Observe(o sim.Output) {
	st, ok := r.stages[o.Stage]
	if !ok {
		st = newStageStats()
		r.stages[o.Stage] = st
	}
	freqPPB := o.NormFreqOffset * 1e9
	st.ErrorNs.Add(o.ActualNsError)
	st.DelayNs.Add(o.FilteredDelayNs)
	st.FreqPPB.Add(freqPPB)

	r.offsets = push(r.offsets, o.ActualNsError, r.history)
	r.delays = push(r.delays, o.FilteredDelayNs, r.history)
	r.freqs = push(r.freqs, freqPPB, r.history)
}

// push prepends v keeping the series most-recent-first and bounded
func push(series []float64, v float64, limit int) []float64 {
	series = append(series, 0)
	copy(series[1:], series)
	series[0] = v
	if len(series) > limit {
		series = series[:limit]
	}
	return series
}

// Stage returns the summary for one stage, nil if it was never observed
func (r *Recorder) Stage(stage servo.SyncStage) *StageStats {
	return r.stages[stage]
}

// Stages returns the stages observed so far, in transition order
func (r *Recorder) Stages() []servo.SyncStage {
	all := []servo.SyncStage{
		servo.StageDelayEst,
		servo.StageCoarseSynt,
		servo.StageFineSynt,
		servo.StageConstToff,
	}
	var seen []servo.SyncStage
	for _, s := range all {
		if _, ok := r.stages[s]; ok {
			seen = append(seen, s)
		}
	}
	return seen
}

// Params returns the recorded series for formula evaluation, newest first
func (r *Recorder) Params() map[string][]float64 {
	return map[string][]float64{
		"offset": append([]float64{}, r.offsets...),
		"delay":  append([]float64{}, r.delays...),
		"freq":   append([]float64{}, r.freqs...),
	}
}
