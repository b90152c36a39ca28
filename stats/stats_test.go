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

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/ptpsim/servo"
	"github.com/facebook/ptpsim/sim"
)

func TestRecorderPerStage(t *testing.T) {
	r := NewRecorder(10)
	r.Observe(sim.Output{Stage: servo.StageDelayEst, ActualNsError: 100, FilteredDelayNs: 5000})
	r.Observe(sim.Output{Stage: servo.StageDelayEst, ActualNsError: 200, FilteredDelayNs: 5000})
	r.Observe(sim.Output{Stage: servo.StageConstToff, ActualNsError: -10, NormFreqOffset: 50e-9})

	require.Equal(t, []servo.SyncStage{servo.StageDelayEst, servo.StageConstToff}, r.Stages())

	st := r.Stage(servo.StageDelayEst)
	require.NotNil(t, st)
	require.Equal(t, uint64(2), st.Count())
	require.InDelta(t, 150.0, st.ErrorNs.Mean(), 1e-12)
	require.InDelta(t, 5000.0, st.DelayNs.Mean(), 1e-12)

	last := r.Stage(servo.StageConstToff)
	require.Equal(t, uint64(1), last.Count())
	require.InDelta(t, 50.0, last.FreqPPB.Mean(), 1e-9)

	require.Nil(t, r.Stage(servo.StageCoarseSynt))
}

func TestRecorderSeriesNewestFirst(t *testing.T) {
	r := NewRecorder(3)
	for i := 1; i <= 5; i++ {
		r.Observe(sim.Output{Stage: servo.StageDelayEst, ActualNsError: float64(i)})
	}
	params := r.Params()
	// bounded to 3, newest first
	require.Equal(t, []float64{5, 4, 3}, params["offset"])
}

func TestExporterObserve(t *testing.T) {
	e := NewPrometheusExporter(9100)
	e.Observe(sim.Output{
		Stage:           servo.StageFineSynt,
		ActualNsError:   42,
		FilteredDelayNs: 5000,
		NormFreqOffset:  100e-9,
	})
	e.Observe(sim.Output{Stage: servo.StageConstToff, ActualNsError: -3})

	families, err := e.registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		if mf.GetMetric()[0].GetCounter() != nil {
			values[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.InDelta(t, -3.0, values["ptpsim_offset_ns"], 1e-9)
	require.InDelta(t, 4.0, values["ptpsim_sync_stage"], 1e-9)
	require.InDelta(t, 2.0, values["ptpsim_sync_rx_total"], 1e-9)
}
