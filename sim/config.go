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

package sim

import (
	"fmt"

	"github.com/facebook/ptpsim/rtc"
	"github.com/facebook/ptpsim/servo"
)

// Config is the full simulation setup. Zero-valued fields are not implied
// defaults, start from DefaultConfig and override.
type Config struct {
	TStepSim      float64 `yaml:"t_step_sim"`      // fallback step when the queue is empty, seconds
	NominalRTCClk float64 `yaml:"nominal_rtc_clk"` // Hz

	Master rtc.Config `yaml:"master"`
	Slave  rtc.Config `yaml:"slave"`

	SyncRate      float64 `yaml:"sync_rate"`       // SYNC frames per second
	PdelayReqRate float64 `yaml:"pdelay_req_rate"` // peer delay requests per second

	RTCIncEstPeriod  int     `yaml:"rtc_inc_est_period"`
	PerfectDelayEst  bool    `yaml:"perfect_delay_est"`
	FoffsetThreshPPB float64 `yaml:"foffset_thresh_ppb"`

	EnFPIncVal     bool `yaml:"en_fp_inc_val"`
	NIncValIntBits uint `yaml:"n_inc_val_int_bits"`
	NIncValFrcBits uint `yaml:"n_inc_val_frc_bits"`

	FilterRTCInc    bool `yaml:"filter_rtc_inc"`
	RTCIncFiltLen   int  `yaml:"rtc_inc_filt_len"`
	FilterDelayEst  bool `yaml:"filter_delay_est"`
	DelayEstFiltLen int  `yaml:"delay_est_filt_len"`

	PacketSelection bool                 `yaml:"packet_selection"`
	SampleWinDelay  bool                 `yaml:"sample_win_delay"`
	Stages          [4]servo.StageConfig `yaml:"stages"`

	QueueingMean float64 `yaml:"queueing_mean"` // seconds; 0 disables network delay
	ErlangK      int     `yaml:"erlang_k"`
	Seed         int64   `yaml:"seed"`
}

// DefaultConfig returns the reference setup: 125MHz clocks, SYNC at 128Hz,
// peer delay at 8Hz, Erlang-2 delays with a 5us mean and least-squares
// selection windows sized per stage.
func DefaultConfig() Config {
	return Config{
		TStepSim:         1e-9,
		NominalRTCClk:    125e6,
		SyncRate:         128,
		PdelayReqRate:    8,
		RTCIncEstPeriod:  2,
		FoffsetThreshPPB: 5000,
		FilterRTCInc:     true,
		RTCIncFiltLen:    4,
		FilterDelayEst:   true,
		DelayEstFiltLen:  16,
		PacketSelection:  true,
		Stages: [4]servo.StageConfig{
			{WindowLen: 64, Strategy: servo.StrategyLS},
			{WindowLen: 512, Strategy: servo.StrategyLS},
			{WindowLen: 16384, Strategy: servo.StrategyLS},
			{WindowLen: 1024, Strategy: servo.StrategyLS},
		},
		QueueingMean: 5e-6,
		ErlangK:      2,
	}
}

// ServoConfig maps the simulation setup onto the servo's own config
func (c *Config) ServoConfig() servo.Config {
	return servo.Config{
		SyncRate:         c.SyncRate,
		RTCIncEstPeriod:  c.RTCIncEstPeriod,
		PacketSelection:  c.PacketSelection,
		SampleWinDelay:   c.SampleWinDelay,
		PerfectDelayEst:  c.PerfectDelayEst,
		FoffsetThreshPPB: c.FoffsetThreshPPB,
		FilterRTCInc:     c.FilterRTCInc,
		RTCIncFiltLen:    c.RTCIncFiltLen,
		FilterDelayEst:   c.FilterDelayEst,
		DelayEstFiltLen:  c.DelayEstFiltLen,
		EnFPIncVal:       c.EnFPIncVal,
		NIncValIntBits:   c.NIncValIntBits,
		NIncValFrcBits:   c.NIncValFrcBits,
		NominalRTCClk:    c.NominalRTCClk,
		Stages:           c.Stages,
	}
}

// Validate Config is sane
func (c *Config) Validate() error {
	if c.TStepSim <= 0 {
		return fmt.Errorf("t_step_sim must be positive, got %v", c.TStepSim)
	}
	if c.PdelayReqRate <= 0 {
		return fmt.Errorf("pdelay_req_rate must be positive, got %v", c.PdelayReqRate)
	}
	if c.QueueingMean < 0 {
		return fmt.Errorf("queueing_mean must be 0 or positive, got %v", c.QueueingMean)
	}
	if c.QueueingMean > 0 && c.ErlangK < 1 {
		return fmt.Errorf("erlang_k must be at least 1, got %d", c.ErlangK)
	}
	if err := c.Master.Validate(); err != nil {
		return fmt.Errorf("master rtc: %w", err)
	}
	if err := c.Slave.Validate(); err != nil {
		return fmt.Errorf("slave rtc: %w", err)
	}
	sc := c.ServoConfig()
	if err := sc.Validate(); err != nil {
		return err
	}
	return nil
}
