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

// Package sim runs the discrete-event simulation: a master and a slave RTC,
// a stochastic network between them, and the servo disciplining the slave.
// Everything is owned by one Simulator and driven single-threaded, so a run
// is deterministic for a given seed.
package sim

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/ptpsim/netem"
	"github.com/facebook/ptpsim/protocol"
	"github.com/facebook/ptpsim/rtc"
	"github.com/facebook/ptpsim/servo"
)

// Output is the record emitted after every handled SYNC reception
type Output struct {
	TSim            float64 // seconds
	ActualNsError   float64 // master minus slave synchronized counters, unwrapped
	NormFreqOffset  float64 // slave effective counting rate vs nominal
	RawDelayNs      float64
	FilteredDelayNs float64
	Stage           servo.SyncStage
}

// Simulator owns the clocks, the event queue and the servo. Handlers mutate
// state only through the Simulator, there is no concurrency inside a run.
type Simulator struct {
	cfg   Config
	clock *rtc.RTC // master
	slave *rtc.RTC
	servo *servo.Servo
	queue *EventQueue
	delay *netem.Erlang // nil when queueing_mean is 0

	tSim float64

	// on_way guards: one frame of each kind in flight at a time. A TX event
	// that fires while its guard is set is stale and only reschedules.
	syncOnWay       bool
	pdelayReqOnWay  bool
	pdelayRespOnWay bool

	syncSeq   uint16
	pdelaySeq uint16
	pdelayT1  protocol.Timestamp // slave TX timestamp of the request in flight

	syncRxCount int
	emptySteps  int
}

// New creates a simulator from the config. The first SYNC and peer delay
// transmissions are scheduled one period in.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	master, err := rtc.New(cfg.NominalRTCClk, cfg.Master)
	if err != nil {
		return nil, fmt.Errorf("creating master rtc: %w", err)
	}
	slave, err := rtc.New(cfg.NominalRTCClk, cfg.Slave)
	if err != nil {
		return nil, fmt.Errorf("creating slave rtc: %w", err)
	}
	srv, err := servo.New(cfg.ServoConfig(), slave)
	if err != nil {
		return nil, fmt.Errorf("creating servo: %w", err)
	}
	var delay *netem.Erlang
	if cfg.QueueingMean > 0 {
		delay, err = netem.NewErlang(cfg.ErlangK, cfg.QueueingMean, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("creating delay generator: %w", err)
		}
	}
	s := &Simulator{
		cfg:   cfg,
		clock: master,
		slave: slave,
		servo: srv,
		queue: NewEventQueue(),
		delay: delay,
	}
	s.queue.Push(Event{TSim: 1 / cfg.SyncRate, Kind: evSyncTx})
	s.queue.Push(Event{TSim: 1 / cfg.PdelayReqRate, Kind: evPdelayReqTx})
	return s, nil
}

// Master returns the master RTC
func (s *Simulator) Master() *rtc.RTC {
	return s.clock
}

// Slave returns the slave RTC
func (s *Simulator) Slave() *rtc.RTC {
	return s.slave
}

// Servo returns the servo disciplining the slave
func (s *Simulator) Servo() *servo.Servo {
	return s.servo
}

// TSim returns the current simulated time in seconds
func (s *Simulator) TSim() float64 {
	return s.tSim
}

// EmptySteps returns how often the driver had to fall back to a fixed step
// because the event queue was empty
func (s *Simulator) EmptySteps() int {
	return s.emptySteps
}

func (s *Simulator) sampleDelay() float64 {
	if s.delay == nil {
		return 0
	}
	return s.delay.Sample()
}

// Run drives the simulation until nSyncRx SYNC receptions have been handled,
// invoking emit after each one. emit may be nil.
func (s *Simulator) Run(ctx context.Context, nSyncRx int, emit func(Output)) error {
	target := s.syncRxCount + nSyncRx
	for s.syncRxCount < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(emit); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one driver iteration: accrue both RTCs to the current simulated
// time, dispatch every event that time has reached, then advance to the next
// scheduled event. An empty queue falls back to a fixed step so the driver
// cannot deadlock.
func (s *Simulator) Step(emit func(Output)) error {
	if err := s.clock.Tick(s.tSim); err != nil {
		return fmt.Errorf("master rtc: %w", err)
	}
	if err := s.slave.Tick(s.tSim); err != nil {
		return fmt.Errorf("slave rtc: %w", err)
	}

	for s.queue.Len() > 0 && s.queue.Peek().TSim <= s.tSim {
		if err := s.handle(s.queue.Pop(), emit); err != nil {
			return err
		}
	}

	if s.queue.Len() == 0 {
		s.emptySteps++
		log.Warningf("event queue empty at t_sim=%v, stepping by %v", s.tSim, s.cfg.TStepSim)
		s.tSim += s.cfg.TStepSim
		return nil
	}
	s.tSim = s.queue.Peek().TSim
	return nil
}

func (s *Simulator) handle(evt Event, emit func(Output)) error {
	switch evt.Kind {
	case evSyncTx:
		if !s.syncOnWay {
			d := s.sampleDelay()
			s.syncSeq++
			s.syncOnWay = true
			s.queue.Push(Event{
				TSim: s.tSim + d,
				Kind: evSyncRx,
				Sync: protocol.Sync{
					SequenceID:      s.syncSeq,
					OriginTimestamp: s.clock.Timestamp(),
					TrueDelayNs:     d * protocol.NsPerSec,
				},
			})
		}
		s.queue.Push(Event{TSim: evt.TSim + 1/s.cfg.SyncRate, Kind: evSyncTx})

	case evSyncRx:
		s.syncOnWay = false
		t2 := s.slave.Timestamp()
		res, err := s.servo.OnSyncRx(evt.Sync.OriginTimestamp, t2, evt.Sync.TrueDelayNs)
		if err != nil {
			return fmt.Errorf("sync rx handler: %w", err)
		}
		s.syncRxCount++
		if emit != nil {
			emit(Output{
				TSim:            s.tSim,
				ActualNsError:   s.clock.SynchronizedNs() - s.slave.SynchronizedNs(),
				NormFreqOffset:  s.slave.ClkFreq()*s.slave.IncValNs()/protocol.NsPerSec - 1,
				RawDelayNs:      res.RawDelayNs,
				FilteredDelayNs: res.FilteredDelayNs,
				Stage:           res.Stage,
			})
		}

	case evPdelayReqTx:
		if !s.pdelayReqOnWay && !s.pdelayRespOnWay {
			s.pdelaySeq++
			s.pdelayReqOnWay = true
			s.pdelayT1 = s.slave.Timestamp()
			s.queue.Push(Event{TSim: s.tSim + s.sampleDelay(), Kind: evPdelayReqRx})
		}
		s.queue.Push(Event{TSim: evt.TSim + 1/s.cfg.PdelayReqRate, Kind: evPdelayReqTx})

	case evPdelayReqRx:
		s.pdelayReqOnWay = false
		s.pdelayRespOnWay = true
		// t2 and t3 are separate reads of the same counter state and may
		// coincide, the turnaround cancels in the delay estimate
		t2 := s.clock.Timestamp()
		t3 := s.clock.Timestamp()
		s.queue.Push(Event{
			TSim: s.tSim + s.sampleDelay(),
			Kind: evPdelayRespRx,
			Resp: protocol.PDelayResp{
				SequenceID:     s.pdelaySeq,
				RequestReceipt: t2,
				ResponseOrigin: t3,
			},
		})

	case evPdelayRespRx:
		s.pdelayRespOnWay = false
		t4 := s.slave.Timestamp()
		s.servo.OnPdelayResp(s.pdelayT1, evt.Resp.RequestReceipt, evt.Resp.ResponseOrigin, t4)
	}
	return nil
}
