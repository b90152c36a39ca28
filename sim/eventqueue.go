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
	"container/heap"

	"github.com/facebook/ptpsim/protocol"
)

// eventKind tells the driver what to do when an event fires
type eventKind uint8

const (
	evSyncTx eventKind = iota
	evSyncRx
	evPdelayReqTx
	evPdelayReqRx
	evPdelayRespRx
)

// Event is one scheduled point in simulated time. The payload fields are
// populated per kind: Sync for evSyncRx, Resp for evPdelayRespRx. TX events
// carry no payload, timestamps are captured when they fire.
type Event struct {
	TSim float64 // seconds
	Kind eventKind
	Sync protocol.Sync
	Resp protocol.PDelayResp

	seq uint64 // insertion order, breaks time ties FIFO
}

// EventQueue is a min-priority queue of events keyed by simulated time.
// Events scheduled for the same time come out in insertion order. There is
// no deletion by key: a stale event is filtered by its handler instead.
type EventQueue struct {
	events  eventHeap
	nextSeq uint64
}

// NewEventQueue creates an empty event queue
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.events)
	return q
}

// Push schedules an event
func (q *EventQueue) Push(evt Event) {
	evt.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.events, evt)
}

// Pop returns and removes the earliest event
func (q *EventQueue) Pop() Event {
	return heap.Pop(&q.events).(Event)
}

// Peek returns the earliest event without removing it
func (q *EventQueue) Peek() Event {
	return q.events[0]
}

// Len returns the number of scheduled events
func (q *EventQueue) Len() int {
	return len(q.events)
}

type eventHeap []Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	if h[i].TSim != h[j].TSim {
		return h[i].TSim < h[j].TSim
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[0 : n-1]
	return evt
}
