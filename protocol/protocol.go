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

// Package protocol provides the PTP value types exchanged by the simulated
// master and slave: integer timestamps, signed time offsets and the message
// payloads of the SYNC and peer-delay cycles.
package protocol

import (
	"fmt"
)

// NsPerSec is the number of nanoseconds in one second
const NsPerSec = 1_000_000_000

// MessageType is type for Message Types
type MessageType uint8

// Message types of the modeled exchanges
const (
	MessageSync       MessageType = 0x0
	MessagePDelayReq  MessageType = 0x2
	MessagePDelayResp MessageType = 0x3
)

// MessageTypeToString is a map from MessageType to string
var MessageTypeToString = map[MessageType]string{
	MessageSync:       "SYNC",
	MessagePDelayReq:  "PDELAY_REQ",
	MessagePDelayResp: "PDELAY_RESP",
}

func (m MessageType) String() string {
	return MessageTypeToString[m]
}

// Timestamp is a positive integer-valued point in time as carried in frames.
// Ns is always in [0, 1e9). Fractional counter state never leaves the RTC;
// timestamps are the floor of the syntonized counters.
type Timestamp struct {
	Sec uint64
	Ns  uint32
}

func (t Timestamp) String() string {
	return fmt.Sprintf("Timestamp(%d.%09d)", t.Sec, t.Ns)
}

// Nanoseconds returns the timestamp unwrapped onto a single ns axis.
// float64 keeps ns precision up to ~2^53 ns, about 104 days of simulated
// time, far beyond any run we model.
func (t Timestamp) Nanoseconds() float64 {
	return float64(t.Sec)*NsPerSec + float64(t.Ns)
}

// Offset is a signed (sec, ns) pair: the time-offset register of an RTC, or
// a raw RTC error measurement. Normalized form keeps Ns in [0, 1e9) with Sec
// carrying the sign, so -100ns looks like {-1, 999999900}.
type Offset struct {
	Sec int64
	Ns  int64
}

// Normalize carries/borrows Ns into Sec until Ns is in [0, 1e9)
func (o *Offset) Normalize() {
	for o.Ns >= NsPerSec {
		o.Ns -= NsPerSec
		o.Sec++
	}
	for o.Ns < 0 {
		o.Ns += NsPerSec
		o.Sec--
	}
}

// AddNs adds delta ns to the offset and re-normalizes
func (o *Offset) AddNs(delta int64) {
	o.Ns += delta
	o.Normalize()
}

// Nanoseconds returns the offset unwrapped onto a single signed ns axis
func (o Offset) Nanoseconds() float64 {
	return float64(o.Sec)*NsPerSec + float64(o.Ns)
}

func (o Offset) String() string {
	return fmt.Sprintf("Offset(%d sec, %d ns)", o.Sec, o.Ns)
}

// Sync is a master-to-slave time dissemination frame. TrueDelayNs carries
// the network delay the frame actually experienced, used only by the
// perfect-delay debug mode.
type Sync struct {
	SequenceID      uint16
	OriginTimestamp Timestamp
	TrueDelayNs     float64
}

// PDelayReq is a slave-to-master peer-delay request. The slave keeps its own
// TX timestamp (t1); the request carries only the sequence number.
type PDelayReq struct {
	SequenceID uint16
}

// PDelayResp is a master-to-slave peer-delay response carrying the request
// receipt timestamp (t2) and the response departure timestamp (t3)
type PDelayResp struct {
	SequenceID     uint16
	RequestReceipt Timestamp
	ResponseOrigin Timestamp
}
