// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package transaction implements the RFC3261 §17 client/server
// transaction state machines, specialized to the request set spec.md §4.9
// names: INVITE client/server, the non-INVITE dialog-internal requests
// (BYE, CANCEL, INFO), and the REGISTER pseudo-dialog.
package transaction

import (
	"fmt"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
)

// Timers holds the base RFC3261 §17 intervals (spec.md §4.9.1): T1 is the
// initial retransmit interval, T2 its cap, T4 the non-INVITE final-response
// lifetime.
type Timers struct {
	T1 time.Duration
	T2 time.Duration
	T4 time.Duration
}

// DefaultTimers returns the spec.md §4.9.1 base values: T1=500ms, T2=4s,
// T4=5s.
func DefaultTimers() Timers {
	return Timers{T1: 500 * time.Millisecond, T2: 4 * time.Second, T4: 5 * time.Second}
}

// TimerB returns the absolute INVITE-client dialog-killer interval, 64*T1.
func (t Timers) TimerB() time.Duration { return 64 * t.T1 }

// TimerH returns the INVITE-server absolute ACK-wait interval, 64*T1.
func (t Timers) TimerH() time.Duration { return 64 * t.T1 }

// TimerJ returns the INVITE-server duplicate-request soak interval on
// unreliable transport, 64*T1 (0 on reliable transport).
func (t Timers) TimerJ(reliable bool) time.Duration {
	if reliable {
		return 0
	}
	return 64 * t.T1
}

// TimerF returns the non-INVITE client absolute dialog-killer interval,
// 64*T1.
func (t Timers) TimerF() time.Duration { return 64 * t.T1 }

// TimerD returns the INVITE-client non-2xx cleanup interval: 32s on
// unreliable transport, 0 on reliable.
func (t Timers) TimerD(reliable bool) time.Duration {
	if reliable {
		return 0
	}
	return 32 * time.Second
}

// TimerK returns the non-INVITE client non-2xx cleanup interval: T4 on
// unreliable transport, 0 on reliable.
func (t Timers) TimerK(reliable bool) time.Duration {
	if reliable {
		return 0
	}
	return t.T4
}

// Transport is the narrow send boundary a transaction needs: enough to
// emit a message toward a fixed peer address without depending on the
// UDP interface package (avoids an import cycle with sip/iface).
type Transport interface {
	SendMessage(msg *message.Message, host string, port int) error
}

// Key identifies a request/response pair for dispatch, per spec.md §4.9.5:
// "(CallID, CSeq-method, CSeq-num)". The via-branch is deliberately not
// part of the key because common peers emit noncompliant branches.
type Key struct {
	CallID     string
	CSeqMethod message.Method
	CSeqNum    uint32
}

// KeyOf derives the matching key from a message's Call-ID and CSeq.
func KeyOf(m *message.Message) Key {
	return Key{CallID: m.CallID, CSeqMethod: m.CSeq.Method, CSeqNum: m.CSeq.Seq}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.CallID, k.CSeqMethod, k.CSeqNum)
}

// nextRetransmitInterval doubles cur, capped at max. Used by both the
// INVITE (A/G) and non-INVITE (E) retransmit timers.
func nextRetransmitInterval(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
