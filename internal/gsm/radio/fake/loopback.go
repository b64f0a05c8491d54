// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package fake provides an in-memory loopback ARFCNManager for unit tests
// and the reference test harness, standing in for the real RF front end.
package fake

import (
	"sync"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
)

// Loopback delivers every transmitted burst back as a received burst on
// the same timeslot, converting hard bits to full-confidence soft bits.
type Loopback struct {
	mu      sync.Mutex
	clock   *clock.BTSClock
	pending []received

	handoverPendingTN map[clock.TN]bool
}

type received struct {
	tn clock.TN
	b  *burst.SoftNormalBurst
}

// NewLoopback returns a Loopback driven by its own BTSClock.
func NewLoopback() *Loopback {
	return &Loopback{clock: clock.NewBTSClock(), handoverPendingTN: make(map[clock.TN]bool)}
}

// Clock returns the clock driving this loopback radio.
func (l *Loopback) Clock() *clock.BTSClock { return l.clock }

// Transmit converts the burst to soft bits and queues it for Receive.
func (l *Loopback) Transmit(tn clock.TN, b *burst.NormalBurst) error {
	sb := &burst.SoftNormalBurst{
		Time:    b.Time,
		Data1:   bitvector.FromBitVector(b.Data1),
		Data2:   bitvector.FromBitVector(b.Data2),
		StealHu: float64(b.StealHu),
		StealHl: float64(b.StealHl),
	}
	l.mu.Lock()
	l.pending = append(l.pending, received{tn: tn, b: sb})
	l.mu.Unlock()
	return nil
}

// Receive pops the next queued burst, or returns ok=false if none is
// queued (non-blocking; the reference's blocking receive thread is
// replaced by direct draining in tests).
func (l *Loopback) Receive() (clock.TN, *burst.SoftNormalBurst, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return 0, nil, false
	}
	r := l.pending[0]
	l.pending = l.pending[1:]
	return r.tn, r.b, true
}

// SetHandoverPending marks whether the handover access correlator is armed
// on a given timeslot.
func (l *Loopback) SetHandoverPending(tn clock.TN, enabled bool, reference byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handoverPendingTN[tn] = enabled
}
