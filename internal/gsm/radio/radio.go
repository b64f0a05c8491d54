// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package radio defines the boundary GoBTS consumes from the RF front end
// (§6 "Radio interface (consumed)"): a sink for downlink bursts, a source
// of uplink bursts, and handover-correlator control. The actual RF
// transceiver implementation is out of scope; internal/gsm/radio/fake
// provides an in-memory loopback used by tests.
package radio

import (
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
)

// TxSink accepts one outbound burst for transmission on a timeslot.
type TxSink interface {
	Transmit(tn clock.TN, b *burst.NormalBurst) error
}

// RxSource delivers inbound demodulated bursts as they arrive.
type RxSource interface {
	// Receive blocks until the next uplink burst is available or the
	// source is closed.
	Receive() (tn clock.TN, b *burst.SoftNormalBurst, ok bool)
}

// HandoverCorrelator enables or disables the special access-burst
// correlator used while processing a pending inbound handover (§4.3
// "Handover access burst").
type HandoverCorrelator interface {
	SetHandoverPending(tn clock.TN, enabled bool, reference byte)
}

// ARFCNManager is the full radio-facing interface one ARFCN's L1 stack
// drives, combining the three roles above plus the BTS clock source.
type ARFCNManager interface {
	TxSink
	RxSource
	HandoverCorrelator
	Clock() *clock.BTSClock
}
