// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package cipher derives the A5 COUNT value from TDMA frame number and
// drives the A5/1 / A5/3 keystream generators used to cipher XCCH and
// TCH/FACCH bursts. The generators themselves are treated as a black box
// behind the KeyStream interface; this package owns only the FN->COUNT
// mapping and the per-channel encryption-state machine (§4.3 "Ciphering
// phase-in").
package cipher

import (
	"fmt"

	"github.com/gobts/gobts/internal/config"
	"github.com/gobts/gobts/internal/gsm/clock"
)

// Count derives the 22-bit A5 COUNT value from a TDMA frame number:
//
//	count = ((FN/(26*51))<<11) | ((FN mod 51)<<5) | (FN mod 26)
func Count(fn clock.FN) uint32 {
	n := int64(clock.Normalize(fn))
	t1 := n / (26 * 51)
	t2 := n % 51
	t3 := n % 26
	return uint32(t1)<<11 | uint32(t2)<<5 | uint32(t3)
}

// Kc is a 64-bit GSM ciphering key as delivered by the SIP auth exchange
// (P-GSM-Kc) or the subscriber store.
type Kc [8]byte

// KeyStream generates the 114+114 bit keystream pair for one TDMA burst
// given a 64-bit Kc and a 22-bit COUNT. Implementations of A5/1 and A5/3
// sit behind this boundary; GoBTS does not implement the ciphers itself.
type KeyStream interface {
	// Generate returns (keystreamA, keystreamB), each 114 bits packed one
	// bit per byte, for the downlink/uplink halves of a burst.
	Generate(kc Kc, count uint32) (a, b []byte)
}

// Algorithm identifies which GSM A5 cipher a KeyStream implements, mirroring
// config.CipherAlgorithm.
type Algorithm int

const (
	AlgorithmA51 Algorithm = Algorithm(config.CipherAlgorithmA51)
	AlgorithmA53 Algorithm = Algorithm(config.CipherAlgorithmA53)
)

// State is the per-logical-channel encryption phase-in state described in
// §4.3: ciphering is attempted speculatively while MAYBE and only latched to
// YES once a decode succeeds under the keystream.
type State int

const (
	StateNo State = iota
	StateMaybe
	StateYes
)

func (s State) String() string {
	switch s {
	case StateNo:
		return "NO"
	case StateMaybe:
		return "MAYBE"
	case StateYes:
		return "YES"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EncryptionState tracks ciphering readiness for one dedicated channel's
// encoder/decoder pair. Kc and the algorithm are set once a Kc arrives from
// L3; State transitions NO->MAYBE when a Kc is set, MAYBE->YES on the first
// successful decode under keystream, and never regresses except on channel
// release (Reset).
type EncryptionState struct {
	state     State
	kc        Kc
	algorithm Algorithm
	stream    KeyStream
}

// NewEncryptionState returns a channel in state NO with no key material.
func NewEncryptionState(stream KeyStream) *EncryptionState {
	return &EncryptionState{state: StateNo, stream: stream}
}

// SetKc installs a fresh key and algorithm and moves the channel to MAYBE,
// the point at which both plaintext and ciphered decode are attempted.
func (e *EncryptionState) SetKc(kc Kc, alg Algorithm) {
	e.kc = kc
	e.algorithm = alg
	e.state = StateMaybe
}

// Latch moves the channel to YES, called once a decode has succeeded using
// the derived keystream.
func (e *EncryptionState) Latch() { e.state = StateYes }

// Reset returns the channel to NO, called on channel release.
func (e *EncryptionState) Reset() { e.state = StateNo }

// State returns the current encryption phase.
func (e *EncryptionState) State() State { return e.state }

// Keystream returns the 114+114 bit keystream for the given frame number
// using the installed Kc, or ok=false if no key has been set.
func (e *EncryptionState) Keystream(fn clock.FN) (a, b []byte, ok bool) {
	if e.state == StateNo || e.stream == nil {
		return nil, nil, false
	}
	a, b = e.stream.Generate(e.kc, Count(fn))
	return a, b, true
}
