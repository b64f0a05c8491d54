// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import (
	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/fec"
	"github.com/gobts/gobts/internal/gsm/l2"
)

// schCRCPoly is the 10-bit CRC polynomial 0x575 protecting the SCH message (§4.6).
const schCRCPoly = 0x575

// FCCHGenerator emits the all-zero frequency-correction burst (received as
// a pure tone) each time it is asked for one.
type FCCHGenerator struct{}

// Next returns the burst to transmit for one FCCH slot; GoBTS always
// transmits the all-zero burst, the "sleep 1s" behavior is expressed by
// the scheduler only calling Next once per second-ish schedule rather than
// the generator itself blocking.
func (FCCHGenerator) Next(t clock.Time) bitvector.BitVector {
	return burst.FCBBurst()
}

// SCHGenerator packs (BSIC, T1, T2, T3') into a synchronization burst.
type SCHGenerator struct {
	BSIC byte
}

// Next builds the synch burst for the given TDMA time.
func (g SCHGenerator) Next(t clock.Time) *burst.SynchBurst {
	fn := int64(t.FN())
	t1 := (fn / (26 * 51)) % 2048
	t2 := fn % 26
	t3 := fn % 51
	t3p := (t3 - 1) / 10

	payload := bitvector.NewBitVector(25)
	putBits(payload, 0, int(g.BSIC), 6)
	putBits(payload, 6, int(t1), 11)
	putBits(payload, 17, int(t2), 5)
	putBits(payload, 22, int(t3p), 3)

	crc := crcCompute(payload, 10, schCRCPoly)
	u := bitvector.NewBitVector(39)
	copy(u, payload)
	copy(u[25:35], crc)
	// u[35:39] tail bits zero.

	coded := fec.ConvEncode(u)
	return &burst.SynchBurst{Time: t, Half1: coded[:39], Half2: coded[39:]}
}

func putBits(v bitvector.BitVector, offset, value, width int) {
	for i := 0; i < width; i++ {
		v[offset+i] = byte((value >> uint(width-1-i)) & 1)
	}
}

// SIType names a system-information message carried on BCCH.
type SIType int

const (
	SI1 SIType = iota
	SI2
	SI3
	SI4
	SI13
)

// BCCHGenerator picks which system-information message to send for a given
// TDMA-slot index within the 51-multiframe, per §4.6.
type BCCHGenerator struct {
	GPRSEnabled bool
	Payloads    map[SIType][23]byte
	xcch        *XCCHEncoder
}

// NewBCCHGenerator builds a generator carrying pre-serialized SI payloads.
func NewBCCHGenerator(tsc int, gprs bool, payloads map[SIType][23]byte) *BCCHGenerator {
	return &BCCHGenerator{GPRSEnabled: gprs, Payloads: payloads, xcch: NewXCCHEncoder(tsc)}
}

// SIForSlot implements the §4.6 TC->SI schedule.
func (g *BCCHGenerator) SIForSlot(tc int) SIType {
	switch tc % 8 {
	case 0:
		return SI1
	case 1:
		return SI2
	case 2:
		return SI3
	case 3:
		return SI4
	case 4:
		if g.GPRSEnabled {
			return SI13
		}
		return SI3
	case 5:
		return SI2
	case 6:
		return SI3
	default:
		return SI4
	}
}

// Encode encodes the SI message scheduled for tc into four bursts.
func (g *BCCHGenerator) Encode(tc int, fn clock.FN, t0 clock.Time) [4]*burst.NormalBurst {
	si := g.SIForSlot(tc)
	payload := g.Payloads[si]
	frame := l2.NewDataFrame(0, payload[:])
	return g.xcch.Encode(frame, fn, t0)
}
