// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import (
	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/fec"
)

// rachParityPoly is the 6-bit RACH parity polynomial 0x6f (TS 05.03 §4.6).
const rachParityPoly = 0x6f

// rachParity computes the 6-bit parity over an 8-bit RA payload, XORed with
// the cell's BSIC as the final step of the RACH check (§4.4).
func rachParity(ra byte) uint8 {
	reg := uint16(0)
	for i := 7; i >= 0; i-- {
		bit := uint16((ra >> uint(i)) & 1)
		top := (reg >> 5) & 1
		reg = ((reg << 1) & 0x3f) | bit
		if top == 1 {
			reg ^= rachParityPoly
		}
	}
	return uint8(reg)
}

// RACHResult is a successfully decoded access burst.
type RACHResult struct {
	RA          byte
	Time        clock.Time
	RSSI        float64
	TimingError float64
	TN          int
}

// RACHDecoder decodes uplink access bursts: 8 payload bits + 6 parity bits
// (XORed with BSIC) + 4 tail bits, convolutionally encoded to 36 soft bits.
type RACHDecoder struct {
	BSIC byte
}

// NewRACHDecoder builds a decoder that checks parity against the given
// 6-bit BSIC.
func NewRACHDecoder(bsic byte) *RACHDecoder {
	return &RACHDecoder{BSIC: bsic & 0x3f}
}

// Decode attempts to recover a RACH burst. The false-alarm rate for
// uniformly random input is 2^-10, matching the 10-bit (4 tail + 6 parity)
// check applied to noise.
func (r *RACHDecoder) Decode(soft bitvector.SoftVector, t clock.Time, rssi, timingError float64, tn int) (RACHResult, bool) {
	if len(soft) != 36 {
		return RACHResult{}, false
	}
	u, _ := fec.ViterbiDecode(soft)
	if len(u) != 18 {
		return RACHResult{}, false
	}
	tail := u[14:18]
	for _, b := range tail {
		if b != 0 {
			return RACHResult{}, false
		}
	}
	ra := u[:8]
	parityBits := u[8:14]

	var raByte byte
	for _, b := range ra {
		raByte = (raByte << 1) | b
	}
	var recvParity uint8
	for _, b := range parityBits {
		recvParity = (recvParity << 1) | b
	}

	computed := rachParity(raByte)
	check := recvParity ^ computed
	if check != r.BSIC {
		return RACHResult{}, false
	}
	return RACHResult{RA: raByte, Time: t, RSSI: rssi, TimingError: timingError, TN: tn}, true
}

// RACHEncode builds the 36 hard-bit access burst payload for a given RA
// byte and BSIC, the inverse of Decode, used by the test harness and the
// loopback radio.
func RACHEncode(ra, bsic byte) bitvector.BitVector {
	u := bitvector.NewBitVector(18)
	for i := 0; i < 8; i++ {
		u[i] = (ra >> uint(7-i)) & 1
	}
	parity := rachParity(ra) ^ (bsic & 0x3f)
	for i := 0; i < 6; i++ {
		u[8+i] = (parity >> uint(5-i)) & 1
	}
	// u[14:18] tail bits remain zero.
	return fec.ConvEncode(u)
}
