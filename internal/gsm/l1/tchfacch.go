// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import (
	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/cipher"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/fec"
	"github.com/gobts/gobts/internal/gsm/l2"
)

// idleTCHFiller encodes a synthesized L2 idle frame as this channel's
// no-traffic filler (a simplification of the reference's captured-pattern
// priority step, which sits between speech and the synthesized idle frame;
// GoBTS always falls through to the synthesized frame).
func idleTCHFiller() bitvector.BitVector {
	idle := l2.IdleFrame()
	d := bitvector.Reverse8(payloadToBits(idle.Payload[:]))
	p := fec.FireCodeInvert(fec.FireCodeParity(d))
	u := bitvector.NewBitVector(228)
	copy(u, d)
	copy(u[184:224], p)
	return fec.ConvEncode(u)
}

// TCHFACCHEncoder produces the diagonally-interleaved burst stream for one
// full-rate traffic channel, choosing for every 8-burst block between a
// pending FACCH frame, pending speech, and the synthesized L2 idle frame
// from idleTCHFiller.
type TCHFACCHEncoder struct {
	TSC     int
	Mode    TCHMode
	Encrypt *cipher.EncryptionState

	offset         int // alternates 0/4 across successive blocks
	previousFACCH  byte
}

// NewTCHFACCHEncoder builds an encoder for the given mode and training sequence.
func NewTCHFACCHEncoder(tsc int, mode TCHMode) *TCHFACCHEncoder {
	return &TCHFACCHEncoder{TSC: tsc, Mode: mode}
}

// EncodeBlock builds the 8 bursts carrying one diagonally-interleaved
// block. If facch is non-nil it is prioritized over speech, per the
// downlink arbitration order (pending FACCH > pending speech > synthesized
// idle frame).
func (e *TCHFACCHEncoder) EncodeBlock(facch *l2.Frame, speech bitvector.BitVector, fn clock.FN, t0 clock.Time) [8]*burst.NormalBurst {
	var coded bitvector.BitVector
	currentFACCH := byte(0)

	switch {
	case facch != nil:
		d := bitvector.Reverse8(payloadToBits(facch.Payload[:]))
		p := fec.FireCodeInvert(fec.FireCodeParity(d))
		u := bitvector.NewBitVector(228)
		copy(u, d)
		copy(u[184:224], p)
		coded = fec.ConvEncode(u)
		currentFACCH = 1
	case speech != nil:
		coded = TCHEncode(e.Mode, speech)
	default:
		coded = idleTCHFiller()
	}

	planes := fec.InterleaveTCH(coded)

	var bursts [8]*burst.NormalBurst
	for b := 0; b < 8; b++ {
		nb := burst.NewNormalBurst(t0.FrameAdvance(int64(b)), e.TSC)
		copy(nb.Data1, planes[b][:57])
		copy(nb.Data2, planes[b][57:])
		nb.StealHl = e.previousFACCH
		nb.StealHu = currentFACCH
		if e.Encrypt != nil {
			if ka, kb, ok := e.Encrypt.Keystream(clock.Add(fn, int64(b))); ok {
				xorBurst(nb, ka, kb)
			}
		}
		bursts[b] = nb
	}
	e.previousFACCH = currentFACCH
	e.offset = 4 - e.offset
	return bursts
}

// TCHFACCHDecoder reassembles 8-burst diagonal blocks from the uplink,
// arbitrating between voice and stolen FACCH per §4.5.1.
type TCHFACCHDecoder struct {
	Mode        TCHMode
	Arbitration StealingArbitration
	Encrypt     *cipher.EncryptionState

	planes      [8]bitvector.SoftVector
	stealSum    int
}

// NewTCHFACCHDecoder allocates a decoder for the given AMR/FR mode.
func NewTCHFACCHDecoder(mode TCHMode) *TCHFACCHDecoder {
	d := &TCHFACCHDecoder{Mode: mode, Arbitration: DefaultStealingArbitration()}
	for i := range d.planes {
		d.planes[i] = bitvector.NewSoftVector(114)
	}
	return d
}

// TCHBlockResult is the decoded outcome of one diagonal block.
type TCHBlockResult struct {
	Ready   bool
	Speech  TCHDecodeResult
	FACCH   l2.Frame
	Stolen  Decision
}

// PutBurst consumes burst b (0..7) of the current diagonal block. A decode
// is attempted once burst 7 has landed.
func (d *TCHFACCHDecoder) PutBurst(b int, sb *burst.SoftNormalBurst, stealHu, stealHl int) TCHBlockResult {
	b = b % 8
	copy(d.planes[b][:57], sb.Data1)
	copy(d.planes[b][57:], sb.Data2)
	d.stealSum += stealHu + stealHl

	if b != 7 {
		return TCHBlockResult{}
	}

	raw := [8]bitvector.SoftVector{}
	for i := range raw {
		raw[i] = append(bitvector.SoftVector(nil), d.planes[i]...)
		d.planes[i].Fill(0.5)
	}
	coded := fec.DeinterleaveTCH(raw)

	sb8 := d.stealSum
	d.stealSum = 0
	u, _ := fec.ViterbiDecode(coded)
	facchGood := len(u) >= 224 && fec.FireCodeCheck(u)

	decision := d.Arbitration.Decide(sb8, facchGood)
	result := TCHBlockResult{Ready: true, Stolen: decision}
	switch decision {
	case DecisionFACCH:
		dBits := bitvector.Reverse8(u[:184])
		payload := bitsToPayload(dBits)
		result.FACCH = l2.NewDataFrame(0, payload[:])
	case DecisionVoice:
		result.Speech = TCHDecode(d.Mode, coded)
	}
	return result
}
