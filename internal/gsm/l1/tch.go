// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import (
	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/fec"
)

// TCHMode identifies the speech codec carried by one TCH/FACCH block.
type TCHMode int

const (
	ModeFR TCHMode = iota
	ModeAFS122
	ModeAFS102
	ModeAFS795
	ModeAFS74
	ModeAFS67
	ModeAFS59
	ModeAFS515
	ModeAFS475
)

// modeParams describes one TCH codec mode's channel-coding geometry: Kd
// speech-payload bits, a CRC width protecting the most sensitive bits, and
// the fixed 4-bit convolutional tail shared by every GSM channel type. The
// mother code (Kd+CRC+4)*2 bits is punctured down to the 378-bit class-1
// budget of a TCH/FACCH block when it is longer (AFS12.2, AFS10.2) and used
// whole otherwise (FR, whose mother code is exactly 378 bits, and AFS7.95
// and below, whose shorter code leaves the rest of the block zero).
//
// Kd values are the well-known AMR bitrate-derived frame sizes
// (rate_kbps*20ms); GoBTS does not reproduce 3GPP's exact class-1A/1B/2
// unequal-error-protection split per mode, instead protecting the whole
// Kd-bit payload under one CRC, documented as a deliberate simplification.
type modeParams struct {
	Name        string
	Kd          int
	CRCBits     int
	Class1Bits  int // class-1 (protected) budget; a longer mother code is punctured to fit it
}

var modeTable = map[TCHMode]modeParams{
	ModeFR:     {"TCH_FS", 182, 3, 378},
	ModeAFS122: {"AFS12.2", 244, 6, 378},
	ModeAFS102: {"AFS10.2", 204, 6, 378},
	ModeAFS795: {"AFS7.95", 159, 6, 378},
	ModeAFS74:  {"AFS7.4", 148, 6, 378},
	ModeAFS67:  {"AFS6.7", 134, 6, 378},
	ModeAFS59:  {"AFS5.9", 118, 6, 378},
	ModeAFS515: {"AFS5.15", 103, 6, 378},
	ModeAFS475: {"AFS4.75", 95, 6, 378},
}

const convTailBits = 4

// crc3Poly and crc6Poly are short CRC polynomials protecting the speech
// payload's most significant bits (FR uses a 3-bit CRC per §4.5.2, AMR a
// 6-bit CRC per §4.5.3).
const (
	crc3Poly = 0x0b
	crc6Poly = 0x6f
)

func crcCompute(d bitvector.BitVector, bits int, poly uint64) bitvector.BitVector {
	var reg uint64
	total := len(d) + bits
	for i := 0; i < total; i++ {
		var bit uint64
		if i < len(d) {
			bit = uint64(d[i] & 1)
		}
		top := (reg >> uint(bits-1)) & 1
		reg = ((reg << 1) & ((1 << uint(bits)) - 1)) | bit
		if top == 1 {
			reg ^= poly & ((1 << uint(bits)) - 1)
		}
	}
	return bitvector.FromUint64(reg, bits)
}

// TCHEncode encodes a Kd-bit speech payload for the given mode into a
// 456-bit coded TCH block ready for diagonal interleaving.
func TCHEncode(mode TCHMode, payload bitvector.BitVector) bitvector.BitVector {
	p := modeTable[mode]
	if len(payload) != p.Kd {
		panic("l1: TCHEncode payload length mismatch for mode")
	}
	crc := crcCompute(payload, p.CRCBits, crcPolyFor(p.CRCBits))
	u := bitvector.NewBitVector(p.Kd + p.CRCBits + convTailBits)
	copy(u, payload)
	copy(u[p.Kd:], crc)
	// trailing convTailBits left zero.

	full := fec.ConvEncode(u)
	pattern := fec.PuncturePattern(len(full), p.Class1Bits)
	class1 := fec.Puncture(full, pattern)

	out := bitvector.NewBitVector(456)
	copy(out, class1)
	// Remaining (456-Class1Bits) bits are class-2/unprotected payload or
	// padding; callers needing class-2 data append it via TCHEncodeClass2.
	return out
}

// TCHEncodeClass2 overlays unprotected class-2 bits (used by FR's 78
// unprotected bits) onto the tail of an already class-1-encoded block.
func TCHEncodeClass2(block bitvector.BitVector, class2 bitvector.BitVector) bitvector.BitVector {
	out := append(bitvector.BitVector(nil), block...)
	copy(out[len(out)-len(class2):], class2)
	return out
}

func crcPolyFor(bits int) uint64 {
	if bits == 3 {
		return crc3Poly
	}
	return crc6Poly
}

// TCHDecodeResult is the outcome of decoding one coded TCH block.
type TCHDecodeResult struct {
	Payload bitvector.BitVector
	Good    bool
}

// TCHDecode inverts TCHEncode: un-puncture, Viterbi-decode, check the CRC
// over the recovered speech payload.
func TCHDecode(mode TCHMode, coded bitvector.SoftVector) TCHDecodeResult {
	p := modeTable[mode]
	fullLen := (p.Kd + p.CRCBits + convTailBits) * 2
	pattern := fec.PuncturePattern(fullLen, p.Class1Bits)
	restored := fec.Unpuncture(coded[:p.Class1Bits], pattern)

	u, _ := fec.ViterbiDecode(restored)
	payload := u[:p.Kd]
	gotCRC := u[p.Kd : p.Kd+p.CRCBits]
	wantCRC := crcCompute(payload, p.CRCBits, crcPolyFor(p.CRCBits))

	good := true
	for i := range wantCRC {
		if wantCRC[i] != gotCRC[i] {
			good = false
			break
		}
	}
	return TCHDecodeResult{Payload: payload, Good: good}
}

// StealingArbitration implements §4.5.1: decide whether a block is voice
// or FACCH-stolen from the sum of its eight stealing bits and whether the
// FACCH parity check passed.
type StealingArbitration struct {
	// StolenThreshold is the sb value above which a FACCH-parity failure
	// is still treated as a corrupted FACCH (push no speech) rather than
	// falling back to a speech decode; named stealingBitThreshold in the
	// reference, default 5 (§9 Open Questions).
	StolenThreshold int
}

// DefaultStealingArbitration returns the arbitration policy with the
// default threshold of 5.
func DefaultStealingArbitration() StealingArbitration {
	return StealingArbitration{StolenThreshold: 5}
}

// Decision is the outcome of stealing-bit arbitration for one block.
type Decision int

const (
	DecisionVoice Decision = iota
	DecisionFACCH
	DecisionNone // sb>5 but FACCH parity failed: neither speech nor FACCH delivered
)

// Decide applies the §4.5.1 rule given the summed stealing bits and
// whether the FACCH-candidate decode's parity passed.
func (a StealingArbitration) Decide(sb int, facchParityOK bool) Decision {
	if sb == 0 {
		return DecisionVoice
	}
	if facchParityOK {
		return DecisionFACCH
	}
	if sb > a.StolenThreshold {
		return DecisionNone
	}
	return DecisionVoice
}
