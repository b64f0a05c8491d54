// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package l1 implements the Layer-1 FEC encoders and decoders (XCCH, RACH,
// TCH/FACCH, the broadcast generators, and the SACCH physical-layer
// control loop) that sit between the radio burst stream and L2, per
// SPEC_FULL.md §4.
package l1

import (
	"math/rand"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/cipher"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/fec"
	"github.com/gobts/gobts/internal/gsm/l2"
)

// XCCHEncoder turns 184-bit L2 frames into 4 normal bursts each, per §4.2.
type XCCHEncoder struct {
	TSC       int
	Encrypt   *cipher.EncryptionState
	BER       float64 // test hook: probability of flipping an emitted bit
	rng       *rand.Rand
}

// NewXCCHEncoder builds an encoder for the given training sequence.
func NewXCCHEncoder(tsc int) *XCCHEncoder {
	return &XCCHEncoder{TSC: tsc, rng: rand.New(rand.NewSource(1))}
}

// Encode runs one 184-bit L3 payload through the full XCCH chain and
// returns the four bursts that carry it, timestamped starting at t0 one
// frame apart.
func (e *XCCHEncoder) Encode(frame l2.Frame, fn clock.FN, t0 clock.Time) [4]*burst.NormalBurst {
	d := payloadToBits(frame.Payload[:])
	d = bitvector.Reverse8(d)

	p := fec.FireCodeInvert(fec.FireCodeParity(d))
	u := bitvector.NewBitVector(228)
	copy(u, d)
	copy(u[184:224], p)
	// last 4 bits of u are the zero tail.

	c := fec.ConvEncode(u)
	planes := fec.InterleaveXCCH(c)

	var bursts [4]*burst.NormalBurst
	for b := 0; b < 4; b++ {
		nb := burst.NewNormalBurst(t0.FrameAdvance(int64(b)), e.TSC)
		copy(nb.Data1, planes[b][:57])
		copy(nb.Data2, planes[b][57:])
		nb.StealHu = 1
		nb.StealHl = 1

		if e.Encrypt != nil {
			if ka, kb, ok := e.Encrypt.Keystream(clock.Add(fn, int64(b))); ok {
				xorBurst(nb, ka, kb)
			}
		}
		if e.BER > 0 {
			injectBER(nb, e.BER, e.rng)
		}
		bursts[b] = nb
	}
	return bursts
}

func payloadToBits(payload []byte) bitvector.BitVector {
	v := bitvector.NewBitVector(len(payload) * 8)
	for i, by := range payload {
		for bit := 0; bit < 8; bit++ {
			v[i*8+bit] = (by >> (7 - bit)) & 1
		}
	}
	return v[:184]
}

func bitsToPayload(v bitvector.BitVector) [23]byte {
	var out [23]byte
	for i := 0; i < len(v) && i/8 < 23; i++ {
		if v[i] != 0 {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}

func xorBurst(nb *burst.NormalBurst, ka, kb []byte) {
	for i := 0; i < 57 && i < len(ka); i++ {
		nb.Data1[i] ^= ka[i] & 1
	}
	for i := 0; i < 57 && i < len(kb); i++ {
		nb.Data2[i] ^= kb[i] & 1
	}
}

func injectBER(nb *burst.NormalBurst, ber float64, rng *rand.Rand) {
	for i := range nb.Data1 {
		if rng.Float64() < ber {
			nb.Data1[i] ^= 1
		}
	}
	for i := range nb.Data2 {
		if rng.Float64() < ber {
			nb.Data2[i] ^= 1
		}
	}
}

// XCCHDecoder reassembles 4 soft normal bursts into a decoded L2 frame,
// tracking running FER/BER/SNR statistics and ciphering phase-in.
type XCCHDecoder struct {
	Encrypt       *cipher.EncryptionState
	SimulatedFER  float64 // test hook: probability of dropping a decode outright
	rng           *rand.Rand

	planes    [4]bitvector.SoftVector
	haveBlock [4]bool

	Stats Stats
}

// Stats carries the exponential-moving-average channel quality figures
// described in §4.3, with memory of 208 frames.
type Stats struct {
	FER, BER, SNR float64
	BadFrames     int // BadFrameTracker: +1 per bad frame, -2 per good, floored at 0
	initialized   bool
}

const statsMemory = 208

func (s *Stats) update(bad bool, ber, snr float64) {
	alpha := 1.0 / statsMemory
	ferSample := 0.0
	if bad {
		ferSample = 1.0
	}
	if !s.initialized {
		s.FER, s.BER, s.SNR = ferSample, ber, snr
		s.initialized = true
	} else {
		s.FER = s.FER*(1-alpha) + ferSample*alpha
		s.BER = s.BER*(1-alpha) + ber*alpha
		s.SNR = s.SNR*(1-alpha) + snr*alpha
	}
	if bad {
		s.BadFrames++
	} else {
		s.BadFrames -= 2
		if s.BadFrames < 0 {
			s.BadFrames = 0
		}
	}
}

// NewXCCHDecoder allocates a decoder with all four block planes erased.
func NewXCCHDecoder() *XCCHDecoder {
	d := &XCCHDecoder{rng: rand.New(rand.NewSource(2))}
	for i := range d.planes {
		d.planes[i] = bitvector.NewSoftVector(114)
	}
	return d
}

// DecodeResult is the outcome of feeding one burst into the decoder.
type DecodeResult struct {
	Ready bool // a full 4-burst block was assembled and a decode was attempted
	Good  bool // Fire-code syndrome was zero
	Frame l2.Frame
}

// PutBurst consumes one soft normal burst, identified by its block index
// B (0..3) within the 4-burst group, and attempts a decode once B==3 lands.
func (d *XCCHDecoder) PutBurst(b int, sb *burst.SoftNormalBurst, fn clock.FN) DecodeResult {
	b = b % 4
	copy(d.planes[b][:57], sb.Data1)
	copy(d.planes[b][57:], sb.Data2)
	d.haveBlock[b] = true

	if b != 3 {
		return DecodeResult{}
	}

	raw := [4]bitvector.SoftVector{}
	for i := range raw {
		raw[i] = append(bitvector.SoftVector(nil), d.planes[i]...)
	}

	result := d.tryDecode(raw, fn)

	for i := range d.planes {
		d.planes[i].Fill(0.5) // dropped-burst tolerance: erase consumed bits
		d.haveBlock[i] = false
	}
	return result
}

func (d *XCCHDecoder) tryDecode(raw [4]bitvector.SoftVector, fn clock.FN) DecodeResult {
	if d.SimulatedFER > 0 && d.rng.Float64() < d.SimulatedFER {
		d.Stats.update(true, 1.0, 0)
		return DecodeResult{Ready: true, Good: false}
	}

	c := fec.DeinterleaveXCCH(raw)
	frame, good := d.decodeAttempt(c)

	if !good && d.Encrypt != nil && d.Encrypt.State() != cipher.StateNo {
		decrypted := append(bitvector.SoftVector(nil), c...)
		for b := 0; b < 4; b++ {
			if ka, kb, ok := d.Encrypt.Keystream(clock.Add(fn, int64(b))); ok {
				xorSoftRange(decrypted, b*114, ka, kb)
			}
		}
		if f2, good2 := d.decodeAttempt(decrypted); good2 {
			frame, good = f2, true
			if d.Encrypt.State() == cipher.StateMaybe {
				d.Encrypt.Latch()
			}
		}
	}

	errBits := 0.0
	d.Stats.update(!good, errBits, 0)
	return DecodeResult{Ready: true, Good: good, Frame: frame}
}

func xorSoftRange(c bitvector.SoftVector, offset int, ka, kb []byte) {
	for i := 0; i < 57 && i < len(ka); i++ {
		toggleSoft(c, offset+i, ka[i])
	}
	for i := 0; i < 57 && i < len(kb); i++ {
		toggleSoft(c, offset+57+i, kb[i])
	}
}

func toggleSoft(c bitvector.SoftVector, idx int, ksBit byte) {
	if idx < 0 || idx >= len(c) {
		return
	}
	if ksBit&1 != 0 {
		c[idx] = 1 - c[idx]
	}
}

func (d *XCCHDecoder) decodeAttempt(c bitvector.SoftVector) (l2.Frame, bool) {
	u, _ := fec.ViterbiDecode(c)
	good := fec.FireCodeCheck(u)
	dBits := bitvector.Reverse8(u[:184])
	payload := bitsToPayload(dBits)
	return l2.NewDataFrame(0, payload[:]), good
}
