// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package fec

import (
	"math"

	"github.com/gobts/gobts/internal/gsm/bitvector"
)

// Rate-1/2, constraint-length-5 convolutional code shared by every GSM
// control and traffic channel (TS 05.03 §4.1.3): G0 = 1+D^3+D^4,
// G1 = 1+D+D^3+D^4. The 5-bit window below packs the current input bit as
// its MSB followed by the 4-bit shift-register state.
const (
	convMemBits   = 4
	convNumStates = 1 << convMemBits
	convG0        = 0x13
	convG1        = 0x1B
)

func parityOf(x int) int {
	p := 0
	for x != 0 {
		p ^= x & 1
		x >>= 1
	}
	return p
}

// ConvEncode rate-½ K=5 encodes u (which must already include its tail
// bits) into a coded vector of length 2*len(u), interleaved o0,o1,o0,o1,...
func ConvEncode(u bitvector.BitVector) bitvector.BitVector {
	c := bitvector.NewBitVector(len(u) * 2)
	reg := 0
	for i, bit := range u {
		window := (int(bit&1) << convMemBits) | reg
		o0 := parityOf(window & convG0)
		o1 := parityOf(window & convG1)
		c[2*i] = byte(o0)
		c[2*i+1] = byte(o1)
		reg = (window >> 1) & (convNumStates - 1)
	}
	return c
}

// ViterbiDecode decodes a soft-bit sequence produced by ConvEncode back to
// the most likely input sequence, assuming the encoder was flushed to state
// zero by trailing zero tail bits (true for every GSM channel type). It
// returns the decoded bits and the path metric of the winning path, lower
// being better.
func ViterbiDecode(soft bitvector.SoftVector) (bitvector.BitVector, float64) {
	if len(soft)%2 != 0 {
		panic("fec: ViterbiDecode requires an even-length soft vector")
	}
	numSteps := len(soft) / 2

	const inf = math.MaxFloat64 / 2
	pm := make([]float64, convNumStates)
	for i := range pm {
		pm[i] = inf
	}
	pm[0] = 0

	type back struct {
		prev  int16
		inBit byte
	}
	backptr := make([][convNumStates]back, numSteps)

	for step := 0; step < numSteps; step++ {
		r0 := soft[2*step]
		r1 := soft[2*step+1]
		next := make([]float64, convNumStates)
		for i := range next {
			next[i] = inf
		}
		for prevState := 0; prevState < convNumStates; prevState++ {
			if pm[prevState] >= inf {
				continue
			}
			for inBit := 0; inBit < 2; inBit++ {
				window := (inBit << convMemBits) | prevState
				o0 := parityOf(window & convG0)
				o1 := parityOf(window & convG1)
				newState := (window >> 1) & (convNumStates - 1)
				metric := pm[prevState] + softDistance(r0, o0) + softDistance(r1, o1)
				if metric < next[newState] {
					next[newState] = metric
					backptr[step][newState] = back{prev: int16(prevState), inBit: byte(inBit)}
				}
			}
		}
		pm = next
	}

	u := bitvector.NewBitVector(numSteps)
	state := 0
	finalMetric := pm[0]
	for step := numSteps - 1; step >= 0; step-- {
		b := backptr[step][state]
		u[step] = b.inBit
		state = int(b.prev)
	}
	return u, finalMetric
}

// softDistance measures disagreement between a soft observation r in [0,1]
// and an expected hard bit value.
func softDistance(r float64, expect int) float64 {
	if expect == 1 {
		return 1 - r
	}
	return r
}
