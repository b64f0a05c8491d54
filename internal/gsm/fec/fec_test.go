// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package fec_test

import (
	"math/rand"
	"testing"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/fec"
	"github.com/stretchr/testify/assert"
)

func TestFireCodeRoundTripsCleanData(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := bitvector.NewBitVector(184)
	for i := range d {
		d[i] = byte(rng.Intn(2))
	}
	p := fec.FireCodeInvert(fec.FireCodeParity(d))
	u := bitvector.NewBitVector(224)
	copy(u, d)
	copy(u[184:], p)
	assert.True(t, fec.FireCodeCheck(u))
}

func TestFireCodeDetectsCorruption(t *testing.T) {
	d := bitvector.NewBitVector(184)
	p := fec.FireCodeInvert(fec.FireCodeParity(d))
	u := bitvector.NewBitVector(224)
	copy(u, d)
	copy(u[184:], p)
	u[10] ^= 1
	assert.False(t, fec.FireCodeCheck(u))
}

func TestXCCHInterleaverIsBijection(t *testing.T) {
	type key struct{ plane, pos int }
	seen := make(map[key]int, 456)
	for k := 0; k < 456; k++ {
		c := bitvector.NewBitVector(456)
		c[k] = 1
		planes := fec.InterleaveXCCH(c)
		found := 0
		for plane := 0; plane < 4; plane++ {
			for pos := 0; pos < 114; pos++ {
				if planes[plane][pos] == 1 {
					found++
					seen[key{plane, pos}]++
				}
			}
		}
		assert.Equal(t, 1, found, "k=%d should set exactly one output bit", k)
	}
	assert.Len(t, seen, 456, "every (plane,pos) slot should be hit by exactly one k")
	for k, count := range seen {
		assert.Equal(t, 1, count, "slot %v hit more than once", k)
	}
}

func TestXCCHInterleaverRoundTrips(t *testing.T) {
	c := bitvector.NewBitVector(456)
	for i := range c {
		c[i] = byte(i % 2)
	}
	planes := fec.InterleaveXCCH(c)
	soft := [4]bitvector.SoftVector{}
	for i := range soft {
		soft[i] = bitvector.FromBitVector(planes[i])
	}
	out := fec.DeinterleaveXCCH(soft)
	assert.Equal(t, bitvector.FromBitVector(c), out)
}

func TestConvolutionalRoundTripsWithNoNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	u := bitvector.NewBitVector(228)
	for i := 0; i < 224; i++ {
		u[i] = byte(rng.Intn(2))
	}
	// last 4 bits left zero: tail bits.
	c := fec.ConvEncode(u)
	assert.Len(t, c, 456)

	soft := bitvector.FromBitVector(c)
	decoded, _ := fec.ViterbiDecode(soft)
	assert.Equal(t, u, decoded)
}

func TestTCHInterleaverRoundTrips(t *testing.T) {
	c := bitvector.NewBitVector(456)
	for i := range c {
		c[i] = byte((i * 7) % 2)
	}
	bursts := fec.InterleaveTCH(c)
	soft := [8]bitvector.SoftVector{}
	for i := range soft {
		soft[i] = bitvector.FromBitVector(bursts[i])
	}
	out := fec.DeinterleaveTCH(soft)
	assert.Equal(t, bitvector.FromBitVector(c), out)
}
