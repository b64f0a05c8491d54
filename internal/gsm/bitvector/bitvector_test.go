// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package bitvector_test

import (
	"testing"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/stretchr/testify/assert"
)

func TestReverse8RoundTrips(t *testing.T) {
	v := bitvector.FromUint64(0b10110001, 8)
	r := bitvector.Reverse8(v)
	rr := bitvector.Reverse8(r)
	assert.Equal(t, v, rr)
	assert.NotEqual(t, v, r)
}

func TestUint64RoundTrip(t *testing.T) {
	v := bitvector.FromUint64(0x1F4, 16)
	assert.Equal(t, uint64(0x1F4), v.Uint64())
}

func TestSoftVectorHardenRoundsAtHalf(t *testing.T) {
	sv := bitvector.SoftVector{0.0, 0.49, 0.5, 0.9}
	hv := sv.Harden()
	assert.Equal(t, bitvector.BitVector{0, 0, 1, 1}, hv)
}

func TestSoftVectorXORKeystreamTogglesHardenedBits(t *testing.T) {
	sv := bitvector.SoftVector{1.0, 0.0, 1.0, 0.0}
	ks := bitvector.BitVector{1, 0, 1, 1}
	sv.XORKeystream(ks)
	assert.Equal(t, bitvector.BitVector{0, 0, 0, 1}, sv.Harden())
}

func TestParityIsXOROfBits(t *testing.T) {
	v := bitvector.BitVector{1, 1, 0, 1}
	assert.Equal(t, byte(1), v.Parity())
}
