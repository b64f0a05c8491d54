// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1_test

import (
	"math/rand"
	"testing"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/l1"
	"github.com/stretchr/testify/assert"
)

func TestRACHRoundTrip(t *testing.T) {
	bsic := byte(7)
	c := l1.RACHEncode(0x2a, bsic)
	soft := bitvector.FromBitVector(c)

	dec := l1.NewRACHDecoder(bsic)
	result, ok := dec.Decode(soft, clock.Time{}, -60, 0, 2)
	assert.True(t, ok)
	assert.Equal(t, byte(0x2a), result.RA)
}

func TestRACHFalseAlarmRateIsLow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dec := l1.NewRACHDecoder(7)
	good := 0
	for i := 0; i < 10000; i++ {
		soft := make(bitvector.SoftVector, 36)
		for j := range soft {
			soft[j] = float64(rng.Intn(2))
		}
		if _, ok := dec.Decode(soft, clock.Time{}, 0, 0, 0); ok {
			good++
		}
	}
	assert.Less(t, good, 20)
}
