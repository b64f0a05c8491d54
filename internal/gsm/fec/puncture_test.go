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

func TestPunctureUnpunctureRoundTrips(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	full := bitvector.NewBitVector(500)
	for i := range full {
		full[i] = byte(rng.Intn(2))
	}
	pattern := fec.PuncturePattern(500, 456)
	punctured := fec.Puncture(full, pattern)
	assert.Len(t, punctured, 456)

	restored := fec.Unpuncture(bitvector.FromBitVector(punctured), pattern)
	for i, keep := range pattern {
		if keep {
			assert.Equal(t, float64(full[i]), restored[i])
		} else {
			assert.Equal(t, 0.5, restored[i])
		}
	}
}

func TestPuncturePatternKeepsExactCount(t *testing.T) {
	pattern := fec.PuncturePattern(508, 456)
	count := 0
	for _, k := range pattern {
		if k {
			count++
		}
	}
	assert.Equal(t, 456, count)
}
