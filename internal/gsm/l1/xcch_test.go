// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1_test

import (
	"math/rand"
	"testing"

	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/l1"
	"github.com/gobts/gobts/internal/gsm/l2"
	"github.com/stretchr/testify/assert"
)

func randomFrame(rng *rand.Rand) l2.Frame {
	var payload [23]byte
	rng.Read(payload[:])
	return l2.NewDataFrame(0, payload[:])
}

func TestXCCHRoundTripZeroNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	enc := l1.NewXCCHEncoder(3)
	dec := l1.NewXCCHDecoder()

	frame := randomFrame(rng)
	bursts := enc.Encode(frame, clock.FN(100), clock.Time{})

	var result l1.DecodeResult
	for b, nb := range bursts {
		sb := &burst.SoftNormalBurst{Data1: toSoft(nb.Data1), Data2: toSoft(nb.Data2)}
		result = dec.PutBurst(b, sb, clock.FN(100))
	}
	assert.True(t, result.Ready)
	assert.True(t, result.Good)
	assert.Equal(t, frame.Payload, result.Frame.Payload)
}

func toSoft(v []byte) []float64 {
	out := make([]float64, len(v))
	for i, b := range v {
		if b != 0 {
			out[i] = 1
		}
	}
	return out
}
