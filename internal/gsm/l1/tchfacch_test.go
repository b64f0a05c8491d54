// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1_test

import (
	"math/rand"
	"testing"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/l1"
	"github.com/stretchr/testify/assert"
)

func TestTCHFACCHStolenBlockDeliversFrameNoSpeech(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	enc := l1.NewTCHFACCHEncoder(3, l1.ModeFR)
	dec := l1.NewTCHFACCHDecoder(l1.ModeFR)

	frame := randomFrame(rng)
	bursts := enc.EncodeBlock(&frame, nil, clock.FN(10), clock.Time{})

	var result l1.TCHBlockResult
	for b, nb := range bursts {
		sb := &burst.SoftNormalBurst{Data1: toSoft(nb.Data1), Data2: toSoft(nb.Data2)}
		result = dec.PutBurst(b, sb, int(nb.StealHu), int(nb.StealHl))
	}
	assert.True(t, result.Ready)
	assert.Equal(t, l1.DecisionFACCH, result.Stolen)
	assert.Equal(t, frame.Payload, result.FACCH.Payload)
	assert.False(t, result.Speech.Good && len(result.Speech.Payload) > 0 && result.Stolen == l1.DecisionVoice)
}

func TestTCHFACCHVoiceBlockNoStealing(t *testing.T) {
	enc := l1.NewTCHFACCHEncoder(3, l1.ModeFR)
	dec := l1.NewTCHFACCHDecoder(l1.ModeFR)

	speech := bitvector.NewBitVector(182)
	for i := range speech {
		speech[i] = byte(i % 2)
	}
	bursts := enc.EncodeBlock(nil, speech, clock.FN(10), clock.Time{})

	var result l1.TCHBlockResult
	for b, nb := range bursts {
		sb := &burst.SoftNormalBurst{Data1: toSoft(nb.Data1), Data2: toSoft(nb.Data2)}
		result = dec.PutBurst(b, sb, int(nb.StealHu), int(nb.StealHl))
	}
	assert.Equal(t, l1.DecisionVoice, result.Stolen)
	assert.True(t, result.Speech.Good)
	assert.Equal(t, speech, result.Speech.Payload)
}
