// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1_test

import (
	"math/rand"
	"testing"

	"github.com/gobts/gobts/internal/gsm/bitvector"
	"github.com/gobts/gobts/internal/gsm/l1"
	"github.com/stretchr/testify/assert"
)

var allModes = []l1.TCHMode{
	l1.ModeFR, l1.ModeAFS122, l1.ModeAFS102, l1.ModeAFS795,
	l1.ModeAFS74, l1.ModeAFS67, l1.ModeAFS59, l1.ModeAFS515, l1.ModeAFS475,
}

func kdForMode(mode l1.TCHMode) int {
	switch mode {
	case l1.ModeFR:
		return 182
	case l1.ModeAFS122:
		return 244
	case l1.ModeAFS102:
		return 204
	case l1.ModeAFS795:
		return 159
	case l1.ModeAFS74:
		return 148
	case l1.ModeAFS67:
		return 134
	case l1.ModeAFS59:
		return 118
	case l1.ModeAFS515:
		return 103
	case l1.ModeAFS475:
		return 95
	}
	panic("unknown mode")
}

func TestTCHModeLoopRoundTrips(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, mode := range allModes {
		kd := kdForMode(mode)
		for trial := 0; trial < 10; trial++ {
			payload := bitvector.NewBitVector(kd)
			if trial != 0 {
				for i := range payload {
					payload[i] = byte(rng.Intn(2))
				}
			}
			coded := l1.TCHEncode(mode, payload)
			assert.Len(t, coded, 456)

			result := l1.TCHDecode(mode, bitvector.FromBitVector(coded))
			assert.True(t, result.Good, "mode=%v trial=%d", mode, trial)
			assert.Equal(t, payload, result.Payload, "mode=%v trial=%d", mode, trial)
		}
	}
}

func TestStealingArbitrationDecisions(t *testing.T) {
	a := l1.DefaultStealingArbitration()
	assert.Equal(t, l1.DecisionVoice, a.Decide(0, false))
	assert.Equal(t, l1.DecisionFACCH, a.Decide(8, true))
	assert.Equal(t, l1.DecisionVoice, a.Decide(3, false))
	assert.Equal(t, l1.DecisionNone, a.Decide(8, false))
}
