// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1_test

import (
	"math/rand"
	"testing"

	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/l1"
	"github.com/stretchr/testify/assert"
)

func TestXCCHChannelInvokesOnFrameOnceBlockComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	enc := l1.NewXCCHEncoder(3)
	frame := randomFrame(rng)
	bursts := enc.Encode(frame, clock.FN(10), clock.Time{})

	var got l1.DecodeResult
	calls := 0
	ch := &l1.XCCHChannel{
		Dec: l1.NewXCCHDecoder(),
		OnFrame: func(r l1.DecodeResult) {
			calls++
			got = r
		},
	}

	for b, nb := range bursts {
		sb := &burst.SoftNormalBurst{Data1: toSoft(nb.Data1), Data2: toSoft(nb.Data2)}
		ch.PutBurst(b, sb, clock.FN(10))
	}

	assert.Equal(t, 1, calls, "OnFrame fires exactly once, when the fourth burst lands")
	assert.True(t, got.Good)
	assert.Equal(t, frame.Payload, got.Frame.Payload)
}

func TestXCCHChannelSkipsCallbackMidBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	enc := l1.NewXCCHEncoder(3)
	frame := randomFrame(rng)
	bursts := enc.Encode(frame, clock.FN(10), clock.Time{})

	calls := 0
	ch := &l1.XCCHChannel{
		Dec:     l1.NewXCCHDecoder(),
		OnFrame: func(l1.DecodeResult) { calls++ },
	}

	for b := 0; b < 3; b++ {
		sb := &burst.SoftNormalBurst{Data1: toSoft(bursts[b].Data1), Data2: toSoft(bursts[b].Data2)}
		ch.PutBurst(b, sb, clock.FN(10))
	}

	assert.Zero(t, calls, "no callback until the block's fourth burst arrives")
}
