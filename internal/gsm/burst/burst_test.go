// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package burst_test

import (
	"testing"

	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/stretchr/testify/assert"
)

func TestNormalBurstPacksToFullLength(t *testing.T) {
	b := burst.NewNormalBurst(clock.Time{}, 3)
	for i := range b.Data1 {
		b.Data1[i] = 1
	}
	packed := b.Pack()
	assert.Len(t, packed, burst.NormalBurstLen)
}

func TestTrainingSequenceSelectedByTSC(t *testing.T) {
	ts0 := burst.TrainingSequence(0)
	ts1 := burst.TrainingSequence(1)
	assert.Len(t, ts0, burst.TrainingBits)
	assert.NotEqual(t, ts0, ts1)
	assert.Equal(t, ts0, burst.TrainingSequence(8))
}

func TestDummyBurstIsFixedLength(t *testing.T) {
	assert.Len(t, burst.DummyBurst, burst.NormalBurstLen)
}

func TestFCBBurstIsAllZero(t *testing.T) {
	b := burst.FCBBurst()
	assert.Len(t, b, burst.NormalBurstLen)
	for _, bit := range b {
		assert.Equal(t, byte(0), bit)
	}
}
