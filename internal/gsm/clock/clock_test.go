// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package clock_test

import (
	"testing"

	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeWrapsNegative(t *testing.T) {
	assert.Equal(t, clock.FN(clock.Hyperframe-1), clock.Normalize(-1))
	assert.Equal(t, clock.FN(0), clock.Normalize(clock.Hyperframe))
}

func TestAddWrapsForward(t *testing.T) {
	assert.Equal(t, clock.FN(0), clock.Add(clock.Hyperframe-1, 1))
	assert.Equal(t, clock.FN(5), clock.Add(3, 2))
}

func TestSubMeasuresForwardDistance(t *testing.T) {
	assert.Equal(t, int64(1), clock.Sub(0, clock.Hyperframe-1))
	assert.Equal(t, int64(5), clock.Sub(10, 5))
}

func TestBTSClockAdvanceWraps(t *testing.T) {
	c := clock.NewBTSClock()
	c.Set(clock.Hyperframe - 1)
	assert.Equal(t, clock.FN(0), c.Advance())
}
