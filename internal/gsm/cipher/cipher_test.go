// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package cipher_test

import (
	"testing"

	"github.com/gobts/gobts/internal/gsm/cipher"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/stretchr/testify/assert"
)

func TestCountKnownAnswers(t *testing.T) {
	cases := []struct {
		fn   clock.FN
		want uint32
	}{
		{0, 0},
		{1, 1<<5 | 1},
		{26, 26 << 5},
		{51, 25},
		{26 * 51, 1 << 11},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, cipher.Count(c.fn), "fn=%d", c.fn)
	}
}

func TestCountIsPeriodicOverHyperframe(t *testing.T) {
	a := cipher.Count(clock.FN(100))
	b := cipher.Count(clock.FN(100 + clock.Hyperframe))
	assert.Equal(t, a, b)
}

type fakeStream struct{}

func (fakeStream) Generate(kc cipher.Kc, count uint32) (a, b []byte) {
	a = make([]byte, 114)
	b = make([]byte, 114)
	for i := range a {
		a[i] = byte(count) ^ kc[0]
	}
	return a, b
}

func TestEncryptionStatePhaseIn(t *testing.T) {
	e := cipher.NewEncryptionState(fakeStream{})
	assert.Equal(t, cipher.StateNo, e.State())

	_, _, ok := e.Keystream(0)
	assert.False(t, ok)

	e.SetKc(cipher.Kc{1, 2, 3, 4, 5, 6, 7, 8}, cipher.AlgorithmA51)
	assert.Equal(t, cipher.StateMaybe, e.State())

	a, b, ok := e.Keystream(0)
	assert.True(t, ok)
	assert.Len(t, a, 114)
	assert.Len(t, b, 114)

	e.Latch()
	assert.Equal(t, cipher.StateYes, e.State())

	e.Reset()
	assert.Equal(t, cipher.StateNo, e.State())
}
