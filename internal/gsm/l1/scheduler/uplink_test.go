// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package scheduler_test

import (
	"testing"

	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/l1/scheduler"
	"github.com/gobts/gobts/internal/gsm/mapping"
	"github.com/gobts/gobts/internal/gsm/radio/fake"
	"github.com/stretchr/testify/assert"
)

type recordedBurst struct {
	b  int
	fn clock.FN
}

type recordingDecoder struct {
	got []recordedBurst
}

func (d *recordingDecoder) PutBurst(b int, sb *burst.SoftNormalBurst, fn clock.FN) {
	d.got = append(d.got, recordedBurst{b: b, fn: fn})
}

// fourBurstMapping mimics a 4-burst XCCH-shaped channel with two block
// positions per 8-frame cycle, enough to exercise block-boundary dispatch
// without pulling in the real SDCCH subchannel tables.
func fourBurstMapping() mapping.ChannelMapping {
	return mapping.ChannelMapping{
		Name:           "test-xcch",
		RepeatLength:   8,
		BlockFrames:    []int{0, 4},
		BurstsPerBlock: 4,
		Uplink:         true,
	}
}

func TestUplinkSchedulerDispatchesByBlockPosition(t *testing.T) {
	radio := fake.NewLoopback()
	dec := &recordingDecoder{}
	sched := scheduler.NewUplinkScheduler(radio, nil)
	sched.Register(&scheduler.UplinkChannel{Mapping: fourBurstMapping(), Decoder: dec, TN: 1})

	for fn := clock.FN(0); fn < 8; fn++ {
		nb := burst.NewNormalBurst(clock.Time{FNVal: fn, TNVal: 1}, 0)
		_ = radio.Transmit(1, nb)
	}

	n := sched.Pump()
	assert.Equal(t, 8, n)
	assert.Len(t, dec.got, 8)
	for i, rec := range dec.got {
		assert.Equal(t, i%4, rec.b, "burst %d should land at offset %d within its block", i, i%4)
	}
}

func TestUplinkSchedulerIgnoresOtherTimeslots(t *testing.T) {
	radio := fake.NewLoopback()
	dec := &recordingDecoder{}
	sched := scheduler.NewUplinkScheduler(radio, nil)
	sched.Register(&scheduler.UplinkChannel{Mapping: fourBurstMapping(), Decoder: dec, TN: 1})

	nb := burst.NewNormalBurst(clock.Time{FNVal: 0, TNVal: 2}, 0)
	_ = radio.Transmit(2, nb)

	n := sched.Pump()
	assert.Equal(t, 1, n, "Pump still drains the queued burst")
	assert.Empty(t, dec.got, "no channel is registered on TN 2")
}

func TestUplinkSchedulerIgnoresFramesOutsideAnyBlock(t *testing.T) {
	radio := fake.NewLoopback()
	dec := &recordingDecoder{}
	sched := scheduler.NewUplinkScheduler(radio, nil)
	m := fourBurstMapping()
	m.BurstsPerBlock = 2 // leave frames 2,3,6,7 unclaimed
	sched.Register(&scheduler.UplinkChannel{Mapping: m, Decoder: dec, TN: 1})

	nb := burst.NewNormalBurst(clock.Time{FNVal: 3, TNVal: 1}, 0)
	_ = radio.Transmit(1, nb)

	sched.Pump()
	assert.Empty(t, dec.got, "frame 3 falls outside both 2-burst blocks")
}
