// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package scheduler runs the downlink burst scheduler thread (§4.1) and
// the uplink demultiplexer that dispatches received bursts to the L1
// decoder owning their timeslot and block index.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/mapping"
	"github.com/gobts/gobts/internal/gsm/radio"
)

// Encoder is the minimal contract the scheduler drives on the downlink
// side: produce every burst of a block in one call (nil or a short slice
// sends filler for the missing positions), so the scheduler encodes a
// block exactly once and drains its bursts one per physical frame.
type Encoder interface {
	EncodeBlock(blockIdx int, fn clock.FN, t0 clock.Time) []*burst.NormalBurst
}

// Channel binds one logical channel's mapping, encoder and timeslot
// together for the downlink scheduler.
type Channel struct {
	Mapping mapping.ChannelMapping
	Encoder Encoder
	TN      clock.TN

	nextWriteTime clock.Time
	blockIdx      int
	pending       []*burst.NormalBurst // bursts of the current block not yet transmitted
}

// DownlinkScheduler drives every registered channel's encoder in lock-step
// with the BTS clock, mirroring the reference's one-service-thread-per-
// channel design collapsed onto a single clock-driven loop (§9 Design
// Notes' single-clock simplification).
type DownlinkScheduler struct {
	Clock    *clock.BTSClock
	Radio    radio.TxSink
	Channels []*Channel
	Logger   *slog.Logger
}

// NewDownlinkScheduler builds a scheduler over the given radio and clock.
func NewDownlinkScheduler(c *clock.BTSClock, r radio.TxSink, logger *slog.Logger) *DownlinkScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownlinkScheduler{Clock: c, Radio: r, Logger: logger}
}

// Register adds a channel to the scheduler, rolling its first write time
// forward through frameMapping(0) (§4.1 "Initial TDMA state").
func (s *DownlinkScheduler) Register(ch *Channel) {
	first := ch.Mapping.FrameMapping(0)
	ch.nextWriteTime = clock.Time{FNVal: clock.FN(first), TNVal: ch.TN}
	s.Channels = append(s.Channels, ch)
}

// Tick advances every channel whose nextWriteTime has arrived, emitting
// one burst (or filler) per channel and rolling its schedule forward.
func (s *DownlinkScheduler) Tick(ctx context.Context) {
	now := s.Clock.Now()
	for _, ch := range s.Channels {
		s.resync(ch, now)
		if ch.nextWriteTime.FN() != now {
			continue
		}
		s.emit(ch, now)
	}
}

// resync snaps nextWriteTime to the current clock if this channel has
// fallen more than one multiframe behind, per §4.1's resync() contract. Any
// bursts buffered from an abandoned block are dropped rather than replayed
// out of time order.
func (s *DownlinkScheduler) resync(ch *Channel, now clock.FN) {
	if clock.Sub(now, ch.nextWriteTime.FN()) > int64(ch.Mapping.RepeatLength) {
		ch.nextWriteTime = clock.Time{FNVal: now, TNVal: ch.TN}
		ch.pending = nil
	}
}

// emit transmits the next due burst of ch's current block, calling
// Encoder.EncodeBlock exactly once per block to fill ch.pending and then
// draining it one burst per physical frame until the block is exhausted,
// at which point the schedule advances to the next block position.
func (s *DownlinkScheduler) emit(ch *Channel, now clock.FN) {
	t := ch.nextWriteTime
	if len(ch.pending) == 0 {
		ch.pending = ch.Encoder.EncodeBlock(ch.blockIdx, now, t)
		for len(ch.pending) < ch.Mapping.BurstsPerBlock {
			ch.pending = append(ch.pending, nil)
		}
	}

	var b *burst.NormalBurst
	if len(ch.pending) > 0 {
		b = ch.pending[0]
		ch.pending = ch.pending[1:]
	}
	if b == nil {
		b = &burst.NormalBurst{Time: t, Data1: burst.DummyBurst[3:60], Data2: burst.DummyBurst[87:144]}
	}
	if err := s.Radio.Transmit(ch.TN, b); err != nil {
		s.Logger.Warn("downlink transmit dropped", "error", err, "channel", ch.Mapping.Name)
	}

	if len(ch.pending) > 0 {
		ch.nextWriteTime = t.FrameAdvance(1)
		return
	}
	ch.blockIdx++
	repeat := int64(ch.Mapping.RepeatLength)
	next := int64(ch.Mapping.FrameMapping(ch.blockIdx)) % repeat
	delta := next - int64(t.FN())%repeat
	if delta <= 0 {
		delta += repeat
	}
	ch.nextWriteTime = clock.Time{FNVal: clock.Add(t.FN(), delta), TNVal: ch.TN}
}
