// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package scheduler

import (
	"context"
	"log/slog"

	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/mapping"
	"github.com/gobts/gobts/internal/gsm/radio"
)

// UplinkDecoder is the contract the uplink demultiplexer drives: feed one
// soft burst at its position (b) within the channel's current block. b runs
// 0..BurstsPerBlock-1; implementations decide when a full block has landed
// and attempt a decode (mirrors XCCHDecoder.PutBurst / TCHFACCHDecoder.PutBurst).
type UplinkDecoder interface {
	PutBurst(b int, sb *burst.SoftNormalBurst, fn clock.FN)
}

// UplinkChannel binds one logical channel's mapping and decoder to a
// physical timeslot for the uplink demultiplexer.
type UplinkChannel struct {
	Mapping mapping.ChannelMapping
	Decoder UplinkDecoder
	TN      clock.TN
}

// UplinkScheduler pulls demodulated bursts off the radio and routes each to
// the registered channel owning its timeslot and multiframe position, the
// uplink counterpart of DownlinkScheduler. RACH access bursts are not
// routed here: they arrive in a distinct physical format (burst.RACHBurst,
// 36 encoded bits with no training-sequence-aligned Data1/Data2 split) and
// are handled by the RACH correlator path ahead of this demultiplexer.
type UplinkScheduler struct {
	Radio    radio.RxSource
	Channels []*UplinkChannel
	Logger   *slog.Logger
}

// NewUplinkScheduler builds a demultiplexer reading from the given source.
func NewUplinkScheduler(r radio.RxSource, logger *slog.Logger) *UplinkScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UplinkScheduler{Radio: r, Logger: logger}
}

// Register adds a channel to the dispatch table.
func (s *UplinkScheduler) Register(ch *UplinkChannel) {
	s.Channels = append(s.Channels, ch)
}

// Run consumes bursts from the radio until ctx is canceled or the source is
// closed, dispatching each one to its owning channel.
func (s *UplinkScheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tn, sb, ok := s.Radio.Receive()
		if !ok {
			return
		}
		s.dispatch(tn, sb)
	}
}

// Pump drains every burst currently queued on the radio without blocking,
// dispatching each to its channel, and returns the count consumed. It suits
// a non-blocking source such as fake.Loopback, which the tests and
// internal/cmd's per-frame L1 clock loop both drive this way; Run is the
// alternative for a blocking RxSource.
func (s *UplinkScheduler) Pump() int {
	n := 0
	for {
		tn, sb, ok := s.Radio.Receive()
		if !ok {
			return n
		}
		s.dispatch(tn, sb)
		n++
	}
}

func (s *UplinkScheduler) dispatch(tn clock.TN, sb *burst.SoftNormalBurst) {
	for _, ch := range s.Channels {
		if ch.TN != tn || !ch.Mapping.Uplink {
			continue
		}
		b, ok := burstOffset(ch.Mapping, sb.Time.FN())
		if !ok {
			continue
		}
		ch.Decoder.PutBurst(b, sb, sb.Time.FN())
		return
	}
	s.Logger.Debug("uplink burst dropped: no channel owns this slot", "tn", tn, "fn", sb.Time.FN())
}

// burstOffset reports the 0-based position of fn within the block of
// mapping m that currently owns it, or false if fn falls outside every
// registered block (e.g. idle/guard frames).
func burstOffset(m mapping.ChannelMapping, fn clock.FN) (int, bool) {
	pos := int64(clock.Normalize(fn)) % int64(m.RepeatLength)
	for _, start := range m.BlockFrames {
		delta := pos - int64(start)
		if delta >= 0 && delta < int64(m.BurstsPerBlock) {
			return int(delta), true
		}
	}
	return 0, false
}
