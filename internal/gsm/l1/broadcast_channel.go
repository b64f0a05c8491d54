// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import (
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
	"github.com/gobts/gobts/internal/gsm/l2"
)

// BCCHChannel adapts a BCCHGenerator to the downlink scheduler's Encoder
// contract (internal/gsm/l1/scheduler.Encoder). BCCHGenerator.Encode
// returns the four interleaved bursts one SI message occupies; EncodeBlock
// is called once per block by the scheduler and hands back all four so
// they land on the four consecutive frames the block's mapping reserves.
type BCCHChannel struct {
	Gen *BCCHGenerator
}

// EncodeBlock satisfies scheduler.Encoder.
func (c *BCCHChannel) EncodeBlock(blockIdx int, fn clock.FN, t clock.Time) []*burst.NormalBurst {
	bursts := c.Gen.Encode(blockIdx, fn, t)
	return bursts[:]
}

// CCCHChannel adapts an XCCHEncoder carrying CCCH (paging/AGCH) traffic
// to the scheduler's Encoder contract. Frames is polled once per block; an
// empty channel falls back to an idle frame so the block still carries
// filler bursts rather than silence.
type CCCHChannel struct {
	Enc    *XCCHEncoder
	Frames func() (l2.Frame, bool)
}

// EncodeBlock satisfies scheduler.Encoder.
func (c *CCCHChannel) EncodeBlock(blockIdx int, fn clock.FN, t clock.Time) []*burst.NormalBurst {
	frame := l2.IdleFrame()
	if c.Frames != nil {
		if f, ok := c.Frames(); ok {
			frame = f
		}
	}
	bursts := c.Enc.Encode(frame, fn, t)
	return bursts[:]
}
