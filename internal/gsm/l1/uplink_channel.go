// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import (
	"github.com/gobts/gobts/internal/gsm/burst"
	"github.com/gobts/gobts/internal/gsm/clock"
)

// XCCHChannel adapts an XCCHDecoder to the uplink scheduler's UplinkDecoder
// contract (internal/gsm/l1/scheduler.UplinkDecoder), invoking OnFrame once
// per assembled 4-burst block.
type XCCHChannel struct {
	Dec     *XCCHDecoder
	OnFrame func(DecodeResult)
}

// PutBurst satisfies scheduler.UplinkDecoder.
func (c *XCCHChannel) PutBurst(b int, sb *burst.SoftNormalBurst, fn clock.FN) {
	result := c.Dec.PutBurst(b, sb, fn)
	if result.Ready && c.OnFrame != nil {
		c.OnFrame(result)
	}
}

// TCHFACCHChannel adapts a TCHFACCHDecoder to the uplink scheduler's
// UplinkDecoder contract. The decoder's PutBurst wants the raw FACCH
// stealing-flag votes rather than a frame number; those arrive on the soft
// burst's StealHu/StealHl fields as soft (0..1) values, thresholded here at
// the midpoint the way the downlink encoder writes its hard stealing bits.
type TCHFACCHChannel struct {
	Dec     *TCHFACCHDecoder
	OnBlock func(TCHBlockResult)
}

// PutBurst satisfies scheduler.UplinkDecoder.
func (c *TCHFACCHChannel) PutBurst(b int, sb *burst.SoftNormalBurst, _ clock.FN) {
	result := c.Dec.PutBurst(b, sb, stealBit(sb.StealHu), stealBit(sb.StealHl))
	if result.Ready && c.OnBlock != nil {
		c.OnBlock(result)
	}
}

func stealBit(soft float64) int {
	if soft >= 0.5 {
		return 1
	}
	return 0
}
