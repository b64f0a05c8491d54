// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package mapping describes how each GSM logical channel's blocks are laid
// onto physical TDMA frame numbers within a 51- or 26-multiframe, mirroring
// the reference's TDMAMapping/MappingInfo tables (TS 05.02 §7).
package mapping

// ChannelMapping describes the TDMA frame positions a logical channel
// occupies within its repeating multiframe.
type ChannelMapping struct {
	// Name identifies the channel type for logs and metrics.
	Name string
	// RepeatLength is the multiframe length in TDMA frames (26 or 51, or
	// 102 for the SACCH/C channels).
	RepeatLength int
	// BlockFrames lists, for each block index, the frame offset within the
	// multiframe at which that block's first burst is sent.
	BlockFrames []int
	// BurstsPerBlock is how many consecutive TDMA frames one block spans
	// (4 for XCCH including BCCH/CCCH, 8 for TCH/FACCH, 1 for RACH/SCH/FCCH
	// slots).
	BurstsPerBlock int
	// Downlink/Uplink report which directions this mapping applies to; a
	// full-duplex dedicated channel sets both.
	Downlink bool
	Uplink   bool
}

// FrameMapping returns the frame offset, within the repeating multiframe,
// at which block blockIdx begins.
func (m ChannelMapping) FrameMapping(blockIdx int) int {
	return m.BlockFrames[blockIdx%len(m.BlockFrames)]
}

// NumBlocks is the number of distinct block positions one multiframe cycle
// carries for this channel.
func (m ChannelMapping) NumBlocks() int {
	return len(m.BlockFrames)
}

// SDCCH4 is SDCCH/4 combined with BCCH+CCCH on timeslot 0, 4-burst blocks
// at frames {0,2,4,6,8,10,...} depending on subchannel; sub selects one of
// the 4 subchannels, block positions per TS 05.02 Table 3 (simplified fixed
// schedule).
func SDCCH4(sub int) ChannelMapping {
	base := []int{0, 2, 4, 6, 8, 10, 12, 14}
	frames := make([]int, 0, 2)
	for i, f := range base {
		if i%4 == sub {
			frames = append(frames, f)
		}
	}
	return ChannelMapping{Name: "SDCCH/4", RepeatLength: 51, BlockFrames: frames, BurstsPerBlock: 4, Downlink: true, Uplink: true}
}

// SDCCH8 is SDCCH/8 on a non-combined timeslot, 8 subchannels each with
// 4-burst blocks spread across the 51-multiframe.
func SDCCH8(sub int) ChannelMapping {
	frames := make([]int, 0, 4)
	for i := 0; i < 51; i++ {
		if i%51 != 25 && i%51 != 50 && i%4 == 0 && (i/4)%8 == sub {
			frames = append(frames, i)
		}
	}
	return ChannelMapping{Name: "SDCCH/8", RepeatLength: 51, BlockFrames: frames, BurstsPerBlock: 4, Downlink: true, Uplink: true}
}

// SACCHC4 is the slow associated control channel paired with SDCCH/4.
func SACCHC4(sub int) ChannelMapping {
	return ChannelMapping{Name: "SACCH/C4", RepeatLength: 102, BlockFrames: []int{sub * 4}, BurstsPerBlock: 4, Downlink: true, Uplink: true}
}

// SACCHC8 is the slow associated control channel paired with SDCCH/8.
func SACCHC8(sub int) ChannelMapping {
	return ChannelMapping{Name: "SACCH/C8", RepeatLength: 102, BlockFrames: []int{sub * 4}, BurstsPerBlock: 4, Downlink: true, Uplink: true}
}

// TCHFACCH is the full rate traffic channel with its associated FACCH,
// 8-burst diagonal blocks repeating every 26-multiframe (minus the idle and
// SACCH frames at positions 12 and 25).
func TCHFACCH() ChannelMapping {
	frames := make([]int, 0, 24)
	for i := 0; i < 26; i++ {
		if i != 12 && i != 25 {
			frames = append(frames, i)
		}
	}
	return ChannelMapping{Name: "TCH/FACCH", RepeatLength: 26, BlockFrames: frames, BurstsPerBlock: 8, Downlink: true, Uplink: true}
}

// BCCH is the broadcast control channel, one block per 51-multiframe at
// frame 2 on C0.
func BCCH() ChannelMapping {
	return ChannelMapping{Name: "BCCH", RepeatLength: 51, BlockFrames: []int{2}, BurstsPerBlock: 4, Downlink: true}
}

// CCCH is the common control channel (paging/AGCH), occupying the
// remaining reserved frames of the 51-multiframe on C0 not used by BCCH/SCH/FCCH.
func CCCH() ChannelMapping {
	frames := []int{6, 8, 10, 12, 14, 16, 18, 20, 22, 24}
	return ChannelMapping{Name: "CCCH", RepeatLength: 51, BlockFrames: frames, BurstsPerBlock: 4, Downlink: true}
}

// RACH is the random access channel, the uplink counterpart of CCCH.
func RACH() ChannelMapping {
	frames := []int{6, 8, 10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30, 32, 34, 36, 38, 40, 42, 44, 46, 48, 50}
	return ChannelMapping{Name: "RACH", RepeatLength: 51, BlockFrames: frames, BurstsPerBlock: 1, Uplink: true}
}

// SCH is the synchronization channel, one burst at frame 1 of each
// 51-multiframe on C0.
func SCH() ChannelMapping {
	return ChannelMapping{Name: "SCH", RepeatLength: 51, BlockFrames: []int{1}, BurstsPerBlock: 1, Downlink: true}
}

// FCCH is the frequency correction channel, one burst at frame 0.
func FCCH() ChannelMapping {
	return ChannelMapping{Name: "FCCH", RepeatLength: 51, BlockFrames: []int{0}, BurstsPerBlock: 1, Downlink: true}
}

// CBCH shares SDCCH/4 or SDCCH/8 subchannel 2's physical slots: it returns
// the underlying mapping renamed to CBCH. No (FN/51)%8==0 condition is
// applied to its block starts.
func CBCH(underlying ChannelMapping) ChannelMapping {
	m := underlying
	m.Name = "CBCH"
	return m
}
