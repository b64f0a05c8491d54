// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package l1

import "github.com/gobts/gobts/internal/config"

// MSPhysReportInfo holds the physical-layer measurements decoded from a
// SACCH uplink header (§4.7).
type MSPhysReportInfo struct {
	OrderedMSPower   int
	OrderedTimingAdv int
	RSSI             float64
	TimingError      float64
	SNR              float64
}

const cAveragePeriodTiming = 8

// SACCHLoop is the physical-layer closed loop that averages uplink
// measurements and computes damped downlink power/timing-advance orders,
// per §4.7.
type SACCHLoop struct {
	cfgPower config.MSPower
	cfgTA    config.MSTA
	cfgRadio config.Radio
	bumpDown float64

	reportCount int
	rssi        float64
	timingError float64
	lastSNR     float64
	aveSNR      float64

	orderP  float64
	orderTA float64

	badFrames int
}

// NewSACCHLoop builds a loop from the relevant configuration sections,
// with the power order starting at MSPower.Max and the TA order at 0.
func NewSACCHLoop(radio config.Radio, power config.MSPower, ta config.MSTA, bumpDown float64) *SACCHLoop {
	return &SACCHLoop{
		cfgPower: power,
		cfgTA:    ta,
		cfgRadio: radio,
		bumpDown: bumpDown,
		orderP:   float64(power.Max),
		orderTA:  0,
	}
}

// UpdateMeasurement folds in one good uplink SACCH burst's measurements
// using the exponential-average rules of §4.7.
func (s *SACCHLoop) UpdateMeasurement(rssi, timingErr, snr float64) {
	n := s.reportCount
	if n > s.cfgRadio.RSSIAveragePeriod {
		n = s.cfgRadio.RSSIAveragePeriod
	}
	s.rssi = (rssi + float64(n)*s.rssi) / float64(n+1)

	nt := s.reportCount
	if nt > cAveragePeriodTiming {
		nt = cAveragePeriodTiming
	}
	s.timingError = (timingErr + float64(nt)*s.timingError) / float64(nt+1)

	s.lastSNR = snr
	if s.cfgRadio.SNRAveragePeriod > 0 {
		ns := s.reportCount
		if ns > s.cfgRadio.SNRAveragePeriod {
			ns = s.cfgRadio.SNRAveragePeriod
		}
		s.aveSNR = (snr + float64(ns)*s.aveSNR) / float64(ns+1)
	}
	s.reportCount++
}

// CountBadFrame records a lost uplink SACCH burst, biasing RSSI downward
// so the controller orders more MS power on the next computation.
func (s *SACCHLoop) CountBadFrame() {
	s.badFrames++
	s.rssi -= s.bumpDown
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ComputeOrders runs the damped power/TA controller and returns the next
// downlink physical header (power, TA) to transmit.
func (s *SACCHLoop) ComputeOrders(actualMSPower int) (power, ta int) {
	deltaP := s.rssi - s.cfgRadio.RSSITarget
	targetP := float64(actualMSPower) - deltaP
	damping := s.cfgPower.Damping
	if deltaP > 0 {
		// Downward steps (less power) are damped more heavily than
		// upward steps, to favor not losing the call.
		damping = damping + (1-damping)*0.5
	}
	s.orderP = damping*s.orderP + (1-damping)*targetP
	s.orderP = clampFloat(s.orderP, float64(s.cfgPower.Min), float64(s.cfgPower.Max))

	targetTA := s.timingError
	s.orderTA = s.cfgTA.Damping*s.orderTA + (1-s.cfgTA.Damping)*targetTA
	s.orderTA = clampFloat(s.orderTA, 0, float64(s.cfgTA.Max))

	return clampInt(int(s.orderP+0.5), s.cfgPower.Min, s.cfgPower.Max),
		clampInt(int(s.orderTA+0.5), 0, s.cfgTA.Max)
}

// PackPhysHeader builds the 16-bit SACCH physical header (power(8)|TA(8))
// placed at the start of the downlink u-vector.
func PackPhysHeader(power, ta int) [2]byte {
	return [2]byte{byte(power), byte(ta)}
}

// UnpackPhysHeader extracts the ordered MS power (5-bit field at offset 3)
// and timing advance (7-bit field at offset 9) from a raw 16-bit uplink
// SACCH physical header.
func UnpackPhysHeader(header [2]byte) MSPhysReportInfo {
	bits := uint16(header[0])<<8 | uint16(header[1])
	power := int((bits >> (16 - 3 - 5)) & 0x1f)
	ta := int((bits >> (16 - 9 - 7)) & 0x7f)
	return MSPhysReportInfo{OrderedMSPower: power, OrderedTimingAdv: ta}
}
