// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus instruments the GSM L1 and SIP stacks
// update as they run (§2 "Serves Prometheus metrics").
type Metrics struct {
	// L1 FEC metrics
	FramesDecodedTotal   *prometheus.CounterVec
	FramesBadTotal       *prometheus.CounterVec
	FrameErrorRate       *prometheus.GaugeVec
	BitErrorRate         *prometheus.GaugeVec
	BadFrameTrackerLevel *prometheus.GaugeVec

	// SACCH physical loop metrics
	SACCHRSSI        *prometheus.GaugeVec
	SACCHTimingError *prometheus.GaugeVec
	SACCHPowerOrder  *prometheus.GaugeVec
	SACCHTAOrder     *prometheus.GaugeVec

	// SIP dialog/transaction metrics
	DialogsActive          prometheus.Gauge
	DialogsTotal           *prometheus.CounterVec
	DialogStateTransitions *prometheus.CounterVec
	TransactionRetransmits *prometheus.CounterVec
	TransactionTimeouts    *prometheus.CounterVec

	// RTP metrics
	RTPFramesSentTotal *prometheus.CounterVec
	RTPFramesRecvTotal *prometheus.CounterVec
}

// NewMetrics builds and registers every instrument against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FramesDecodedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_l1_frames_decoded_total",
			Help: "Total number of L1 blocks decoded, by channel and result",
		}, []string{"channel", "result"}),
		FramesBadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_l1_frames_bad_total",
			Help: "Total number of L1 blocks that failed parity, by channel",
		}, []string{"channel"}),
		FrameErrorRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_l1_fer",
			Help: "Exponential moving average frame error rate, by channel",
		}, []string{"channel"}),
		BitErrorRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_l1_ber",
			Help: "Exponential moving average bit error rate, by channel",
		}, []string{"channel"}),
		BadFrameTrackerLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_l1_bad_frame_tracker",
			Help: "Radio-link-failure escalation counter, by channel",
		}, []string{"channel"}),
		SACCHRSSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_sacch_rssi_dbm",
			Help: "Averaged uplink RSSI measured on the SACCH loop, by channel",
		}, []string{"channel"}),
		SACCHTimingError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_sacch_timing_error",
			Help: "Averaged uplink timing error measured on the SACCH loop, by channel",
		}, []string{"channel"}),
		SACCHPowerOrder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_sacch_power_order",
			Help: "Last MS power order issued by the SACCH loop, by channel",
		}, []string{"channel"}),
		SACCHTAOrder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobts_sacch_ta_order",
			Help: "Last timing-advance order issued by the SACCH loop, by channel",
		}, []string{"channel"}),
		DialogsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gobts_sip_dialogs_active",
			Help: "Number of SIP dialogs currently tracked",
		}),
		DialogsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_sip_dialogs_total",
			Help: "Total SIP dialogs created, by dialog type",
		}, []string{"type"}),
		DialogStateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_sip_dialog_transitions_total",
			Help: "Total coarse dialog state transitions, by resulting state",
		}, []string{"state"}),
		TransactionRetransmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_sip_transaction_retransmits_total",
			Help: "Total request/response retransmissions, by transaction kind",
		}, []string{"kind"}),
		TransactionTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_sip_transaction_timeouts_total",
			Help: "Total transaction timer expiries that produced SSFail, by timer",
		}, []string{"timer"}),
		RTPFramesSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_rtp_frames_sent_total",
			Help: "Total RTP audio frames sent, by payload type",
		}, []string{"payload_type"}),
		RTPFramesRecvTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gobts_rtp_frames_received_total",
			Help: "Total RTP audio frames received, by payload type",
		}, []string{"payload_type"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.FramesDecodedTotal,
		m.FramesBadTotal,
		m.FrameErrorRate,
		m.BitErrorRate,
		m.BadFrameTrackerLevel,
		m.SACCHRSSI,
		m.SACCHTimingError,
		m.SACCHPowerOrder,
		m.SACCHTAOrder,
		m.DialogsActive,
		m.DialogsTotal,
		m.DialogStateTransitions,
		m.TransactionRetransmits,
		m.TransactionTimeouts,
		m.RTPFramesSentTotal,
		m.RTPFramesRecvTotal,
	)
}

// RecordDecode updates the per-channel decode counters and EMA gauges
// after one L1 block has been processed.
func (m *Metrics) RecordDecode(channel string, good bool, fer, ber float64, badFrameTracker int) {
	result := "good"
	if !good {
		result = "bad"
		m.FramesBadTotal.WithLabelValues(channel).Inc()
	}
	m.FramesDecodedTotal.WithLabelValues(channel, result).Inc()
	m.FrameErrorRate.WithLabelValues(channel).Set(fer)
	m.BitErrorRate.WithLabelValues(channel).Set(ber)
	m.BadFrameTrackerLevel.WithLabelValues(channel).Set(float64(badFrameTracker))
}

// RecordSACCH updates the physical closed-loop gauges for one channel.
func (m *Metrics) RecordSACCH(channel string, rssi, timingError float64, powerOrder, taOrder int) {
	m.SACCHRSSI.WithLabelValues(channel).Set(rssi)
	m.SACCHTimingError.WithLabelValues(channel).Set(timingError)
	m.SACCHPowerOrder.WithLabelValues(channel).Set(float64(powerOrder))
	m.SACCHTAOrder.WithLabelValues(channel).Set(float64(taOrder))
}

// RecordDialogCreated increments the dialogs-total and active counters for
// a newly created dialog of the given type.
func (m *Metrics) RecordDialogCreated(dialogType string) {
	m.DialogsTotal.WithLabelValues(dialogType).Inc()
	m.DialogsActive.Inc()
}

// RecordDialogDestroyed decrements the active-dialog gauge.
func (m *Metrics) RecordDialogDestroyed() {
	m.DialogsActive.Dec()
}

// RecordDialogTransition records a coarse dialog-state transition.
func (m *Metrics) RecordDialogTransition(state string) {
	m.DialogStateTransitions.WithLabelValues(state).Inc()
}

// RecordRetransmit records one transaction retransmission.
func (m *Metrics) RecordRetransmit(kind string) {
	m.TransactionRetransmits.WithLabelValues(kind).Inc()
}

// RecordTimeout records one timer expiry that produced SSFail.
func (m *Metrics) RecordTimeout(timer string) {
	m.TransactionTimeouts.WithLabelValues(timer).Inc()
}

// RecordRTPFrameSent increments the sent-frame counter for a payload type.
func (m *Metrics) RecordRTPFrameSent(payloadType string) {
	m.RTPFramesSentTotal.WithLabelValues(payloadType).Inc()
}

// RecordRTPFrameReceived increments the received-frame counter for a
// payload type.
func (m *Metrics) RecordRTPFrameReceived(payloadType string) {
	m.RTPFramesRecvTotal.WithLabelValues(payloadType).Inc()
}
