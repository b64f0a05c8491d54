// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package config holds the process-wide configuration surface named in
// spec.md §6, loaded once at startup via configulator.
package config

import "time"

// Radio carries the physical-layer configuration keys under GSM.Radio.*.
type Radio struct {
	ARFCNs            []int   `yaml:"arfcns"`
	Band              string  `yaml:"band"`
	BSIC              int     `yaml:"bsic"`
	LAI               string  `yaml:"lai"`
	RSSITarget        float64 `yaml:"rssi_target"`
	RSSIAveragePeriod int     `yaml:"rssi_average_period"`
	SNRTarget         float64 `yaml:"snr_target"`
	SNRAveragePeriod  int     `yaml:"snr_average_period"`
}

// MSPower carries GSM.MS.Power.*.
type MSPower struct {
	Min     int     `yaml:"min"`
	Max     int     `yaml:"max"`
	Damping float64 `yaml:"damping"`
}

// MSTA carries GSM.MS.TA.*.
type MSTA struct {
	Max     int     `yaml:"max"`
	Damping float64 `yaml:"damping"`
}

// Cipher carries GSM.Cipher.*.
type Cipher struct {
	CCHBER         float64         `yaml:"cch_ber"`
	ScrambleFiller bool            `yaml:"scramble_filler"`
	Algorithm      CipherAlgorithm `yaml:"algorithm"`
}

// SACCHTimeout carries Control.SACCHTimeout.*.
type SACCHTimeout struct {
	BumpDown float64 `yaml:"bump_down"`
}

// GSMTimer carries GSM.Timer.* handover-correlator timers.
type GSMTimer struct {
	T3103 time.Duration `yaml:"t3103"`
	T3109 time.Duration `yaml:"t3109"`
	T3111 time.Duration `yaml:"t3111"`
}

// SIP carries SIP.* keys.
type SIP struct {
	LocalIP            string        `yaml:"local_ip"`
	LocalPort          int           `yaml:"local_port"`
	ProxySpeech        string        `yaml:"proxy_speech"`
	ProxySMS           string        `yaml:"proxy_sms"`
	ProxyRegistration  string        `yaml:"proxy_registration"`
	ProxyUSSD          string        `yaml:"proxy_ussd"`
	RegistrationPeriod time.Duration `yaml:"registration_period"`
	TimerE             time.Duration `yaml:"timer_e"`
	TimerF             time.Duration `yaml:"timer_f"`
	DTMFRFC2833        bool          `yaml:"dtmf_rfc2833"`
	DTMFPayloadType    int           `yaml:"dtmf_payload_type"`
	Realm              string        `yaml:"realm"`
}

// Test carries Test.* knobs used by unit tests and bench harnesses.
type Test struct {
	SimulatedFERUplink     float64 `yaml:"simulated_fer_uplink"`
	SimulatedFERDownlink   float64 `yaml:"simulated_fer_downlink"`
	UplinkFuzzingRate      float64 `yaml:"uplink_fuzzing_rate"`
	SIPSimulatedPacketLoss float64 `yaml:"sip_simulated_packet_loss"`
}

// GSMTAP carries the debug-tap toggle.
type GSMTAP struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
}

// Metrics carries the Prometheus listener configuration.
type Metrics struct {
	Enabled      bool   `yaml:"enabled"`
	Bind         string `yaml:"bind"`
	Port         int    `yaml:"port"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// PProf carries the pprof listener configuration.
type PProf struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

// Config is the top-level, validated configuration for a GoBTS process.
type Config struct {
	LogLevel     LogLevel     `yaml:"log_level"`
	Radio        Radio        `yaml:"radio"`
	MSPower      MSPower      `yaml:"ms_power"`
	MSTA         MSTA         `yaml:"ms_ta"`
	Cipher       Cipher       `yaml:"cipher"`
	SACCHTimeout SACCHTimeout `yaml:"sacch_timeout"`
	Timer        GSMTimer     `yaml:"timer"`
	SIP          SIP          `yaml:"sip"`
	Test         Test         `yaml:"test"`
	GSMTAP       GSMTAP       `yaml:"gsmtap"`
	Metrics      Metrics      `yaml:"metrics"`
	PProf        PProf        `yaml:"pprof"`
	Debug        bool         `yaml:"debug"`
}

// Default returns a Config populated with the same conservative defaults the
// reference implementation ships, suitable as a configulator base before
// environment/file overrides are applied.
func Default() Config {
	return Config{
		LogLevel: LogLevelInfo,
		Radio: Radio{
			ARFCNs:            []int{51},
			Band:              "GSM900",
			BSIC:              7,
			RSSITarget:        -50,
			RSSIAveragePeriod: 20,
			SNRAveragePeriod:  0,
		},
		MSPower: MSPower{Min: 5, Max: 33, Damping: 0.5},
		MSTA:    MSTA{Max: 63, Damping: 0.5},
		Cipher:  Cipher{CCHBER: 0, ScrambleFiller: false, Algorithm: CipherAlgorithmA51},
		SACCHTimeout: SACCHTimeout{
			BumpDown: 10,
		},
		Timer: GSMTimer{
			T3103: 5 * time.Second,
			T3109: 30 * time.Second,
			T3111: 2 * time.Second,
		},
		SIP: SIP{
			LocalIP:            "127.0.0.1",
			LocalPort:          5062,
			RegistrationPeriod: 60 * time.Second,
			TimerE:             500 * time.Millisecond,
			TimerF:             32 * time.Second,
			DTMFRFC2833:        true,
			DTMFPayloadType:    101,
			Realm:              "gobts",
		},
		Metrics: Metrics{Enabled: true, Bind: "127.0.0.1", Port: 9090},
		PProf:   PProf{Enabled: false, Bind: "127.0.0.1", Port: 6060},
	}
}
