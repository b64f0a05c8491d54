// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrNoARFCNs indicates that no ARFCNs were configured for the radio.
	ErrNoARFCNs = errors.New("at least one ARFCN must be configured")
	// ErrInvalidBSIC indicates the BSIC is out of the 0..63 range.
	ErrInvalidBSIC = errors.New("BSIC must be in the range 0..63")
	// ErrInvalidMSPowerRange indicates MS.Power.Min is not below MS.Power.Max.
	ErrInvalidMSPowerRange = errors.New("MS power min must be less than max")
	// ErrInvalidMSTAMax indicates MS.TA.Max is outside 0..63.
	ErrInvalidMSTAMax = errors.New("MS TA max must be in the range 0..63")
	// ErrInvalidCipherAlgorithm indicates an unsupported cipher algorithm id.
	ErrInvalidCipherAlgorithm = errors.New("unsupported cipher algorithm")
	// ErrInvalidSIPLocalPort indicates SIP.Local.Port is not a valid UDP port.
	ErrInvalidSIPLocalPort = errors.New("invalid SIP local port provided")
	// ErrInvalidSIPTimers indicates a non-positive SIP retransmit timer.
	ErrInvalidSIPTimers = errors.New("SIP timers E and F must be positive")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics server bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidPProfBindAddress indicates that the provided PProf server bind address is not valid.
	ErrInvalidPProfBindAddress = errors.New("invalid PProf server bind address provided")
	// ErrInvalidPProfPort indicates that the provided PProf server port is not valid.
	ErrInvalidPProfPort = errors.New("invalid PProf server port provided")
)

// Validate validates the Radio configuration.
func (r Radio) Validate() error {
	if len(r.ARFCNs) == 0 {
		return ErrNoARFCNs
	}
	if r.BSIC < 0 || r.BSIC > 63 {
		return ErrInvalidBSIC
	}
	return nil
}

// Validate validates the MSPower configuration.
func (m MSPower) Validate() error {
	if m.Min >= m.Max {
		return ErrInvalidMSPowerRange
	}
	return nil
}

// Validate validates the MSTA configuration.
func (m MSTA) Validate() error {
	if m.Max < 0 || m.Max > 63 {
		return ErrInvalidMSTAMax
	}
	return nil
}

// Validate validates the Cipher configuration.
func (c Cipher) Validate() error {
	if c.Algorithm != CipherAlgorithmA51 && c.Algorithm != CipherAlgorithmA53 {
		return ErrInvalidCipherAlgorithm
	}
	return nil
}

// Validate validates the SIP configuration.
func (s SIP) Validate() error {
	if s.LocalPort <= 0 || s.LocalPort > 65535 {
		return ErrInvalidSIPLocalPort
	}
	if s.TimerE <= 0 || s.TimerF <= 0 {
		return ErrInvalidSIPTimers
	}
	return nil
}

// Validate validates the Metrics configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate validates the PProf configuration.
func (p PProf) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Bind == "" {
		return ErrInvalidPProfBindAddress
	}
	if p.Port <= 0 || p.Port > 65535 {
		return ErrInvalidPProfPort
	}
	return nil
}

// Validate validates the whole Config, delegating to each section.
func (c Config) Validate() error {
	if c.LogLevel != LogLevelDebug &&
		c.LogLevel != LogLevelInfo &&
		c.LogLevel != LogLevelWarn &&
		c.LogLevel != LogLevelError {
		return ErrInvalidLogLevel
	}

	if err := c.Radio.Validate(); err != nil {
		return err
	}
	if err := c.MSPower.Validate(); err != nil {
		return err
	}
	if err := c.MSTA.Validate(); err != nil {
		return err
	}
	if err := c.Cipher.Validate(); err != nil {
		return err
	}
	if err := c.SIP.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}

	return nil
}
