// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package config_test

import (
	"errors"
	"testing"

	"github.com/gobts/gobts/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyARFCNs(t *testing.T) {
	cfg := config.Default()
	cfg.Radio.ARFCNs = nil
	assert.True(t, errors.Is(cfg.Validate(), config.ErrNoARFCNs))
}

func TestValidateRejectsBadBSIC(t *testing.T) {
	cfg := config.Default()
	cfg.Radio.BSIC = 64
	assert.True(t, errors.Is(cfg.Validate(), config.ErrInvalidBSIC))
}

func TestValidateRejectsInvertedPowerRange(t *testing.T) {
	cfg := config.Default()
	cfg.MSPower.Min = 33
	cfg.MSPower.Max = 5
	assert.True(t, errors.Is(cfg.Validate(), config.ErrInvalidMSPowerRange))
}

func TestValidateRejectsBadSIPPort(t *testing.T) {
	cfg := config.Default()
	cfg.SIP.LocalPort = 70000
	assert.True(t, errors.Is(cfg.Validate(), config.ErrInvalidSIPLocalPort))
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "trace"
	assert.True(t, errors.Is(cfg.Validate(), config.ErrInvalidLogLevel))
}

func TestMetricsValidateSkippedWhenDisabled(t *testing.T) {
	m := config.Metrics{Enabled: false}
	assert.NoError(t, m.Validate())
}
