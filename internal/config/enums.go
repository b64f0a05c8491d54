// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	// LogLevelDebug is the debug logging level, providing detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the informational logging level, providing general information.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the warning logging level, indicating potential issues.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the error logging level, indicating serious issues.
	LogLevelError LogLevel = "error"
)

// CipherAlgorithm identifies the ciphering stream-cipher primitive.
//
// The primitive itself is treated as a black box per spec Non-goals; this
// only selects which one the decoder/encoder ask the KeyStream for.
type CipherAlgorithm int

const (
	// CipherAlgorithmA51 selects the A5/1 stream cipher.
	CipherAlgorithmA51 CipherAlgorithm = 1
	// CipherAlgorithmA53 selects the A5/3 stream cipher.
	CipherAlgorithmA53 CipherAlgorithm = 3
)
