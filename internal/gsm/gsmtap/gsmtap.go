// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package gsmtap implements the GSMTAP debug tap (§6 "GSMTAP"): every
// burst and L2/SIP message of interest is wrapped in a GSMTAP header and
// sent as a UDP datagram to a configured sink, for capture in Wireshark.
package gsmtap

import (
	"encoding/binary"
	"net"

	"github.com/gobts/gobts/internal/config"
)

// GSMTAP header field values for the channel types GoBTS taps.
const (
	TypeUM        = 0x01
	ChanBCCH      = 0x01
	ChanSDCCH4    = 0x07
	ChanSDCCH8    = 0x08
	ChanTCHF      = 0x02
	ChanRACH      = 0x03
	ChanSACCH     = 0x04
	ChanSIP       = 0x0f // GoBTS extension: SIP message tap reuses GSMTAP framing
)

// Direction tags whether a tapped frame was transmitted or received,
// carried in the ARFCN field's top bit per the wire format.
type Direction int

const (
	Downlink Direction = iota
	Uplink
)

// Tap sends GSMTAP-wrapped frames to a UDP sink. A nil Tap, or one
// constructed with Enabled=false, drops every Send call.
type Tap struct {
	conn    *net.UDPConn
	enabled bool
}

// New resolves and connects to the configured GSMTAP host on UDP port
// 4729 (the IANA-registered GSMTAP port); if the configuration disables
// GSMTAP, Send becomes a no-op.
func New(cfg config.GSMTAP) (*Tap, error) {
	if !cfg.Enabled {
		return &Tap{enabled: false}, nil
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.Host, "4729"))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	return &Tap{conn: conn, enabled: true}, nil
}

// Send wraps payload in a GSMTAP header naming the channel type, ARFCN,
// timeslot, frame number and direction, and writes it to the sink.
func (t *Tap) Send(arfcn uint16, chanType byte, tn byte, fn uint32, dir Direction, payload []byte) error {
	if t == nil || !t.enabled {
		return nil
	}
	hdr := make([]byte, 16)
	hdr[0] = 2 // version
	hdr[1] = 4 // header length in 32-bit words
	hdr[2] = TypeUM
	hdr[3] = 0
	a := arfcn
	if dir == Uplink {
		a |= 0x8000
	}
	binary.BigEndian.PutUint16(hdr[4:6], a)
	hdr[6] = 0 // signal level, unknown
	hdr[7] = 0 // snr, unknown
	binary.BigEndian.PutUint32(hdr[8:12], fn)
	hdr[12] = chanType
	hdr[13] = 0 // antenna number
	hdr[14] = tn
	hdr[15] = 0

	buf := append(hdr, payload...)
	_, err := t.conn.Write(buf)
	return err
}

// Close releases the underlying UDP socket, if any.
func (t *Tap) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
