// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package sapmux implements the SAP multiplexer sitting between L1 and
// LAPDm (§4.11): downlink is transparent, uplink is routed by primitive
// and SAPI.
package sapmux

import (
	"errors"

	"github.com/gobts/gobts/internal/gsm/l2"
)

// ErrUplinkProgrammingError is returned when RELEASE/UNIT_DATA/HARDRELEASE
// arrives from the uplink direction, which should never happen.
var ErrUplinkProgrammingError = errors.New("sapmux: RELEASE/UNIT_DATA/HARDRELEASE is not valid uplink")

// UpperSAP receives frames dispatched by the multiplexer.
type UpperSAP interface {
	Deliver(l2.Frame)
}

// Mux is the SAP multiplexer for one logical channel: one L1 below, up to
// two LAPDm SAPs above (SAPI 0 and SAPI 3).
type Mux struct {
	L1    UpperSAP // the single attached L1, used for the downlink path
	SAPs  map[int]UpperSAP
}

// NewMux builds an empty multiplexer.
func NewMux() *Mux {
	return &Mux{SAPs: make(map[int]UpperSAP)}
}

// AttachSAP registers an upper SAP for the given SAPI (0 or 3).
func (m *Mux) AttachSAP(sapi int, sap UpperSAP) {
	m.SAPs[sapi] = sap
}

// Downlink forwards a single L2 frame transparently to the attached L1.
func (m *Mux) Downlink(f l2.Frame) {
	if m.L1 != nil {
		m.L1.Deliver(f)
	}
}

// Uplink routes an incoming frame from L1 according to its primitive, per
// §4.11's dispatch rules.
func (m *Mux) Uplink(f l2.Frame) error {
	switch f.Primitive {
	case l2.PrimitiveData:
		if sap, ok := m.SAPs[f.SAPI]; ok {
			sap.Deliver(f)
		}
	case l2.PrimitiveHandoverAccess:
		if sap, ok := m.SAPs[0]; ok {
			sap.Deliver(f)
		}
	case l2.PrimitiveEstablish, l2.PrimitiveError:
		for _, sap := range m.SAPs {
			sap.Deliver(f)
		}
	case l2.PrimitiveRelease, l2.PrimitiveUnitData, l2.PrimitiveHardRelease:
		return ErrUplinkProgrammingError
	}
	return nil
}
