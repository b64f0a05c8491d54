// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package sdp builds and parses the SDP offer/answer bodies carried in
// INVITE/200 OK exchanges (spec.md §6 "SDP"), over github.com/pion/sdp/v3
// rather than hand-rolled text formatting.
package sdp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	pionsdp "github.com/pion/sdp/v3"
)

// Codec names one negotiable audio payload.
type Codec struct {
	PayloadType int
	Name        string // "GSM", "AMR", "telephone-event"
	ClockRate   int
	Params      string // optional a=fmtp parameters, e.g. AMR mode-set
}

// GSMCodec is the default full-rate GSM 06.10 codec, RTP payload type 3.
var GSMCodec = Codec{PayloadType: 3, Name: "GSM", ClockRate: 8000}

// AMRCodec is the dynamic-payload-type AMR codec used when negotiated.
var AMRCodec = Codec{PayloadType: 96, Name: "AMR", ClockRate: 8000}

// TelephoneEventCodec is the RFC-2833 DTMF event payload, dynamic PT 101
// by convention (overridable via Config.SIP.DTMFPayloadType).
var TelephoneEventCodec = Codec{PayloadType: 101, Name: "telephone-event", ClockRate: 8000}

func randSessionID() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:]) & 0x7fffffffffffffff
}

// BuildOffer constructs an SDP offer naming host:port and the given codec
// set, per spec.md §6's literal line templates.
func BuildOffer(host string, port int, codecs []Codec, version uint64) *pionsdp.SessionDescription {
	formats := make([]string, len(codecs))
	attrs := make([]pionsdp.Attribute, 0, len(codecs))
	for i, c := range codecs {
		formats[i] = strconv.Itoa(c.PayloadType)
		attrs = append(attrs, pionsdp.Attribute{
			Key:   "rtpmap",
			Value: fmt.Sprintf("%d %s/%d", c.PayloadType, c.Name, c.ClockRate),
		})
		if c.Params != "" {
			attrs = append(attrs, pionsdp.Attribute{
				Key:   "fmtp",
				Value: fmt.Sprintf("%d %s", c.PayloadType, c.Params),
			})
		}
	}

	return &pionsdp.SessionDescription{
		Version: 0,
		Origin: pionsdp.Origin{
			Username:       "gobts",
			SessionID:      randSessionID(),
			SessionVersion: version,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: host,
		},
		SessionName: "Talk Time",
		TimeDescriptions: []pionsdp.TimeDescription{
			{Timing: pionsdp.Timing{StartTime: 0, StopTime: 0}},
		},
		ConnectionInformation: &pionsdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &pionsdp.Address{Address: host},
		},
		MediaDescriptions: []*pionsdp.MediaDescription{
			{
				MediaName: pionsdp.MediaName{
					Media:   "audio",
					Port:    pionsdp.RangedPort{Value: port},
					Protos:  []string{"RTP", "AVP"},
					Formats: formats,
				},
				Attributes: attrs,
			},
		},
	}
}

// BuildAnswer constructs a single-codec SDP answer, per spec.md §6
// "answer returns exactly one codec".
func BuildAnswer(host string, port int, chosen Codec, version uint64) *pionsdp.SessionDescription {
	return BuildOffer(host, port, []Codec{chosen}, version)
}

// Parse decodes a raw SDP body.
func Parse(body []byte) (*pionsdp.SessionDescription, error) {
	sd := &pionsdp.SessionDescription{}
	if err := sd.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("sdp: parse failed: %w", err)
	}
	return sd, nil
}

// Marshal renders a SessionDescription back to its wire form.
func Marshal(sd *pionsdp.SessionDescription) ([]byte, error) {
	return sd.Marshal()
}

// RemoteMedia extracts the peer's audio host/port and negotiated payload
// types from a parsed offer or answer.
func RemoteMedia(sd *pionsdp.SessionDescription) (host string, port int, payloadTypes []int, err error) {
	if sd.ConnectionInformation == nil || sd.ConnectionInformation.Address == nil {
		return "", 0, nil, fmt.Errorf("sdp: missing connection information")
	}
	host = sd.ConnectionInformation.Address.Address

	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		port = md.MediaName.Port.Value
		for _, f := range md.MediaName.Formats {
			pt, convErr := strconv.Atoi(f)
			if convErr == nil {
				payloadTypes = append(payloadTypes, pt)
			}
		}
		return host, port, payloadTypes, nil
	}
	return "", 0, nil, fmt.Errorf("sdp: no audio media description")
}

// HandoverReferBody builds the SDP body carried in a REFER for inbound
// handover: the remote RTP port so the target BTS learns it, with the
// o= version bumped to the given Unix time (spec.md §7 supplemental
// feature, grounded on original_source/SIP/SIPDialog.cpp's
// SIPHandoverRequest).
func HandoverReferBody(host string, port int, codec Codec, unixTime uint64) ([]byte, error) {
	sd := BuildAnswer(host, port, codec, unixTime)
	return Marshal(sd)
}

// FindAttribute returns the value of the first media attribute with the
// given key, and whether it was present.
func FindAttribute(md *pionsdp.MediaDescription, key string) (string, bool) {
	for _, a := range md.Attributes {
		if strings.EqualFold(a.Key, key) {
			return a.Value, true
		}
	}
	return "", false
}
