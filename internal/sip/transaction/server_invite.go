// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package transaction

import (
	"sync"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
)

// serverInviteState tracks the minimal internal bookkeeping the MT-INVITE
// server transaction needs beyond the dialog's own coarse state.
type serverInviteState int

const (
	siProceeding serverInviteState = iota
	siCompleted                    // non-2xx final sent, waiting ACK
	siConfirmed                    // ACK received
	siTerminated
)

// ServerInvite is the MT-INVITE server transaction (spec.md §4.9.1).
type ServerInvite struct {
	mu sync.Mutex

	transport Transport
	timers    Timers
	reliable  bool

	peerHost string
	peerPort int

	request      *message.Message
	lastResponse *message.Message

	state serverInviteState

	timerG         *time.Timer
	timerH         *time.Timer
	timerJ         *time.Timer
	intervalG      time.Duration

	onACK    func()
	onCancel func()
}

// NewServerInvite builds a server transaction for an inbound INVITE.
func NewServerInvite(transport Transport, timers Timers, reliable bool, request *message.Message, peerHost string, peerPort int, onACK func(), onCancel func()) *ServerInvite {
	return &ServerInvite{
		transport: transport,
		timers:    timers,
		reliable:  reliable,
		peerHost:  peerHost,
		peerPort:  peerPort,
		request:   request,
		onACK:     onACK,
		onCancel:  onCancel,
	}
}

// SendTrying sends the initial 100 Trying (spec.md §4.9.1 "On first
// INVITE").
func (t *ServerInvite) SendTrying() error {
	resp := t.buildResponse(100, "Trying")
	return t.send(resp)
}

// SendRinging sends 180 Ringing on L3's MTCSendRinging call.
func (t *ServerInvite) SendRinging() error {
	resp := t.buildResponse(180, "Ringing")
	return t.send(resp)
}

// SendOK sends the 200 OK with the given SDP body and Contact, on L3's
// MTCSendOK call. On unreliable transport, arms timers G and H.
func (t *ServerInvite) SendOK(sdpBody []byte, contact string) error {
	resp := t.buildResponse(200, "OK")
	resp.ContentType = "application/sdp"
	resp.Body = sdpBody
	resp.Contact = []message.NameAddr{{URI: contact}}

	t.mu.Lock()
	if err := t.transport.SendMessage(resp, t.peerHost, t.peerPort); err != nil {
		t.mu.Unlock()
		return err
	}
	t.lastResponse = resp
	if !t.reliable {
		t.intervalG = t.timers.T1
		t.timerG = time.AfterFunc(t.intervalG, t.retransmitG)
		t.timerH = time.AfterFunc(t.timers.TimerH(), t.expireH)
	}
	t.mu.Unlock()
	return nil
}

// SendFailure sends a non-2xx final response (486 busy, 500, etc.) and
// arms G/H identically to a 2xx, per the common non-2xx retransmit rule.
func (t *ServerInvite) SendFailure(code int, reason string) error {
	resp := t.buildResponse(code, reason)
	return t.send(resp)
}

func (t *ServerInvite) send(resp *message.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transport.SendMessage(resp, t.peerHost, t.peerPort); err != nil {
		return err
	}
	t.lastResponse = resp
	if resp.StatusCode >= 200 && !t.reliable {
		t.intervalG = t.timers.T1
		t.timerG = time.AfterFunc(t.intervalG, t.retransmitG)
		t.timerH = time.AfterFunc(t.timers.TimerH(), t.expireH)
	}
	return nil
}

func (t *ServerInvite) retransmitG() {
	t.mu.Lock()
	if t.state != siProceeding || t.lastResponse == nil {
		t.mu.Unlock()
		return
	}
	_ = t.transport.SendMessage(t.lastResponse, t.peerHost, t.peerPort)
	t.intervalG = nextRetransmitInterval(t.intervalG, t.timers.T2)
	t.timerG = time.AfterFunc(t.intervalG, t.retransmitG)
	t.mu.Unlock()
}

func (t *ServerInvite) expireH() {
	t.mu.Lock()
	t.state = siTerminated
	t.mu.Unlock()
}

// HandleACK stops G/H and transitions to Confirmed (spec.md §4.9.1: "On
// matching ACK within Proceeding/Connecting -> Active; stop G,H").
func (t *ServerInvite) HandleACK() {
	t.mu.Lock()
	if t.timerG != nil {
		t.timerG.Stop()
	}
	if t.timerH != nil {
		t.timerH.Stop()
	}
	t.state = siConfirmed
	cb := t.onACK
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// HandleCancel sends 487 via this transaction and arms the J soak timer,
// per spec.md §4.9.1. The caller is still responsible for replying 200 OK
// to the CANCEL request itself.
func (t *ServerInvite) HandleCancel() error {
	if err := t.SendFailure(487, "Request Terminated"); err != nil {
		return err
	}
	t.mu.Lock()
	j := t.timers.TimerJ(t.reliable)
	if j > 0 {
		t.timerJ = time.AfterFunc(j, t.expireJ)
	} else {
		t.state = siTerminated
	}
	cb := t.onCancel
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (t *ServerInvite) expireJ() {
	t.mu.Lock()
	t.state = siTerminated
	t.mu.Unlock()
}

// HandleDuplicateInvite retransmits the most recent response sent,
// covering retransmitted INVITEs (spec.md §4.9.1).
func (t *ServerInvite) HandleDuplicateInvite() error {
	t.mu.Lock()
	resp := t.lastResponse
	t.mu.Unlock()
	if resp == nil {
		return nil
	}
	return t.transport.SendMessage(resp, t.peerHost, t.peerPort)
}

func (t *ServerInvite) buildResponse(code int, reason string) *message.Message {
	return &message.Message{
		IsResponse: true,
		StatusCode: code,
		Reason:     reason,
		Version:    "SIP/2.0",
		Via:        t.request.Via,
		To:         t.request.To,
		From:       t.request.From,
		CallID:     t.request.CallID,
		CSeq:       t.request.CSeq,
	}
}
