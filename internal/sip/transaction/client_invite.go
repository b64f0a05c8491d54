// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package transaction

import (
	"sync"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
)

// ClientInviteResult is delivered once to the owning dialog when the
// MO-INVITE transaction reaches a final outcome.
type ClientInviteResult struct {
	Answered   bool // a 2xx was received; Response carries it
	Response   *message.Message
	FailCode   int  // the non-2xx status, or 408 on local timeout
	Busy       bool // 486/600/603
	GotRinging bool
}

// ClientInvite is the MO-INVITE client transaction (spec.md §4.9.2).
type ClientInvite struct {
	mu sync.Mutex

	transport Transport
	timers    Timers
	reliable  bool

	destHost string
	destPort int

	request *message.Message

	timerA *time.Timer
	timerB *time.Timer
	timerD *time.Timer

	intervalA  time.Duration
	gotRinging bool
	terminated bool

	onProceeding func()
	onFinal      func(ClientInviteResult)
}

// NewClientInvite builds a client transaction for an outbound INVITE. The
// caller must have already populated request's Via/CallID/CSeq.
func NewClientInvite(transport Transport, timers Timers, reliable bool, request *message.Message, destHost string, destPort int, onProceeding func(), onFinal func(ClientInviteResult)) *ClientInvite {
	return &ClientInvite{
		transport:    transport,
		timers:       timers,
		reliable:     reliable,
		destHost:     destHost,
		destPort:     destPort,
		request:      request,
		onProceeding: onProceeding,
		onFinal:      onFinal,
	}
}

// Start sends the INVITE and arms timers A (retransmit, unreliable only)
// and B (absolute dialog-killer).
func (t *ClientInvite) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transport.SendMessage(t.request, t.destHost, t.destPort); err != nil {
		return err
	}
	if !t.reliable {
		t.intervalA = t.timers.T1
		t.timerA = time.AfterFunc(t.intervalA, t.retransmit)
	}
	t.timerB = time.AfterFunc(t.timers.TimerB(), t.expireB)
	return nil
}

func (t *ClientInvite) retransmit() {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	_ = t.transport.SendMessage(t.request, t.destHost, t.destPort)
	t.intervalA = nextRetransmitInterval(t.intervalA, t.timers.T2)
	t.timerA = time.AfterFunc(t.intervalA, t.retransmit)
	t.mu.Unlock()
}

func (t *ClientInvite) expireB() {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	t.stopRetransmitLocked()
	t.terminated = true
	cb := t.onFinal
	t.mu.Unlock()
	if cb != nil {
		cb(ClientInviteResult{FailCode: 408})
	}
}

func (t *ClientInvite) stopRetransmitLocked() {
	if t.timerA != nil {
		t.timerA.Stop()
	}
	if t.timerB != nil {
		t.timerB.Stop()
	}
}

// HandleResponse processes an inbound response matched to this
// transaction by Key. Per RFC3261 §17.1.1, any provisional response
// halts retransmission; a final response terminates A/B and, for
// non-2xx, sends ACK and arms Timer D.
func (t *ClientInvite) HandleResponse(resp *message.Message) {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}

	if resp.StatusCode >= 100 && resp.StatusCode < 200 {
		if t.timerA != nil {
			t.timerA.Stop()
			t.timerA = nil
		}
		if resp.StatusCode == 180 {
			t.gotRinging = true
		}
		cb := t.onProceeding
		t.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}

	t.stopRetransmitLocked()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		t.terminated = true
		gotRinging := t.gotRinging
		cb := t.onFinal
		t.mu.Unlock()
		// ACK for 2xx is sent by the dialog/UAC layer (spec.md §4.9.2),
		// not here.
		if cb != nil {
			cb(ClientInviteResult{Answered: true, Response: resp, GotRinging: gotRinging})
		}
		return
	}

	// Non-2xx final: transaction layer sends ACK and arms Timer D.
	ack := buildACK(t.request, resp)
	_ = t.transport.SendMessage(ack, t.destHost, t.destPort)
	d := t.timers.TimerD(t.reliable)
	if d > 0 {
		t.timerD = time.AfterFunc(d, t.expireD)
	} else {
		t.terminated = true
	}
	busy := resp.StatusCode == 486 || resp.StatusCode == 600 || resp.StatusCode == 603
	cb := t.onFinal
	code := resp.StatusCode
	t.mu.Unlock()
	if cb != nil {
		cb(ClientInviteResult{FailCode: code, Busy: busy, Response: resp})
	}
}

func (t *ClientInvite) expireD() {
	t.mu.Lock()
	t.terminated = true
	t.mu.Unlock()
}

// buildACK constructs the ACK for a non-2xx final response per RFC3261
// §17.1.1.3: same top Via branch, Call-ID, From, Request-URI, CSeq number
// with method ACK, and To taken from the response (carrying its tag).
func buildACK(invite, resp *message.Message) *message.Message {
	ack := &message.Message{
		Method:      message.ACK,
		RequestURI:  invite.RequestURI,
		Version:     "SIP/2.0",
		Via:         []message.Via{invite.TopVia()},
		To:          resp.To,
		From:        invite.From,
		CallID:      invite.CallID,
		CSeq:        message.CSeq{Seq: invite.CSeq.Seq, Method: message.ACK},
		HasMaxFwd:   true,
		MaxForwards: 70,
	}
	return ack
}
