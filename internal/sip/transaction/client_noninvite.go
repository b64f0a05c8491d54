// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package transaction

import (
	"sync"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
)

// ClientNonInvite drives a BYE, CANCEL, or INFO request as its own client
// transaction (spec.md §4.9.3's SipMOByeTU/SipMOCancelTU/SipDtmfTU).
// Retransmits on Timer E (doubling up to T2) and gives up at Timer F
// (64*T1).
type ClientNonInvite struct {
	mu sync.Mutex

	transport Transport
	timers    Timers
	reliable  bool

	destHost string
	destPort int

	request *message.Message

	timerE    *time.Timer
	timerF    *time.Timer
	intervalE time.Duration

	terminated bool

	onFinal   func(resp *message.Message)
	onTimeout func()
}

// NewClientNonInvite builds a client transaction for BYE/CANCEL/INFO.
func NewClientNonInvite(transport Transport, timers Timers, reliable bool, request *message.Message, destHost string, destPort int, onFinal func(*message.Message), onTimeout func()) *ClientNonInvite {
	return &ClientNonInvite{
		transport: transport,
		timers:    timers,
		reliable:  reliable,
		destHost:  destHost,
		destPort:  destPort,
		request:   request,
		onFinal:   onFinal,
		onTimeout: onTimeout,
	}
}

// Start issues the request and arms timers E (unreliable only) and F.
func (t *ClientNonInvite) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transport.SendMessage(t.request, t.destHost, t.destPort); err != nil {
		return err
	}
	if !t.reliable {
		t.intervalE = t.timers.T1
		t.timerE = time.AfterFunc(t.intervalE, t.retransmit)
	}
	t.timerF = time.AfterFunc(t.timers.TimerF(), t.expireF)
	return nil
}

func (t *ClientNonInvite) retransmit() {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	_ = t.transport.SendMessage(t.request, t.destHost, t.destPort)
	t.intervalE = nextRetransmitInterval(t.intervalE, t.timers.T2)
	t.timerE = time.AfterFunc(t.intervalE, t.retransmit)
	t.mu.Unlock()
}

func (t *ClientNonInvite) expireF() {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.terminated = true
	cb := t.onTimeout
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (t *ClientNonInvite) stopLocked() {
	if t.timerE != nil {
		t.timerE.Stop()
	}
	if t.timerF != nil {
		t.timerF.Stop()
	}
}

// HandleResponse processes a matched response. Provisional responses are
// ignored; any final response (>=200) stops E/F and reports the result.
func (t *ClientNonInvite) HandleResponse(resp *message.Message) {
	if resp.StatusCode < 200 {
		return
	}
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.terminated = true
	cb := t.onFinal
	t.mu.Unlock()
	if cb != nil {
		cb(resp)
	}
}
