// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package iface implements the UDP receive thread and the dialog/
// transaction wiring spec.md §6 calls the "L3/L2 interface": a single
// socket multiplexes every SIP dialog and transaction, dispatching
// inbound datagrams to the right dialog (or to L3 as a new session
// origination) and exposing a DialogMessage callback boundary upward.
package iface

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"sync"

	"github.com/gobts/gobts/internal/sip/dialog"
	"github.com/gobts/gobts/internal/sip/message"
	"github.com/gobts/gobts/internal/sip/transaction"
)

// OriginationHandler is invoked when an inbound INVITE or MESSAGE does
// not match any known dialog — a new session origination event, per
// spec.md §4.8 ("otherwise an INVITE/MESSAGE is treated as a session-
// origination event").
type OriginationHandler func(msg *message.Message, from *net.UDPAddr)

// imsiOrTMSI matches the subscriber-identity forms GoBTS accepts in a
// To URI user part: a 15-digit IMSI or an 8-hex-digit TMSI.
var imsiOrTMSI = regexp.MustCompile(`^(\d{15}|[0-9a-fA-F]{8})$`)

// Interface owns the UDP socket and the live dialog/transaction tables.
type Interface struct {
	conn *net.UDPConn

	dialogs *dialog.Map

	mu               sync.Mutex
	clientInvites    map[transaction.Key]*transaction.ClientInvite
	serverInvites    map[transaction.Key]*transaction.ServerInvite
	clientNonInvites map[transaction.Key]*transaction.ClientNonInvite

	timers     transaction.Timers
	onOrigin   OriginationHandler
	logger     *slog.Logger
}

// New opens the local SIP UDP socket and builds an empty Interface.
func New(localAddr string, timers transaction.Timers, onOrigin OriginationHandler, logger *slog.Logger) (*Interface, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("sip/iface: resolve %q: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("sip/iface: listen %q: %w", localAddr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interface{
		conn:             conn,
		dialogs:          dialog.NewMap(),
		clientInvites:    make(map[transaction.Key]*transaction.ClientInvite),
		serverInvites:    make(map[transaction.Key]*transaction.ServerInvite),
		clientNonInvites: make(map[transaction.Key]*transaction.ClientNonInvite),
		timers:           timers,
		onOrigin:         onOrigin,
		logger:           logger,
	}, nil
}

// Dialogs exposes the live dialog map for wiring a timer sweep or test
// inspection.
func (i *Interface) Dialogs() *dialog.Map { return i.dialogs }

// SendMessage implements transaction.Transport: it is the single write
// path every transaction object uses to emit requests and responses.
func (i *Interface) SendMessage(msg *message.Message, host string, port int) error {
	wire := message.Generate(msg)
	dst := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	_, err := i.conn.WriteToUDP(wire, dst)
	return err
}

// RegisterClientInvite tracks an in-flight MO-INVITE transaction under
// its request's matching key so inbound responses can be routed to it.
func (i *Interface) RegisterClientInvite(req *message.Message, txn *transaction.ClientInvite) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.clientInvites[transaction.KeyOf(req)] = txn
}

// RegisterServerInvite tracks an in-flight MT-INVITE transaction under the
// inbound INVITE's matching key so retransmits/ACK/CANCEL route to it.
func (i *Interface) RegisterServerInvite(req *message.Message, txn *transaction.ServerInvite) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.serverInvites[transaction.KeyOf(req)] = txn
}

// RegisterClientNonInvite tracks an in-flight BYE/CANCEL/INFO client
// transaction.
func (i *Interface) RegisterClientNonInvite(req *message.Message, txn *transaction.ClientNonInvite) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.clientNonInvites[transaction.KeyOf(req)] = txn
}

func (i *Interface) unregister(key transaction.Key) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.clientInvites, key)
	delete(i.serverInvites, key)
	delete(i.clientNonInvites, key)
}

// Run reads datagrams until ctx is canceled or the socket is closed.
func (i *Interface) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = i.conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, from, err := i.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sip/iface: read: %w", err)
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		i.handleDatagram(datagram, from)
	}
}

// handleDatagram implements spec.md §6's "Exit/error codes" parse-failure
// rule (log and discard) and §4.8's dispatch rule (dialog match, or
// session-origination, or 404/400).
func (i *Interface) handleDatagram(data []byte, from *net.UDPAddr) {
	msg, perr := message.Parse(data)
	if perr != nil {
		i.logger.Warn("sip: dropping unparseable datagram", "error", perr.Reason, "from", from)
		return
	}

	if msg.IsResponse {
		i.routeResponse(msg)
		return
	}
	i.routeRequest(msg, from)
}

func (i *Interface) routeResponse(msg *message.Message) {
	key := transaction.KeyOf(msg)
	i.mu.Lock()
	ci, ciOK := i.clientInvites[key]
	cn, cnOK := i.clientNonInvites[key]
	i.mu.Unlock()

	switch {
	case ciOK:
		ci.HandleResponse(msg)
	case cnOK:
		cn.HandleResponse(msg)
	default:
		i.logger.Debug("sip: response matched no pending transaction", "key", key.String())
	}
}

func (i *Interface) routeRequest(msg *message.Message, from *net.UDPAddr) {
	if d, ok := i.dialogs.FindByMsg(msg); ok {
		i.routeToDialog(d, msg, from)
		return
	}

	switch msg.Method {
	case message.INVITE, message.MESSAGE:
		if !validIdentity(msg.To.URI) {
			i.reply(msg, from, 400, "Bad Request")
			return
		}
		if i.onOrigin != nil {
			i.onOrigin(msg, from)
		}
	case message.ACK:
		// A stray ACK for a dialog we no longer track is silently
		// dropped, not 404'd (RFC3261 §8.2.7 allows discarding).
	default:
		i.reply(msg, from, 404, "Not Found")
	}
}

// routeToDialog handles an in-dialog request: ACK and CANCEL are passed to
// the tracked server-invite transaction if there is one, then ACK fires
// "ack" and CANCEL is answered 200 OK and fires "cancel_mt"; BYE is
// answered 200 OK and fires "bye_mt"; a repeated INVITE makes the server
// transaction resend its last response. Any other method gets 404.
func (i *Interface) routeToDialog(d *dialog.Dialog, msg *message.Message, from *net.UDPAddr) {
	key := transaction.KeyOf(msg)
	i.mu.Lock()
	si, siOK := i.serverInvites[key]
	i.mu.Unlock()

	switch msg.Method {
	case message.ACK:
		if siOK {
			si.HandleACK()
			i.unregister(key)
		}
		_ = d.Fire(context.Background(), "ack")
	case message.CANCEL:
		if siOK {
			_ = si.HandleCancel()
		}
		i.reply(msg, from, 200, "OK")
		_ = d.Fire(context.Background(), "cancel_mt")
	case message.BYE:
		i.reply(msg, from, 200, "OK")
		_ = d.Fire(context.Background(), "bye_mt")
	case message.INVITE:
		if siOK {
			_ = si.HandleDuplicateInvite()
		}
	default:
		i.reply(msg, from, 404, "Not Found")
	}
}

func (i *Interface) reply(req *message.Message, from *net.UDPAddr, code int, reason string) {
	resp := &message.Message{
		IsResponse: true,
		StatusCode: code,
		Reason:     reason,
		Version:    "SIP/2.0",
		Via:        req.Via,
		To:         req.To,
		From:       req.From,
		CallID:     req.CallID,
		CSeq:       req.CSeq,
	}
	if err := i.SendMessage(resp, from.IP.String(), from.Port); err != nil {
		i.logger.Warn("sip: failed to send reply", "error", err, "code", code)
	}
}

// validIdentity reports whether a To URI's user part is a 15-digit
// IMSI or an 8-hex-digit TMSI, per spec.md §6's 400 Bad Request rule.
func validIdentity(requestURI string) bool {
	user := requestURI
	if idx := indexByte(requestURI, ':'); idx >= 0 {
		user = requestURI[idx+1:]
	}
	if idx := indexByte(user, '@'); idx >= 0 {
		user = user[:idx]
	}
	return imsiOrTMSI.MatchString(user)
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// LocalAddr returns the bound UDP address.
func (i *Interface) LocalAddr() net.Addr { return i.conn.LocalAddr() }
