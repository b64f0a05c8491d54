// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package transaction

import (
	"crypto/md5" //nolint:gosec // RFC2617 digest auth mandates MD5
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
)

// RegisterAuthResult is delivered to L3 when a 200 OK to REGISTER carries
// fresh keying material (spec.md §4.9.4's DialogAuthMessage).
type RegisterAuthResult struct {
	Kc []byte
}

// RegisterChallenge is delivered to L3 when the proxy challenges with 401
// (spec.md §4.9.4's DialogChallengeMessage).
type RegisterChallenge struct {
	RAND        string
	RejectCause int
}

// RegisterDialog is the single process-wide pseudo-dialog gRegisterDialog
// targets all REGISTER exchanges through (spec.md §4.9.4).
type RegisterDialog struct {
	mu sync.Mutex

	transport Transport
	timers    Timers
	reliable  bool

	registrarHost string
	registrarPort int

	imsi     string
	realm    string
	password string
	aor      string
	contact  string

	cseq      uint32
	lastNonce string

	pending *ClientNonInvite

	OnAuth      func(RegisterAuthResult)
	OnChallenge func(RegisterChallenge)
}

// NewRegisterDialog constructs the REGISTER pseudo-dialog.
func NewRegisterDialog(transport Transport, timers Timers, reliable bool, registrarHost string, registrarPort int, imsi, realm, password, aor, contact string) *RegisterDialog {
	return &RegisterDialog{
		transport:     transport,
		timers:        timers,
		reliable:      reliable,
		registrarHost: registrarHost,
		registrarPort: registrarPort,
		imsi:          imsi,
		realm:         realm,
		password:      password,
		aor:           aor,
		contact:       contact,
	}
}

// Register builds and issues a REGISTER for the given registration period
// (Expires = 60*period, or 0 to unregister), per spec.md §4.9.4. If a
// prior challenge left a nonce cached, the request carries a computed
// Authorization header.
func (r *RegisterDialog) Register(period time.Duration) error {
	r.mu.Lock()
	r.cseq++
	expires := 0
	if period > 0 {
		expires = int(60 * period / time.Second)
	}

	req := &message.Message{
		Method:      message.REGISTER,
		RequestURI:  "sip:" + r.realm,
		Version:     "SIP/2.0",
		Via:         []message.Via{{Proto: "SIP/2.0/UDP", Branch: message.NewBranch(), Params: map[string]string{}}},
		To:          message.NameAddr{URI: r.aor, Params: map[string]string{}},
		From:        message.NameAddr{URI: r.aor, Params: map[string]string{"tag": message.NewTag()}},
		CallID:      message.NewCallID(),
		CSeq:        message.CSeq{Seq: r.cseq, Method: message.REGISTER},
		Contact:     []message.NameAddr{{URI: r.contact, Params: map[string]string{}}},
		HasMaxFwd:   true,
		MaxForwards: 70,
		HasExpires:  true,
		Expires:     expires,
	}
	if r.lastNonce != "" {
		req.Authorization = buildDigestHeader(r.imsi, r.realm, r.password, string(message.REGISTER), req.RequestURI, r.lastNonce)
	}
	host, port := r.registrarHost, r.registrarPort
	timers, reliable := r.timers, r.reliable
	r.mu.Unlock()

	txn := NewClientNonInvite(r.transport, timers, reliable, req, host, port, r.handleFinal, r.handleTimeout)
	r.mu.Lock()
	r.pending = txn
	r.mu.Unlock()
	return txn.Start()
}

func (r *RegisterDialog) handleTimeout() {
	r.mu.Lock()
	cb := r.OnChallenge
	r.mu.Unlock()
	if cb != nil {
		cb(RegisterChallenge{RejectCause: 408})
	}
}

func (r *RegisterDialog) handleFinal(resp *message.Message) {
	switch {
	case resp.StatusCode == 200:
		kc := []byte(resp.Get("P-GSM-Kc"))
		r.mu.Lock()
		cb := r.OnAuth
		r.mu.Unlock()
		if cb != nil {
			cb(RegisterAuthResult{Kc: kc})
		}
	case resp.StatusCode == 401:
		nonce := extractNonce(resp.WWWAuthenticate)
		r.mu.Lock()
		r.lastNonce = nonce
		cb := r.OnChallenge
		r.mu.Unlock()
		if cb != nil {
			cb(RegisterChallenge{RAND: nonce, RejectCause: 401})
		}
	default:
		r.mu.Lock()
		cb := r.OnChallenge
		r.mu.Unlock()
		if cb != nil {
			cb(RegisterChallenge{RejectCause: resp.StatusCode})
		}
	}
}

// ComputeDigestResponse implements spec.md §4.9.4's literal RFC2617-style
// formula: HA1=MD5(IMSI:realm:password), HA2=MD5(method:uri),
// response=MD5(HA1:RAND:HA2).
func ComputeDigestResponse(imsi, realm, password, method, uri, nonce string) string {
	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", imsi, realm, password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, uri))
	return md5Hex(fmt.Sprintf("%s:%s:%s", ha1, nonce, ha2))
}

// buildDigestHeader renders the Authorization header carrying the computed
// digest response.
func buildDigestHeader(imsi, realm, password, method, uri, nonce string) string {
	response := ComputeDigestResponse(imsi, realm, password, method, uri, nonce)
	return fmt.Sprintf(` Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		imsi, realm, nonce, uri, response)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // RFC2617 mandates MD5
	return hex.EncodeToString(sum[:])
}

func extractNonce(wwwAuthenticate string) string {
	const key = "nonce=\""
	idx := indexOf(wwwAuthenticate, key)
	if idx < 0 {
		return ""
	}
	rest := wwwAuthenticate[idx+len(key):]
	end := indexOf(rest, "\"")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
