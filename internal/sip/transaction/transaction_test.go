// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package transaction_test

import (
	"sync"
	"testing"
	"time"

	"github.com/gobts/gobts/internal/sip/message"
	"github.com/gobts/gobts/internal/sip/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []*message.Message
}

func (f *fakeTransport) SendMessage(msg *message.Message, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func sampleInvite() *message.Message {
	return &message.Message{
		Method:     message.INVITE,
		RequestURI: "sip:b@gobts.local",
		Version:    "SIP/2.0",
		Via:        []message.Via{{Proto: "SIP/2.0/UDP", Host: "192.0.2.1", Port: 5062, Branch: message.NewBranch(), Params: map[string]string{}}},
		To:         message.NameAddr{URI: "sip:b@gobts.local", Params: map[string]string{}},
		From:       message.NameAddr{URI: "sip:a@gobts.local", Params: map[string]string{"tag": message.NewTag()}},
		CallID:     message.NewCallID(),
		CSeq:       message.CSeq{Seq: 1, Method: message.INVITE},
	}
}

func TestKeyOfIgnoresViaBranch(t *testing.T) {
	req := sampleInvite()
	resp := &message.Message{IsResponse: true, StatusCode: 200, CallID: req.CallID, CSeq: req.CSeq}
	assert.Equal(t, transaction.KeyOf(req), transaction.KeyOf(resp))
}

func TestClientInviteSuccessStopsRetransmitAndReportsActive(t *testing.T) {
	ft := &fakeTransport{}
	req := sampleInvite()
	var result *transaction.ClientInviteResult
	var wg sync.WaitGroup
	wg.Add(1)
	txn := transaction.NewClientInvite(ft, transaction.DefaultTimers(), false, req, "192.0.2.2", 5060,
		func() {},
		func(r transaction.ClientInviteResult) { result = &r; wg.Done() },
	)
	require.NoError(t, txn.Start())
	assert.Equal(t, 1, ft.count())

	resp := &message.Message{IsResponse: true, StatusCode: 200, Reason: "OK", CallID: req.CallID, CSeq: req.CSeq, To: message.NameAddr{URI: req.To.URI, Params: map[string]string{"tag": "OBTSremotetag0001"}}}
	txn.HandleResponse(resp)
	wg.Wait()

	require.NotNil(t, result)
	assert.True(t, result.Answered)
	assert.Equal(t, 200, result.Response.StatusCode)
}

func TestClientInviteFailureSendsACKAndReportsBusy(t *testing.T) {
	ft := &fakeTransport{}
	req := sampleInvite()
	var result *transaction.ClientInviteResult
	var wg sync.WaitGroup
	wg.Add(1)
	txn := transaction.NewClientInvite(ft, transaction.DefaultTimers(), true, req, "192.0.2.2", 5060,
		func() {},
		func(r transaction.ClientInviteResult) { result = &r; wg.Done() },
	)
	require.NoError(t, txn.Start())

	resp := &message.Message{IsResponse: true, StatusCode: 486, Reason: "Busy Here", CallID: req.CallID, CSeq: req.CSeq, To: message.NameAddr{URI: req.To.URI}}
	txn.HandleResponse(resp)
	wg.Wait()

	require.NotNil(t, result)
	assert.True(t, result.Busy)
	assert.Equal(t, 486, result.FailCode)
	// INVITE + ACK.
	assert.Equal(t, 2, ft.count())
}

func TestServerInviteSendOKArmsRetransmitOnUnreliable(t *testing.T) {
	ft := &fakeTransport{}
	req := sampleInvite()
	txn := transaction.NewServerInvite(ft, transaction.Timers{T1: 10 * time.Millisecond, T2: 40 * time.Millisecond, T4: time.Second}, false, req, "192.0.2.1", 5062, func() {}, func() {})

	require.NoError(t, txn.SendTrying())
	require.NoError(t, txn.SendOK([]byte("v=0\r\n"), "sip:bts@gobts.local"))
	assert.Equal(t, 2, ft.count())

	time.Sleep(30 * time.Millisecond)
	assert.GreaterOrEqual(t, ft.count(), 3, "expected at least one G retransmit of the 200 OK")

	txn.HandleACK()
	countAfterACK := ft.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, countAfterACK, ft.count(), "ACK must stop further G retransmits")
}

func TestClientNonInviteFinalStopsTimers(t *testing.T) {
	ft := &fakeTransport{}
	req := &message.Message{Method: message.BYE, CallID: message.NewCallID(), CSeq: message.CSeq{Seq: 2, Method: message.BYE}}
	var gotResp *message.Message
	var wg sync.WaitGroup
	wg.Add(1)
	txn := transaction.NewClientNonInvite(ft, transaction.DefaultTimers(), false, req, "192.0.2.1", 5062,
		func(r *message.Message) { gotResp = r; wg.Done() },
		func() {},
	)
	require.NoError(t, txn.Start())
	txn.HandleResponse(&message.Message{IsResponse: true, StatusCode: 200, CallID: req.CallID, CSeq: req.CSeq})
	wg.Wait()
	require.NotNil(t, gotResp)
	assert.Equal(t, 200, gotResp.StatusCode)
}

func TestTimerBIsSixtyFourT1(t *testing.T) {
	timers := transaction.DefaultTimers()
	assert.Equal(t, 64*timers.T1, timers.TimerB())
	assert.Equal(t, 64*timers.T1, timers.TimerH())
	assert.Equal(t, 64*timers.T1, timers.TimerF())
}

func TestTimerDZeroOnReliableTransport(t *testing.T) {
	timers := transaction.DefaultTimers()
	assert.Equal(t, time.Duration(0), timers.TimerD(true))
	assert.Equal(t, 32*time.Second, timers.TimerD(false))
}
