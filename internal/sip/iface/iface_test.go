// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package iface_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gobts/gobts/internal/sip/iface"
	"github.com/gobts/gobts/internal/sip/message"
	"github.com/gobts/gobts/internal/sip/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startInterface(t *testing.T, onOrigin iface.OriginationHandler) (*iface.Interface, func()) {
	t.Helper()
	ifc, err := iface.New("127.0.0.1:0", transaction.DefaultTimers(), onOrigin, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ifc.Run(ctx)
		close(done)
	}()
	return ifc, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("iface.Run did not exit after cancel")
		}
	}
}

func sendRaw(t *testing.T, to net.Addr, payload string) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	_, err = conn.WriteToUDP([]byte(payload), to.(*net.UDPAddr))
	require.NoError(t, err)
	return conn
}

func TestUnknownBYEGets404(t *testing.T) {
	ifc, stop := startInterface(t, nil)
	defer stop()

	raw := "BYE sip:310150123456789@gobts.local SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 127.0.0.1:9999;branch=z9hG4bKOBTSabcdefghijklmnop\r\n" +
		"To: <sip:310150123456789@gobts.local>\r\n" +
		"From: <sip:proxy@example.com>;tag=OBTSabcdefghijklmn\r\n" +
		"Call-ID: unknown-call-1\r\n" +
		"CSeq: 1 BYE\r\n" +
		"Content-Length: 0\r\n\r\n"

	conn := sendRaw(t, ifc.LocalAddr(), raw)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	resp, perr := message.Parse(buf[:n])
	require.Nil(t, perr)
	assert.True(t, resp.IsResponse)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestInviteWithBadIdentityGets400(t *testing.T) {
	ifc, stop := startInterface(t, func(*message.Message, *net.UDPAddr) {
		t.Fatal("origination handler should not fire for a malformed identity")
	})
	defer stop()

	raw := "INVITE sip:not-an-imsi@gobts.local SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 127.0.0.1:9999;branch=z9hG4bKOBTSabcdefghijklmnop\r\n" +
		"To: <sip:not-an-imsi@gobts.local>\r\n" +
		"From: <sip:proxy@example.com>;tag=OBTSabcdefghijklmn\r\n" +
		"Call-ID: bad-identity-call\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Content-Length: 0\r\n\r\n"

	conn := sendRaw(t, ifc.LocalAddr(), raw)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	resp, perr := message.Parse(buf[:n])
	require.Nil(t, perr)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestInviteWithValidIMSITriggersOrigination(t *testing.T) {
	originated := make(chan *message.Message, 1)
	ifc, stop := startInterface(t, func(m *message.Message, _ *net.UDPAddr) {
		originated <- m
	})
	defer stop()

	raw := "INVITE sip:310150123456789@gobts.local SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 127.0.0.1:9999;branch=z9hG4bKOBTSabcdefghijklmnop\r\n" +
		"To: <sip:310150123456789@gobts.local>\r\n" +
		"From: <sip:proxy@example.com>;tag=OBTSabcdefghijklmn\r\n" +
		"Call-ID: good-identity-call\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Content-Length: 0\r\n\r\n"

	conn := sendRaw(t, ifc.LocalAddr(), raw)
	defer conn.Close()

	select {
	case m := <-originated:
		assert.Equal(t, message.INVITE, m.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("origination handler was not called")
	}
}

func TestUnparseableDatagramIsDropped(t *testing.T) {
	ifc, stop := startInterface(t, nil)
	defer stop()

	conn := sendRaw(t, ifc.LocalAddr(), "\x00\x01\x02garbage, not sip")
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buf := make([]byte, 64)
	_, _, err := conn.ReadFromUDP(buf)
	assert.Error(t, err, "no reply should be sent for an unparseable datagram")
}
