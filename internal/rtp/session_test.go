// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package rtp_test

import (
	"net"
	"testing"
	"time"

	pionrtp "github.com/pion/rtp"
	gortp "github.com/gobts/gobts/internal/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackPair(t *testing.T) (*net.UDPConn, *net.UDPConn) {
	t.Helper()
	a, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	b, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	return a, b
}

func TestTxFrameAdvancesTimestampByFlushedPlusOneTimes160(t *testing.T) {
	a, b := loopbackPair(t)
	defer a.Close()
	defer b.Close()

	sess, err := gortp.NewSession(gortp.Config{
		LocalConn:   a,
		RemoteAddr:  b.LocalAddr().(*net.UDPAddr),
		PayloadType: 3,
	})
	require.NoError(t, err)

	require.NoError(t, sess.TxFrame(make([]byte, 33), 0))
	require.NoError(t, sess.TxFrame(make([]byte, 33), 2)) // 2 flushed frames

	buf := make([]byte, 1500)
	require.NoError(t, b.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := b.ReadFromUDP(buf)
	require.NoError(t, err)
	var p1 pionrtp.Packet
	require.NoError(t, p1.Unmarshal(buf[:n]))
	assert.Equal(t, uint32(0), p1.Timestamp)

	n, _, err = b.ReadFromUDP(buf)
	require.NoError(t, err)
	var p2 pionrtp.Packet
	require.NoError(t, p2.Unmarshal(buf[:n]))
	assert.Equal(t, uint32(160), p2.Timestamp)
}

func TestRxFrameNonDecreasingAndMultipleOf160(t *testing.T) {
	a, b := loopbackPair(t)
	defer a.Close()
	defer b.Close()

	sess, err := gortp.NewSession(gortp.Config{LocalConn: a, RemoteAddr: b.LocalAddr().(*net.UDPAddr), PayloadType: 3})
	require.NoError(t, err)

	base := time.Now()
	first := sess.RxFrame(base)
	assert.Nil(t, first, "first call only captures the wall-clock baseline")

	sess.PushReceived(&pionrtp.Packet{Header: pionrtp.Header{Timestamp: 0}, Payload: []byte{1}})
	sess.PushReceived(&pionrtp.Packet{Header: pionrtp.Header{Timestamp: 160}, Payload: []byte{2}})

	f1 := sess.RxFrame(base.Add(20 * time.Millisecond))
	require.NotNil(t, f1)
	assert.Equal(t, []byte{1}, f1)

	f2 := sess.RxFrame(base.Add(40 * time.Millisecond))
	require.NotNil(t, f2)
	assert.Equal(t, []byte{2}, f2)

	// Queue now empty; subsequent calls advance the clock but yield no frame.
	f3 := sess.RxFrame(base.Add(60 * time.Millisecond))
	assert.Nil(t, f3)
}

func TestSSRCIsNonDeterministicAcrossSessions(t *testing.T) {
	a1, b1 := loopbackPair(t)
	defer a1.Close()
	defer b1.Close()
	a2, b2 := loopbackPair(t)
	defer a2.Close()
	defer b2.Close()

	s1, err := gortp.NewSession(gortp.Config{LocalConn: a1, RemoteAddr: b1.LocalAddr().(*net.UDPAddr), PayloadType: 3})
	require.NoError(t, err)
	s2, err := gortp.NewSession(gortp.Config{LocalConn: a2, RemoteAddr: b2.LocalAddr().(*net.UDPAddr), PayloadType: 3})
	require.NoError(t, err)

	assert.NotEqual(t, s1.SSRC(), s2.SSRC())
}

func TestDTMFTickSendsEventPacket(t *testing.T) {
	a, b := loopbackPair(t)
	defer a.Close()
	defer b.Close()

	sess, err := gortp.NewSession(gortp.Config{LocalConn: a, RemoteAddr: b.LocalAddr().(*net.UDPAddr), PayloadType: 3, DTMFPayload: 101})
	require.NoError(t, err)

	sess.StartDTMF(5)
	require.NoError(t, sess.TickDTMF())

	buf := make([]byte, 1500)
	require.NoError(t, b.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := b.ReadFromUDP(buf)
	require.NoError(t, err)
	var p pionrtp.Packet
	require.NoError(t, p.Unmarshal(buf[:n]))
	assert.Equal(t, uint8(101), p.PayloadType)
	assert.Equal(t, uint8(5), p.Payload[0])
}
