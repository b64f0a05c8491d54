// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package sdp_test

import (
	"testing"

	"github.com/gobts/gobts/internal/sip/sdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOfferMarshalParseRoundTrips(t *testing.T) {
	offer := sdp.BuildOffer("192.0.2.1", 20000, []sdp.Codec{sdp.GSMCodec, sdp.AMRCodec}, 1)
	wire, err := sdp.Marshal(offer)
	require.NoError(t, err)

	parsed, err := sdp.Parse(wire)
	require.NoError(t, err)

	host, port, pts, err := sdp.RemoteMedia(parsed)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", host)
	assert.Equal(t, 20000, port)
	assert.ElementsMatch(t, []int{sdp.GSMCodec.PayloadType, sdp.AMRCodec.PayloadType}, pts)
}

func TestBuildAnswerCarriesExactlyOneCodec(t *testing.T) {
	answer := sdp.BuildAnswer("192.0.2.2", 20002, sdp.GSMCodec, 2)
	_, _, pts, err := sdp.RemoteMedia(answer)
	require.NoError(t, err)
	assert.Equal(t, []int{sdp.GSMCodec.PayloadType}, pts)
}

func TestHandoverReferBodyBumpsVersion(t *testing.T) {
	body, err := sdp.HandoverReferBody("192.0.2.3", 20004, sdp.GSMCodec, 1700000000)
	require.NoError(t, err)
	parsed, err := sdp.Parse(body)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), parsed.Origin.SessionVersion)
}
