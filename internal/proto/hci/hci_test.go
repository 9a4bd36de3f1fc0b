package hci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	buf, err := Encode(ServiceNFC, 0x05, []byte{0xaa, 0xbb, 0xcc})
	require.NoError(t, err)
	assert.Equal(t, []byte{ServiceNFC, 0x05, 0x03, 0xaa, 0xbb, 0xcc}, buf)

	pkt, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, ServiceNFC, pkt.Service)
	assert.Equal(t, byte(0x05), pkt.Command)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, pkt.Payload)
}

func TestEncode_RejectsOversizedPayload(t *testing.T) {
	_, err := Encode(ServiceNFC, 0x00, make([]byte, 257))
	assert.Error(t, err)
}

func TestDecode_TruncatedHeaderFails(t *testing.T) {
	_, _, err := Decode([]byte{0x00, 0x01})
	assert.Error(t, err)
}

func TestDecode_TruncatedPayloadFails(t *testing.T) {
	_, _, err := Decode([]byte{0x00, 0x01, 0x04, 0xaa})
	assert.Error(t, err)
}

func TestCmdCompleteEncodeDecode(t *testing.T) {
	cc := CmdComplete{NPackets: CmdCompleteNPackets, Service: ServiceCore, Command: 0x02, Status: 0x00}
	buf := EncodeCmdComplete(cc)
	assert.Equal(t, []byte{0x3c, ServiceCore, 0x02, 0x00}, buf)

	got, err := DecodeCmdComplete(buf)
	require.NoError(t, err)
	assert.Equal(t, cc, got)
}

func TestDecodeCmdComplete_TooShortFails(t *testing.T) {
	_, err := DecodeCmdComplete([]byte{0x3c, 0x00})
	assert.Error(t, err)
}
