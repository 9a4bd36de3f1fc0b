package ndef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// EncodeMessage / DecodeMessage round trips
// ============================================================================

func TestEncodeDecodeMessage_SingleShortRecord(t *testing.T) {
	msg := Message{Records: []Record{
		{TNF: TNFWellKnown, Type: []byte("T"), Payload: []byte("hello")},
	}}

	buf, err := EncodeMessage(msg)
	require.NoError(t, err)

	got, err := DecodeMessage(buf)
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, TNFWellKnown, got.Records[0].TNF)
	assert.Equal(t, []byte("T"), got.Records[0].Type)
	assert.Equal(t, []byte("hello"), got.Records[0].Payload)
}

func TestEncodeDecodeMessage_MultipleRecords(t *testing.T) {
	msg := Message{Records: []Record{
		{TNF: TNFWellKnown, Type: []byte("T"), Payload: []byte("first")},
		{TNF: TNFMediaType, Type: []byte("text/plain"), ID: []byte("id1"), Payload: []byte("second")},
		{TNF: TNFExternal, Type: []byte("example.com:x"), Payload: []byte("third")},
	}}

	buf, err := EncodeMessage(msg)
	require.NoError(t, err)

	got, err := DecodeMessage(buf)
	require.NoError(t, err)
	require.Len(t, got.Records, 3)
	assert.Equal(t, msg.Records[1].ID, got.Records[1].ID)
	assert.Equal(t, msg.Records[2].Payload, got.Records[2].Payload)
}

func TestEncodeMessage_LongPayloadUsesFourByteLength(t *testing.T) {
	payload := make([]byte, 300)
	msg := Message{Records: []Record{{TNF: TNFUnknown, Payload: payload}}}

	buf, err := EncodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, byte(0), buf[0]&FlagSR)

	got, err := DecodeMessage(buf)
	require.NoError(t, err)
	assert.Len(t, got.Records[0].Payload, 300)
}

func TestEncodeMessage_EmptyFails(t *testing.T) {
	_, err := EncodeMessage(Message{})
	assert.Error(t, err)
}

func TestDecodeMessage_MissingMEFails(t *testing.T) {
	msg := Message{Records: []Record{{TNF: TNFEmpty}}}
	buf, err := EncodeMessage(msg)
	require.NoError(t, err)

	// Strip ME so the record is well-formed but the message never terminates.
	buf[0] &^= FlagME

	_, err = DecodeMessage(buf)
	assert.Error(t, err)
}

func TestDecodeMessage_TruncatedBufferFails(t *testing.T) {
	_, err := DecodeMessage([]byte{0x01})
	assert.Error(t, err)
}

func TestDecodeMessage_ChunkedRecordRejected(t *testing.T) {
	buf := []byte{FlagMB | FlagCF | FlagSR, 0x00, 0x00}
	_, err := DecodeMessage(buf)
	assert.Error(t, err)
}
