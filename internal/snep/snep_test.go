package snep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wire "github.com/nfcemu/nfcemu/internal/proto/snep"
)

func TestHandleFragment_Put_StoresAndReplies(t *testing.T) {
	e := New()
	info := wire.Encode(wire.ReqPut, []byte("ndef-bytes"))

	reply, err := e.HandleFragment(nil, info)
	require.NoError(t, err)
	assert.Equal(t, []byte("ndef-bytes"), e.LastPut)

	hdr, err := wire.DecodeHeader(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.RspSuccess, hdr.Msg)
}

func TestHandleFragment_RspSuccess_NoReply(t *testing.T) {
	e := New()
	info := wire.Encode(wire.RspSuccess, nil)

	reply, err := e.HandleFragment(nil, info)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestHandleFragment_UnknownMessage_NotImplemented(t *testing.T) {
	e := New()
	info := wire.Encode(wire.ReqGet, nil)

	reply, err := e.HandleFragment(nil, info)
	require.NoError(t, err)
	hdr, err := wire.DecodeHeader(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.RspNotImplemented, hdr.Msg)
}

func TestHandleFragment_TooShort_BadRequest(t *testing.T) {
	e := New()
	reply, err := e.HandleFragment(nil, []byte{0x10})
	require.NoError(t, err)
	hdr, err := wire.DecodeHeader(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.RspBadRequest, hdr.Msg)
}

func TestHandleFragment_LengthMismatch_ExcessData(t *testing.T) {
	e := New()
	hdr := wire.EncodeHeader(wire.Header{Major: 1, Minor: 0, Msg: wire.ReqPut, Len: 100})
	reply, err := e.HandleFragment(nil, hdr)
	require.NoError(t, err)
	got, err := wire.DecodeHeader(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.RspExcessData, got.Msg)
}

// TestHandleFragment_PutExceedsReassemblyCapacity covers §8 scenario (f):
// a PUT whose declared length exceeds the reassembly buffer yields
// RSP_EXCESS_DATA with no payload and leaves LastPut untouched.
func TestHandleFragment_PutExceedsReassemblyCapacity(t *testing.T) {
	e := New()
	payload := make([]byte, reassemblyCapacity+1)
	info := wire.Encode(wire.ReqPut, payload)

	reply, err := e.HandleFragment(nil, info)
	require.NoError(t, err)
	require.Nil(t, e.LastPut)

	hdr, err := wire.DecodeHeader(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.RspExcessData, hdr.Msg)
	assert.Equal(t, uint32(0), hdr.Len)
}

func TestHandleFragment_UnsupportedVersion(t *testing.T) {
	e := New()
	info := wire.EncodeHeader(wire.Header{Major: 2, Minor: 0, Msg: wire.ReqPut, Len: 0})
	reply, err := e.HandleFragment(nil, info)
	require.NoError(t, err)
	got, err := wire.DecodeHeader(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.RspUnsupportedVersion, got.Msg)
}
