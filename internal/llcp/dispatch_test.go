package llcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wire "github.com/nfcemu/nfcemu/internal/proto/llcp"
)

type fakeLinks struct {
	links map[[2]byte]*DataLink
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: make(map[[2]byte]*DataLink)}
}

func (f *fakeLinks) Link(remoteSAP, localSAP byte) *DataLink {
	key := [2]byte{remoteSAP, localSAP}
	if f.links[key] == nil {
		f.links[key] = NewDataLink()
	}
	return f.links[key]
}

func TestDispatch_SYMM_NoReply(t *testing.T) {
	links := newFakeLinks()
	reply, _, err := Dispatch(wire.PDU{Header: wire.Header{PType: wire.PTypeSYMM}}, links, nil)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestDispatch_Connect_RepliesWithCC(t *testing.T) {
	links := newFakeLinks()
	pdu := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeCONNECT, SSAP: 4}}

	reply, _, err := Dispatch(pdu, links, nil)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, wire.PTypeCC, reply.Header.PType)
	assert.Equal(t, byte(4), reply.Header.DSAP)
	assert.Equal(t, byte(32), reply.Header.SSAP)

	dl := links.Link(4, 32)
	assert.Equal(t, Connected, dl.Status)
}

func TestDispatch_Disc_RepliesWithDM(t *testing.T) {
	links := newFakeLinks()
	dl := links.Link(4, 32)
	require.NoError(t, dl.AcceptConnect(nil))

	pdu := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeDISC, SSAP: 4}}
	reply, _, err := Dispatch(pdu, links, nil)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, wire.PTypeDM, reply.Header.PType)
	assert.Equal(t, Disconnected, dl.Status)
}

func TestDispatch_I_InvokesSNEPHandler(t *testing.T) {
	links := newFakeLinks()
	dl := links.Link(4, 32)
	require.NoError(t, dl.AcceptConnect(nil))

	called := false
	snep := func(dl *DataLink, localSAP byte, info []byte) ([]byte, error) {
		called = true
		assert.Equal(t, byte(32), localSAP)
		return []byte("reply"), nil
	}

	seq := EncodeSeqByte(0, 0)
	pdu := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeI, SSAP: 4}, Info: append([]byte{seq}, []byte("payload")...)}
	reply, _, err := Dispatch(pdu, links, snep)
	require.NoError(t, err)
	assert.True(t, called)
	require.NotNil(t, reply)
	assert.Equal(t, wire.PTypeI, reply.Header.PType)
	assert.Equal(t, append([]byte{EncodeSeqByte(0, 1)}, []byte("reply")...), reply.Info)
}

func TestDispatch_RR_UpdatesVSA(t *testing.T) {
	links := newFakeLinks()
	dl := links.Link(4, 32)
	require.NoError(t, dl.AcceptConnect(nil))

	pdu := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeRR, SSAP: 4}, Info: []byte{EncodeSeqByte(0, 5)}}
	reply, _, err := Dispatch(pdu, links, nil)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, byte(5), dl.VSA)
}

func TestDispatch_FRMR_NoStateChange(t *testing.T) {
	links := newFakeLinks()
	dl := links.Link(4, 32)
	require.NoError(t, dl.AcceptConnect(nil))

	pdu := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeFRMR, SSAP: 4}}
	reply, _, err := Dispatch(pdu, links, nil)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, Connected, dl.Status)
}

// EncodeSeqByte is a small test helper mirroring wire.EncodeSequence.
func EncodeSeqByte(ns, nr byte) byte {
	return wire.EncodeSequence(wire.Sequence{NS: ns, NR: nr})
}
