package re

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wire "github.com/nfcemu/nfcemu/internal/proto/llcp"
	"github.com/nfcemu/nfcemu/internal/tag"
)

type fakeTimer struct {
	armed   bool
	pending bool
}

func (f *fakeTimer) Arm(d time.Duration, fire func()) { f.armed = true; f.pending = true }
func (f *fakeTimer) Cancel()                          { f.pending = false }
func (f *fakeTimer) Pending() bool                     { return f.pending }

func TestNew_TagEndpointHasNoSNEP(t *testing.T) {
	e := New(ProtocolT2T, "A-poll", []byte{1, 2, 3, 4}, nil)
	assert.True(t, e.Protocol.IsTag())
	assert.Equal(t, -1, e.LastDSAP)
}

func TestResolveSAP_MinusOneUsesLast(t *testing.T) {
	e := New(ProtocolNFCDEP, "A-poll", nil, []byte{0x02})
	got, err := e.ResolveSAP(-1, 7)
	require.NoError(t, err)
	assert.Equal(t, byte(7), got)

	_, err = e.ResolveSAP(-1, -1)
	assert.Error(t, err)
}

func TestResolveSAP_OutOfRangeFails(t *testing.T) {
	e := New(ProtocolNFCDEP, "A-poll", nil, nil)
	_, err := e.ResolveSAP(SAPCount, -1)
	assert.Error(t, err)
}

func TestProcessLLCP_ConnectThenSendsImmediately(t *testing.T) {
	e := New(ProtocolNFCDEP, "A-poll", nil, []byte{0x02})
	e.Timer = &fakeTimer{}

	connect := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeCONNECT, SSAP: 4}}
	buf, err := wire.Encode(connect)
	require.NoError(t, err)

	var sent []byte
	err = e.ProcessLLCP(buf, func(b []byte) error { sent = b; return nil })
	require.NoError(t, err)
	require.NotEmpty(t, sent)

	pdu, err := wire.Decode(sent)
	require.NoError(t, err)
	assert.Equal(t, wire.PTypeCC, pdu.Header.PType)
	assert.False(t, e.XmitNext)
}

func TestProcessLLCP_RememberSAPs(t *testing.T) {
	e := New(ProtocolNFCDEP, "A-poll", nil, nil)
	e.Timer = &fakeTimer{}

	pdu := wire.PDU{Header: wire.Header{DSAP: 32, PType: wire.PTypeSYMM, SSAP: 4}}
	buf, err := wire.Encode(pdu)
	require.NoError(t, err)

	require.NoError(t, e.ProcessLLCP(buf, func(b []byte) error { return nil }))
	assert.Equal(t, 32, e.LastDSAP)
	assert.Equal(t, 4, e.LastSSAP)
}

func TestSendPDUFromRE_EnqueuesWhenNotTurn(t *testing.T) {
	e := New(ProtocolNFCDEP, "A-poll", nil, nil)
	e.XmitNext = false

	var sent bool
	err := e.SendPDUFromRE([]byte{0x01}, func(b []byte) error { sent = true; return nil })
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, e.xmitQ, 1)
}

func TestTagCommandDispatch_AppendsUnconsumedToSBuf(t *testing.T) {
	tg, err := tag.NewTag(tag.KindT1T, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	e := New(ProtocolT1T, "A-poll", []byte{1, 2, 3, 4}, nil)
	e.Tag = tg

	cmd := []byte{tag.CmdT1TRID, 0xff, 0xfe}
	resp, err := e.TagCommandDispatch(cmd)
	require.NoError(t, err)
	assert.NotEmpty(t, resp)
	assert.Equal(t, []byte{0xff, 0xfe}, e.SBuf)
}
