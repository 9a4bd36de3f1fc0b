package llcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wire "github.com/nfcemu/nfcemu/internal/proto/llcp"
)

func TestNewDataLink_Defaults(t *testing.T) {
	dl := NewDataLink()
	assert.Equal(t, Disconnected, dl.Status)
	assert.Equal(t, wire.DefaultMIU, dl.MIU)
	assert.Equal(t, byte(wire.DefaultRW), dl.RWL)
}

func TestAcceptConnect_TransitionsToConnected(t *testing.T) {
	dl := NewDataLink()
	require.NoError(t, dl.AcceptConnect(nil))
	assert.Equal(t, Connected, dl.Status)
}

func TestAcceptConnect_WrongStateFails(t *testing.T) {
	dl := NewDataLink()
	require.NoError(t, dl.AcceptConnect(nil))
	err := dl.AcceptConnect(nil)
	assert.Error(t, err)
}

func TestInitiateConnectThenAcceptCC_FlushesPending(t *testing.T) {
	dl := NewDataLink()
	require.NoError(t, dl.InitiateConnect())
	assert.Equal(t, Connecting, dl.Status)

	dl.QueuePending([]byte{0x01})
	dl.QueuePending([]byte{0x02})

	flushed, err := dl.AcceptCC(nil)
	require.NoError(t, err)
	assert.Equal(t, Connected, dl.Status)
	assert.Len(t, flushed, 2)
	assert.Empty(t, dl.Pending)
}

func TestAcceptDisc_ReturnsToDisconnected(t *testing.T) {
	dl := NewDataLink()
	require.NoError(t, dl.AcceptConnect(nil))
	dl.AcceptDisc()
	assert.Equal(t, Disconnected, dl.Status)
}

func TestAcceptI_AdvancesVRAndBuffers(t *testing.T) {
	dl := NewDataLink()
	require.NoError(t, dl.AcceptConnect(nil))

	_, err := dl.AcceptI(wire.Sequence{NS: 0, NR: 0}, []byte("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, byte(1), dl.VR)
	assert.Equal(t, []byte("hello"), dl.RBuf)
}

func TestAcceptI_DelegatesToHandler(t *testing.T) {
	dl := NewDataLink()
	require.NoError(t, dl.AcceptConnect(nil))

	reply, err := dl.AcceptI(wire.Sequence{}, []byte("ping"), func(b []byte) ([]byte, error) {
		return append([]byte("pong:"), b...), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("pong:ping"), reply)
}

func TestAcceptI_WrongStateFails(t *testing.T) {
	dl := NewDataLink()
	_, err := dl.AcceptI(wire.Sequence{}, nil, nil)
	assert.Error(t, err)
}

func TestApplyTLVs_MIUXAndRW(t *testing.T) {
	dl := NewDataLink()
	dl.ApplyTLVs([]wire.TLV{
		{Type: wire.TLVMIUX, Value: wire.EncodeMIUX(64)},
		{Type: wire.TLVRW, Value: wire.EncodeRW(3)},
	})
	assert.Equal(t, wire.DefaultMIU+64, dl.MIU)
	assert.Equal(t, byte(3), dl.RWR)
}

func TestApplyTLVs_MalformedSkipped(t *testing.T) {
	dl := NewDataLink()
	dl.ApplyTLVs([]wire.TLV{{Type: wire.TLVMIUX, Value: []byte{0x01}}})
	assert.Equal(t, wire.DefaultMIU, dl.MIU)
}

func TestNextSend_AdvancesVSModulo16(t *testing.T) {
	dl := NewDataLink()
	dl.VS = 15
	seq := dl.NextSend()
	assert.Equal(t, byte(15), seq.NS)
	assert.Equal(t, byte(0), dl.VS)
}
