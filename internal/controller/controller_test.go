package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nfcemu/nfcemu/internal/nci"
	wire "github.com/nfcemu/nfcemu/internal/proto/nci"
	"github.com/nfcemu/nfcemu/internal/re"
	"github.com/nfcemu/nfcemu/internal/tag"
)

func newTestTag(t *testing.T) (*tag.Tag, error) {
	t.Helper()
	return tag.NewTag(tag.KindT2T, []byte{1, 2, 3, 4})
}

func TestIDAllocator_WrapsAt254(t *testing.T) {
	a := NewIDAllocator()
	for i := 1; i <= 254; i++ {
		assert.Equal(t, byte(i), a.Next())
	}
	assert.Equal(t, byte(1), a.Next())
}

func TestNew_StartsIdle(t *testing.T) {
	c := New(Callbacks{})
	assert.Equal(t, nci.StateIdle, c.State)
	assert.Equal(t, nci.RFIdle, c.RFState)
	assert.NotEmpty(t, c.Ifaces)
}

func scenarioReset(t *testing.T, c *Controller) {
	t.Helper()
	cmd, err := wire.Encode(wire.MTCmd, false, wire.GIDCore, wire.OIDCoreReset, []byte{0x01})
	require.NoError(t, err)
	c.Lock()
	resp, err := c.ProcessNCIMsg(cmd)
	c.Unlock()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x00, 0x03, 0x00, 0x10, 0x01}, resp)
	assert.Equal(t, nci.StateReset, c.State)
	assert.Equal(t, nci.RFIdle, c.RFState)
}

func TestProcessNCIMsg_ResetThenInit(t *testing.T) {
	c := New(Callbacks{})
	scenarioReset(t, c)

	initCmd, err := wire.Encode(wire.MTCmd, false, wire.GIDCore, wire.OIDCoreInit, nil)
	require.NoError(t, err)
	c.Lock()
	resp, err := c.ProcessNCIMsg(initCmd)
	c.Unlock()
	require.NoError(t, err)
	require.NotEmpty(t, resp)
	assert.Equal(t, nci.StateInitialized, c.State)

	pkt, _, err := wire.Decode(resp)
	require.NoError(t, err)
	assert.Equal(t, wire.MTRsp, pkt.Header.MT)
	assert.Equal(t, wire.StatusOK, pkt.Payload[0])
}

func TestProcessNCIMsg_DataDroppedOutsidePollOrListenActive(t *testing.T) {
	c := New(Callbacks{})
	dataCmd, err := wire.Encode(wire.MTData, false, 0, 0, []byte{0xaa})
	require.NoError(t, err)
	c.Lock()
	_, err = c.ProcessNCIMsg(dataCmd)
	c.Unlock()
	assert.Error(t, err)
}

func TestProcessNCIMsg_DataRoutesToTagEndpoint(t *testing.T) {
	c := New(Callbacks{})
	c.RFState = nci.RFPollActive
	ep := re.New(re.ProtocolT2T, "A-poll", []byte{1, 2, 3, 4}, nil)
	tg, err := newTestTag(t)
	require.NoError(t, err)
	ep.Tag = tg
	c.AddEndpoint(ep)
	c.ActiveRE = ep

	dataCmd, err := wire.Encode(wire.MTData, false, 0, 0, []byte{0x30, 0x00})
	require.NoError(t, err)
	c.Lock()
	resp, err := c.ProcessNCIMsg(dataCmd)
	c.Unlock()
	require.NoError(t, err)
	require.NotNil(t, resp)
	pkt, _, err := wire.Decode(resp)
	require.NoError(t, err)
	assert.Equal(t, wire.MTData, pkt.Header.MT)
}

// TestScenario_T2TReadBlockZero covers §8 scenario (d): reading block 0
// off a T2T endpoint returns its 16-byte memory window followed by a
// trailing status byte of 0x00.
func TestScenario_T2TReadBlockZero(t *testing.T) {
	c := New(Callbacks{})
	c.RFState = nci.RFPollActive
	ep := re.New(re.ProtocolT2T, "A-poll", []byte{1, 2, 3, 4}, nil)
	tg, err := newTestTag(t)
	require.NoError(t, err)
	ep.Tag = tg
	c.AddEndpoint(ep)
	c.ActiveRE = ep

	dataCmd, err := wire.Encode(wire.MTData, false, 0, 0, []byte{0x30, 0x00})
	require.NoError(t, err)
	c.Lock()
	resp, err := c.ProcessNCIMsg(dataCmd)
	c.Unlock()
	require.NoError(t, err)

	pkt, _, err := wire.Decode(resp)
	require.NoError(t, err)
	require.Len(t, pkt.Payload, 17)
	assert.Equal(t, byte(0x00), pkt.Payload[16])
	// Internal bytes (NFCID1) occupy the first 4 bytes of block 0.
	assert.Equal(t, []byte{1, 2, 3, 4}, pkt.Payload[0:4])
}

// TestScenario_SetConfigI93DataRateEmitsFieldInfoNtf covers §4.6: a
// CORE_SET_CONFIG writing BCM2079x_I93_DATARATE with byte 2's low bit set
// persists the TLV into the controller's config store and stages an
// RF_FIELD_INFO_NTF through the host-facing notification sender.
func TestScenario_SetConfigI93DataRateEmitsFieldInfoNtf(t *testing.T) {
	var staged [][]byte
	c := New(Callbacks{
		SendNtf: func(payload []byte) error {
			staged = append(staged, payload)
			return nil
		},
	})
	scenarioReset(t, c)
	initCmd, err := wire.Encode(wire.MTCmd, false, wire.GIDCore, wire.OIDCoreInit, nil)
	require.NoError(t, err)
	c.Lock()
	_, err = c.ProcessNCIMsg(initCmd)
	c.Unlock()
	require.NoError(t, err)

	setConfigCmd, err := wire.Encode(wire.MTCmd, false, wire.GIDCore, wire.OIDCoreSetConfig,
		[]byte{0x01, nci.OIDPropI93DataRate, 0x02, 0x00, 0x01})
	require.NoError(t, err)
	c.Lock()
	resp, err := c.ProcessNCIMsg(setConfigCmd)
	c.Unlock()
	require.NoError(t, err)

	pkt, _, err := wire.Decode(resp)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, pkt.Payload[0])
	assert.Equal(t, []byte{0x00, 0x01}, c.Config.Block[0:2])

	require.Len(t, staged, 1)
	ntfPkt, _, err := wire.Decode(staged[0])
	require.NoError(t, err)
	assert.Equal(t, wire.MTNtf, ntfPkt.Header.MT)
	assert.Equal(t, wire.GIDRF, ntfPkt.Header.GID)
	assert.Equal(t, wire.OIDRFFieldInfo, ntfPkt.Header.OID)
	assert.Equal(t, nci.BuildFieldInfoNtf(), ntfPkt.Payload)
}

// TestScenario_RFDeactivateReturnsToIdle covers §8 scenario (e): from any
// RF state, RF_DEACTIVATE(IdleMode) yields NCI_STATUS_OK, rf_state=Idle,
// a nil active endpoint, and every endpoint's id reset to 0.
func TestScenario_RFDeactivateReturnsToIdle(t *testing.T) {
	c := New(Callbacks{})
	scenarioReset(t, c)
	initCmd, err := wire.Encode(wire.MTCmd, false, wire.GIDCore, wire.OIDCoreInit, nil)
	require.NoError(t, err)
	c.Lock()
	_, err = c.ProcessNCIMsg(initCmd)
	c.Unlock()
	require.NoError(t, err)

	ep := re.New(re.ProtocolNFCDEP, "F-listen", []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8, 9, 10})
	ep.ID = 1
	c.AddEndpoint(ep)
	c.ActiveRE = ep
	c.RFState = nci.RFListenActive

	deactivateCmd, err := wire.Encode(wire.MTCmd, false, wire.GIDRF, wire.OIDRFDeactivate, []byte{0x00})
	require.NoError(t, err)
	c.Lock()
	resp, err := c.ProcessNCIMsg(deactivateCmd)
	c.Unlock()
	require.NoError(t, err)

	pkt, _, err := wire.Decode(resp)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, pkt.Payload[0])
	assert.Equal(t, nci.RFIdle, c.RFState)
	assert.Nil(t, c.ActiveRE)
	assert.Nil(t, c.ActiveRF)
	assert.Equal(t, 0, ep.ID)
}
