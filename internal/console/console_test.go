package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcemu/nfcemu/internal/adaptor"
	"github.com/nfcemu/nfcemu/internal/controller"
	"github.com/nfcemu/nfcemu/internal/mmio"
	"github.com/nfcemu/nfcemu/internal/nci"
	wireNCI "github.com/nfcemu/nfcemu/internal/proto/nci"
	"github.com/nfcemu/nfcemu/internal/re"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	ctrl := controller.New(controller.Callbacks{})
	a := adaptor.Init(ctrl, adaptor.Callbacks{})
	dev := mmio.NewMemDevice(a, nil)
	var out bytes.Buffer
	return New(ctrl, dev, &out, nil), &out
}

func bringUpNFCDEP(t *testing.T, c *Console) *re.Endpoint {
	t.Helper()
	ep := re.New(re.ProtocolNFCDEP, "F-listen", []byte{1, 2, 3, 4}, make([]byte, 10))
	c.Ctrl.AddEndpoint(ep)
	c.Ctrl.RFState = nci.RFDiscovery
	return ep
}

func TestRFDiscoverNtf_EmitsNotificationAndAdvancesState(t *testing.T) {
	c, out := newTestConsole(t)
	bringUpNFCDEP(t, c)
	c.Ctrl.RFState = nci.RFDiscovery

	c.handleLine("nfc nci rf_discover_ntf 0 2")
	assert.Contains(t, out.String(), "OK")
	assert.Equal(t, nci.RFW4AllDiscoveries, c.Ctrl.RFState)

	pkt, _, err := wireNCI.Decode(c.Dev.ReadNtfn(8))
	require.NoError(t, err)
	assert.Equal(t, wireNCI.MTNtf, pkt.Header.MT)
	assert.Equal(t, byte(1), pkt.Payload[0]) // first unused id
	assert.Equal(t, byte(2), pkt.Payload[4]) // type MORE
}

func TestRFIntfActivatedNtf_DefaultsToActiveRE(t *testing.T) {
	c, out := newTestConsole(t)
	ep := bringUpNFCDEP(t, c)
	c.Ctrl.RFState = nci.RFDiscovery
	ep.ID = 1
	c.Ctrl.ActiveRE = ep

	c.handleLine("nfc nci rf_intf_activated_ntf")
	assert.Contains(t, out.String(), "OK")
	assert.Equal(t, nci.RFListenActive, c.Ctrl.RFState)
}

func TestLLCPConnect_UsesResolvedSAPs(t *testing.T) {
	c, out := newTestConsole(t)
	ep := bringUpNFCDEP(t, c)
	c.Ctrl.ActiveRE = ep
	c.Ctrl.RFState = nci.RFListenActive

	c.handleLine("nfc llcp connect 4 32")
	assert.Contains(t, out.String(), "OK")

	dl := ep.Link(4, 32)
	assert.Equal(t, byte(0), dl.VS) // unaffected; just confirm link exists
}

func TestSNEPPut_QueuesConnectAndData(t *testing.T) {
	c, out := newTestConsole(t)
	ep := bringUpNFCDEP(t, c)
	c.Ctrl.ActiveRE = ep
	c.Ctrl.RFState = nci.RFListenActive

	c.handleLine("nfc snep put 4 32 1 1 dGV4dA cGF5bG9hZA -")
	assert.Contains(t, out.String(), "OK")

	dl := ep.Link(4, 32)
	require.NotEmpty(t, dl.Pending)
}

func TestSNEPPut_NoRecordsPrintsNull(t *testing.T) {
	c, out := newTestConsole(t)
	ep := bringUpNFCDEP(t, c)
	c.Ctrl.ActiveRE = ep

	c.handleLine("nfc snep put 4 32")
	assert.Equal(t, "null\r\n", out.String())
}

func TestUnrecognizedCommand_WritesKO(t *testing.T) {
	c, out := newTestConsole(t)
	c.handleLine("nfc bogus thing")
	assert.True(t, strings.HasPrefix(out.String(), "KO: "))
}

func TestRFDiscoverNtf_NoActiveEndpointOutOfRange(t *testing.T) {
	c, out := newTestConsole(t)
	c.handleLine("nfc nci rf_discover_ntf 5 0")
	assert.True(t, strings.HasPrefix(out.String(), "KO: "))
}
