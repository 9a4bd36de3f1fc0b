package adaptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcemu/nfcemu/internal/controller"
	wire "github.com/nfcemu/nfcemu/internal/proto/nci"
)

type fakeNCIMetrics struct {
	commands      []string
	transitions   []string
	endpointCount int
	activeCalls   []bool
}

func (f *fakeNCIMetrics) RecordCommand(gid, oid, status byte) {
	f.commands = append(f.commands, string([]byte{gid, oid, status}))
}
func (f *fakeNCIMetrics) RecordRFTransition(from, to string) {
	f.transitions = append(f.transitions, from+"->"+to)
}
func (f *fakeNCIMetrics) SetEndpointCount(n int)      { f.endpointCount = n }
func (f *fakeNCIMetrics) SetActiveEndpoint(active bool) { f.activeCalls = append(f.activeCalls, active) }

func coreResetCmd(t *testing.T) []byte {
	t.Helper()
	buf, err := wire.Encode(wire.MTCmd, false, wire.GIDCore, wire.OIDCoreReset, []byte{0x01})
	require.NoError(t, err)
	return buf
}

func TestProcessNCICommand_RecordsCommandMetric(t *testing.T) {
	ctrl := controller.New(controller.Callbacks{})
	m := &fakeNCIMetrics{}
	a := Init(ctrl, Callbacks{Metrics: m})

	_, err := a.ProcessNCICommand(coreResetCmd(t))
	require.NoError(t, err)

	assert.Len(t, m.commands, 1)
	assert.Equal(t, 0, m.endpointCount)
	assert.Equal(t, []bool{false}, m.activeCalls)
}

func TestProcessNCICommand_NilMetricsIsNoop(t *testing.T) {
	ctrl := controller.New(controller.Callbacks{})
	a := Init(ctrl, Callbacks{})

	resp, err := a.ProcessNCICommand(coreResetCmd(t))
	require.NoError(t, err)
	assert.NotEmpty(t, resp)
}

func TestProcessHCICommand_EchoesPayload(t *testing.T) {
	ctrl := controller.New(controller.Callbacks{})
	a := Init(ctrl, Callbacks{})

	resp, err := a.ProcessHCICommand([]byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, resp)
}

func TestTimer_ArmCancelPending(t *testing.T) {
	var tm Timer
	assert.False(t, tm.Pending())

	fired := make(chan struct{})
	tm.Arm(0, func() { close(fired) })
	<-fired

	tm.Arm(1<<30, func() {})
	assert.True(t, tm.Pending())
	tm.Cancel()
	assert.False(t, tm.Pending())
}
