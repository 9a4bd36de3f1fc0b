package mmio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcemu/nfcemu/internal/adaptor"
	"github.com/nfcemu/nfcemu/internal/controller"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	ctrl := controller.New(controller.Callbacks{})
	a := adaptor.Init(ctrl, adaptor.Callbacks{})
	return NewMemDevice(a, nil)
}

func TestProcessCtrl_ResetHandshake(t *testing.T) {
	d := newTestDevice(t)
	require.NoError(t, d.WriteCmnd([]byte{0x20, 0x00, 0x01, 0x01}))
	require.NoError(t, d.ProcessCtrl(CtrlNCICmdSent))

	assert.NotZero(t, d.status()&StatusNCIRsp)
	assert.NotZero(t, d.status()&StatusIntr)
	assert.Equal(t, []byte{0x40, 0x00, 0x03, 0x00, 0x10, 0x01}, d.ReadResp(6))

	require.NoError(t, d.ProcessCtrl(CtrlAckIntr))
	assert.Zero(t, d.status()&StatusIntr)
	require.NoError(t, d.ProcessCtrl(CtrlRspRcv))
	assert.Zero(t, d.status()&StatusNCIRsp)
}

func TestProcessCtrl_DropsCommandWhileResponsePending(t *testing.T) {
	d := newTestDevice(t)
	require.NoError(t, d.WriteCmnd([]byte{0x20, 0x00, 0x01, 0x01}))
	require.NoError(t, d.ProcessCtrl(CtrlNCICmdSent))

	before := d.ReadResp(6)
	require.NoError(t, d.WriteCmnd([]byte{0x20, 0x00, 0x01, 0x02}))
	require.NoError(t, d.ProcessCtrl(CtrlNCICmdSent))
	assert.Equal(t, before, d.ReadResp(6))
}

func TestWriteCmnd_RejectsOversized(t *testing.T) {
	d := newTestDevice(t)
	err := d.WriteCmnd(make([]byte, LenCmnd+1))
	assert.Error(t, err)
}

func TestStageNtfn_DroppedWhileResponsePending(t *testing.T) {
	d := newTestDevice(t)
	require.NoError(t, d.WriteCmnd([]byte{0x20, 0x00, 0x01, 0x01}))
	require.NoError(t, d.ProcessCtrl(CtrlNCICmdSent))

	require.NoError(t, d.StageNtfn([]byte{0x61, 0x03}))
	assert.Zero(t, d.status()&StatusNCINtf)
}

func TestStageData_SetsStatusBits(t *testing.T) {
	d := newTestDevice(t)
	require.NoError(t, d.StageData([]byte{0x00, 0x00, 0x00}))
	assert.NotZero(t, d.status()&StatusNCIDta)
	assert.NotZero(t, d.status()&StatusIntr)
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, d.ReadData(3))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	d := newTestDevice(t)
	require.NoError(t, d.WriteCmnd([]byte{0xaa, 0xbb}))

	var buf bytes.Buffer
	require.NoError(t, d.Save(&buf))

	d2 := newTestDevice(t)
	require.NoError(t, d2.Load(&buf))
	assert.Equal(t, d.buf, d2.buf)
}

func TestLoad_RejectsBadMagic(t *testing.T) {
	d := newTestDevice(t)
	err := d.Load(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x00}))
	assert.Error(t, err)
}

func TestProcessCtrl_UnknownCode(t *testing.T) {
	d := newTestDevice(t)
	err := d.ProcessCtrl(0x42)
	assert.Error(t, err)
}
