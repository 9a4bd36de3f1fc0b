package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTag_AllKinds(t *testing.T) {
	for _, k := range []Kind{KindT1T, KindT2T, KindT3T, KindT4T} {
		tag, err := NewTag(k, []byte{0x11, 0x22, 0x33, 0x44})
		require.NoError(t, err)
		assert.Equal(t, k, tag.Kind)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("t2t")
	require.NoError(t, err)
	assert.Equal(t, KindT2T, k)

	_, err = ParseKind("bogus")
	assert.Error(t, err)
}

func TestSetNDEF_T1T(t *testing.T) {
	tag, err := NewTag(KindT1T, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	msg := []byte("hello")
	require.NoError(t, tag.SetNDEF(msg))
	assert.Equal(t, byte(0x03), tag.T1T.Data[4])
	assert.Equal(t, byte(len(msg)), tag.T1T.Data[5])
	assert.Equal(t, msg, tag.T1T.Data[6:6+len(msg)])
	assert.Equal(t, byte(0xfe), tag.T1T.Data[6+len(msg)])
}

func TestSetNDEF_T1T_TooLarge(t *testing.T) {
	tag, err := NewTag(KindT1T, nil)
	require.NoError(t, err)
	err = tag.SetNDEF(make([]byte, t1tDataCapacity))
	assert.Error(t, err)
}

func TestSetNDEF_T3T_ChecksumAndLength(t *testing.T) {
	tag, err := NewTag(KindT3T, nil)
	require.NoError(t, err)

	msg := []byte("ndef-over-t3t")
	require.NoError(t, tag.SetNDEF(msg))

	mgmt := tag.T3T.Blocks[0]
	ln := int(mgmt[11])<<16 | int(mgmt[12])<<8 | int(mgmt[13])
	assert.Equal(t, len(msg), ln)

	var sum uint16
	for _, v := range mgmt[0:14] {
		sum += uint16(v)
	}
	cs := uint16(mgmt[14])<<8 | uint16(mgmt[15])
	assert.Equal(t, sum, cs)

	assert.Equal(t, msg, tag.T3T.Blocks[1][:len(msg)])
}

func TestDispatch_T1T_RALL(t *testing.T) {
	tag, err := NewTag(KindT1T, []byte{0xaa, 0xbb, 0xcc, 0xdd})
	require.NoError(t, err)

	resp := make([]byte, 256)
	consumed, written, err := tag.Dispatch([]byte{CmdT1TRALL}, resp)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, byte(0x11), resp[0])
	assert.Equal(t, byte(0x00), resp[1])
	assert.Equal(t, byte(0x00), resp[written-1])
}

func TestDispatch_T1T_RID(t *testing.T) {
	tag, err := NewTag(KindT1T, []byte{0xaa, 0xbb, 0xcc, 0xdd})
	require.NoError(t, err)

	resp := make([]byte, 32)
	consumed, written, err := tag.Dispatch([]byte{CmdT1TRID}, resp)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, resp[2:6])
	assert.Equal(t, byte(0x00), resp[written-1])
}

func TestDispatch_T2T_Read(t *testing.T) {
	tag, err := NewTag(KindT2T, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, tag.SetNDEF([]byte("x")))

	resp := make([]byte, 32)
	consumed, written, err := tag.Dispatch([]byte{CmdT2TRead, 0x04}, resp)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, 17, written)
}

func TestDispatch_T2T_ReadClampsPastEnd(t *testing.T) {
	tag, err := NewTag(KindT2T, nil)
	require.NoError(t, err)

	resp := make([]byte, 32)
	_, _, err = tag.Dispatch([]byte{CmdT2TRead, 0xff}, resp)
	require.NoError(t, err)
	for _, b := range resp[:16] {
		assert.Equal(t, byte(0), b)
	}
}

func TestDispatch_T3T_Check(t *testing.T) {
	tag, err := NewTag(KindT3T, nil)
	require.NoError(t, err)
	require.NoError(t, tag.SetNDEF([]byte("payload")))

	cmd := []byte{CmdT3TCheck, 0x01, 0x00, 0x09, 0x01, 0x80, 0x01}
	resp := make([]byte, 64)
	consumed, written, err := tag.Dispatch(cmd, resp)
	require.NoError(t, err)
	assert.Equal(t, len(cmd), consumed)
	assert.Equal(t, 17, written)
	assert.Equal(t, tag.T3T.Blocks[1][:], resp[0:16])
	assert.Equal(t, byte(0x00), resp[16])
}

func TestDispatch_T4T_SelectAndRead(t *testing.T) {
	tag, err := NewTag(KindT4T, nil)
	require.NoError(t, err)
	require.NoError(t, tag.SetNDEF([]byte("hello-t4t")))

	resp := make([]byte, 32)

	selectCC := []byte{0x00, InsSelect, 0x00, 0x0c, 0x02, 0xe1, 0x03}
	_, written, err := tag.Dispatch(selectCC, resp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp[:written])

	selectNDEF := []byte{0x00, InsSelect, 0x00, 0x0c, 0x02, 0xe1, 0x04}
	_, written, err = tag.Dispatch(selectNDEF, resp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp[:written])

	readBinary := []byte{0x00, InsReadBinary, 0x00, 0x00, 0x02}
	_, written, err = tag.Dispatch(readBinary, resp)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), resp[0])
	assert.Equal(t, byte(len("hello-t4t")), resp[1])
	assert.Equal(t, []byte{0x90, 0x00}, resp[written-2:written])
}

func TestDispatch_T4T_SelectUnknownFileFails(t *testing.T) {
	tag, err := NewTag(KindT4T, nil)
	require.NoError(t, err)

	resp := make([]byte, 32)
	cmd := []byte{0x00, InsSelect, 0x00, 0x0c, 0x02, 0xaa, 0xbb}
	_, written, err := tag.Dispatch(cmd, resp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6a, 0x82}, resp[:written])
}
