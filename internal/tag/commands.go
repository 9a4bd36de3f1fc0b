package tag

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

// Tag-native command opcodes.
const (
	CmdT1TRALL byte = 0x00
	CmdT1TRID  byte = 0x78
	CmdT2TRead byte = 0x30
	CmdT3TCheck  byte = 0x06
	CmdT3TUpdate byte = 0x08
)

// ISO-7816 instruction bytes used by the T4T APDU flow.
const (
	InsSelect     byte = 0xa4
	InsReadBinary byte = 0xb0
)

var (
	t4tAID    = []byte{0xd2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}
	t4tCCFile = []byte{0xe1, 0x03}
	t4tNDEFFile = []byte{0xe1, 0x04}
)

const (
	swSuccess       = 0x9000
	swFileNotFound  = 0x6a82
	swWrongParams   = 0x6a86
	swInsNotSupported = 0x6d00
)

// Dispatch interprets an incoming tag-native command buffer and writes the
// response into resp, returning the number of bytes consumed from cmd and
// the number of bytes written to resp.
func (t *Tag) Dispatch(cmd []byte, resp []byte) (consumed, written int, err error) {
	switch t.Kind {
	case KindT1T:
		return t.dispatchT1T(cmd, resp)
	case KindT2T:
		return t.dispatchT2T(cmd, resp)
	case KindT3T:
		return t.dispatchT3T(cmd, resp)
	case KindT4T:
		return t.dispatchT4T(cmd, resp)
	default:
		errs.Panic(fmt.Sprintf("tag.Dispatch: unreachable kind %v", t.Kind))
		return 0, 0, nil
	}
}

func (t *Tag) dispatchT1T(cmd []byte, resp []byte) (int, int, error) {
	if len(cmd) == 0 {
		return 0, 0, fmt.Errorf("tag: t1t dispatch: %w: empty command", errs.ErrWireFormat)
	}
	switch cmd[0] {
	case CmdT1TRALL:
		n := copy(resp, t.T1T.HR[:])
		n += copy(resp[n:], staticMemoryT1T(t.T1T))
		resp[n] = 0x00
		n++
		return 1, n, nil
	case CmdT1TRID:
		n := copy(resp, t.T1T.HR[:])
		n += copy(resp[n:], t.T1T.UID[:4])
		resp[n] = 0x00
		n++
		return 1, n, nil
	default:
		return 0, 0, fmt.Errorf("tag: t1t dispatch: %w: unknown opcode %#x", errs.ErrWireFormat, cmd[0])
	}
}

// staticMemoryT1T returns the 120-byte static memory map: UID(8), data
// (capability container + NDEF TLV), reserved(16) concatenated.
func staticMemoryT1T(t *T1T) []byte {
	buf := make([]byte, 0, 8+t1tDataCapacity+16)
	buf = append(buf, t.UID[:]...)
	buf = append(buf, t.Data[:]...)
	buf = append(buf, t.Reserved[:]...)
	return buf
}

func (t *Tag) dispatchT2T(cmd []byte, resp []byte) (int, int, error) {
	if len(cmd) < 2 {
		return 0, 0, fmt.Errorf("tag: t2t dispatch: %w: command too short", errs.ErrWireFormat)
	}
	if cmd[0] != CmdT2TRead {
		return 0, 0, fmt.Errorf("tag: t2t dispatch: %w: unknown opcode %#x", errs.ErrWireFormat, cmd[0])
	}
	bno := int(cmd[1])
	full := t2tFullMemory(t.T2T)
	start := bno * 4
	n := 0
	for i := 0; i < 16; i++ {
		idx := start + i
		if idx < len(full) {
			resp[n] = full[idx]
		} else {
			resp[n] = 0x00
		}
		n++
	}
	resp[n] = 0x00
	n++
	return 2, n, nil
}

func t2tFullMemory(t *T2T) []byte {
	buf := make([]byte, 0, 10+2+4+t2tDataCapacity)
	buf = append(buf, t.Internal[:]...)
	buf = append(buf, t.Lock[:]...)
	buf = append(buf, t.CC[:]...)
	buf = append(buf, t.Data[:]...)
	return buf
}

func (t *Tag) dispatchT3T(cmd []byte, resp []byte) (int, int, error) {
	if len(cmd) < 1 {
		return 0, 0, fmt.Errorf("tag: t3t dispatch: %w: empty command", errs.ErrWireFormat)
	}
	switch cmd[0] {
	case CmdT3TCheck:
		return t.t3tCheck(cmd, resp)
	case CmdT3TUpdate:
		return t.t3tUpdate(cmd, resp)
	default:
		return 0, 0, fmt.Errorf("tag: t3t dispatch: %w: unknown opcode %#x", errs.ErrWireFormat, cmd[0])
	}
}

// t3tBlockList parses the service-code and block-list fields common to
// CHECK and UPDATE. Layout: 1-byte nservice, (2 bytes)*nservice service
// codes, 1-byte nblock, nblock block-list elements (2 or 3 bytes: high bit
// of first byte clear means 3-byte long form, set means 2-byte short form).
func t3tBlockList(buf []byte) (blocks []int, consumed int, err error) {
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("tag: t3t block list: %w: missing nservice", errs.ErrWireFormat)
	}
	pos := 1
	nservice := int(buf[0])
	if len(buf) < pos+nservice*2 {
		return nil, 0, fmt.Errorf("tag: t3t block list: %w: service code list truncated", errs.ErrWireFormat)
	}
	pos += nservice * 2
	if len(buf) < pos+1 {
		return nil, 0, fmt.Errorf("tag: t3t block list: %w: missing nblock", errs.ErrWireFormat)
	}
	nblock := int(buf[pos])
	pos++
	for i := 0; i < nblock; i++ {
		if len(buf) < pos+1 {
			return nil, 0, fmt.Errorf("tag: t3t block list: %w: block element truncated", errs.ErrWireFormat)
		}
		short := buf[pos]&0x80 != 0
		if short {
			if len(buf) < pos+2 {
				return nil, 0, fmt.Errorf("tag: t3t block list: %w: short block element truncated", errs.ErrWireFormat)
			}
			blocks = append(blocks, int(buf[pos+1]))
			pos += 2
		} else {
			if len(buf) < pos+3 {
				return nil, 0, fmt.Errorf("tag: t3t block list: %w: long block element truncated", errs.ErrWireFormat)
			}
			blocks = append(blocks, int(buf[pos+1])|int(buf[pos+2])<<8)
			pos += 3
		}
	}
	return blocks, pos, nil
}

func (t *Tag) t3tCheck(cmd []byte, resp []byte) (int, int, error) {
	blocks, n, err := t3tBlockList(cmd[1:])
	if err != nil {
		return 0, 0, err
	}
	n++ // account for the opcode byte

	out := 0
	for _, bno := range blocks {
		if bno < 0 || bno >= t3tBlockCount {
			for i := 0; i < t3tBlockSize; i++ {
				resp[out] = 0x00
				out++
			}
			continue
		}
		out += copy(resp[out:], t.T3T.Blocks[bno][:])
	}
	resp[out] = 0x00 // status flag 1 (success)
	out++
	return n, out, nil
}

// t3tUpdate parses the block list but does not mutate memory: tag memory
// is treated as read-only for write-class commands in this controller.
func (t *Tag) t3tUpdate(cmd []byte, resp []byte) (int, int, error) {
	_, n, err := t3tBlockList(cmd[1:])
	if err != nil {
		return 0, 0, err
	}
	n++
	resp[0] = 0x00
	return n, 1, nil
}

func (t *Tag) dispatchT4T(cmd []byte, resp []byte) (int, int, error) {
	if len(cmd) < 4 {
		return 0, 0, fmt.Errorf("tag: t4t dispatch: %w: apdu header truncated", errs.ErrWireFormat)
	}
	ins := cmd[1]
	p1 := cmd[2]
	p2 := cmd[3]
	switch ins {
	case InsSelect:
		return t.t4tSelect(cmd, resp, p1, p2)
	case InsReadBinary:
		return t.t4tReadBinary(cmd, resp, p1, p2)
	default:
		return t.t4tStatusOnly(cmd, resp, swInsNotSupported)
	}
}

func (t *Tag) t4tSelect(cmd []byte, resp []byte, p1, p2 byte) (int, int, error) {
	if len(cmd) < 5 {
		return 0, 0, fmt.Errorf("tag: t4t select: %w: missing lc", errs.ErrWireFormat)
	}
	lc := int(cmd[4])
	if len(cmd) < 5+lc {
		return 0, 0, fmt.Errorf("tag: t4t select: %w: data field truncated", errs.ErrWireFormat)
	}
	data := cmd[5 : 5+lc]
	consumed := 5 + lc

	switch p1 {
	case 0x04: // select by name (AID)
		if bytesEqual(data, t4tAID) {
			t.apduState = ApduNone
			return writeStatus(resp, consumed, swSuccess)
		}
		return writeStatus(resp, consumed, swFileNotFound)
	case 0x00: // select by file id
		switch {
		case bytesEqual(data, t4tCCFile):
			t.apduState = ApduCcSelected
			return writeStatus(resp, consumed, swSuccess)
		case bytesEqual(data, t4tNDEFFile):
			t.apduState = ApduNdefSelected
			return writeStatus(resp, consumed, swSuccess)
		default:
			return writeStatus(resp, consumed, swFileNotFound)
		}
	default:
		return writeStatus(resp, consumed, swWrongParams)
	}
}

func (t *Tag) t4tReadBinary(cmd []byte, resp []byte, p1, p2 byte) (int, int, error) {
	if len(cmd) < 5 {
		return 0, 0, fmt.Errorf("tag: t4t read binary: %w: missing le", errs.ErrWireFormat)
	}
	offset := int(p1)<<8 | int(p2)
	le := int(cmd[4])
	consumed := 5

	var file []byte
	switch t.apduState {
	case ApduCcSelected:
		file = t.T4T.CC[:]
	case ApduNdefSelected:
		file = t.T4T.NDEF[:]
	default:
		return writeStatus(resp, consumed, swFileNotFound)
	}

	n := 0
	for i := 0; i < le; i++ {
		idx := offset + i
		if idx < len(file) {
			resp[n] = file[idx]
		} else {
			resp[n] = 0x00
		}
		n++
	}
	sw := swSuccess
	resp[n] = byte(sw >> 8)
	resp[n+1] = byte(sw)
	return consumed, n + 2, nil
}

func (t *Tag) t4tStatusOnly(cmd []byte, resp []byte, sw int) (int, int, error) {
	return writeStatus(resp, len(cmd), sw)
}

func writeStatus(resp []byte, consumed, sw int) (int, int, error) {
	resp[0] = byte(sw >> 8)
	resp[1] = byte(sw)
	return consumed, 2, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
