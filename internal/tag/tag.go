// Package tag models the stored memory image of an emulated NFC Forum tag
// (Type 1/2/3/4) and interprets the tag-native command set against it.
package tag

import (
	"encoding/binary"
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
	"github.com/nfcemu/nfcemu/internal/proto/ndef"
)

// Kind identifies which NFC Forum tag type a Tag emulates.
type Kind int

const (
	KindT1T Kind = iota
	KindT2T
	KindT3T
	KindT4T
)

func (k Kind) String() string {
	switch k {
	case KindT1T:
		return "t1t"
	case KindT2T:
		return "t2t"
	case KindT3T:
		return "t3t"
	case KindT4T:
		return "t4t"
	default:
		return fmt.Sprintf("tag.Kind(%d)", int(k))
	}
}

// ParseKind maps a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "t1t":
		return KindT1T, nil
	case "t2t":
		return KindT2T, nil
	case "t3t":
		return KindT3T, nil
	case "t4t":
		return KindT4T, nil
	default:
		return 0, fmt.Errorf("tag: parse kind: %w: unknown kind %q", errs.ErrWireFormat, s)
	}
}

const (
	t1tDataCapacity = 96
	t2tDataCapacity = 48
	t3tBlockSize    = 16
	t3tBlockCount   = 16
	t4tNDEFCapacity = 1024
)

// T1T is a Type 1 Tag memory image: 8-byte UID, 96 bytes of data, 16 bytes
// reserved.
type T1T struct {
	UID      [8]byte
	HR       [2]byte
	Data     [t1tDataCapacity]byte
	Reserved [16]byte
}

// T2T is a Type 2 Tag memory image: 10-byte internal area, 2-byte lock
// bytes, 4-byte capability container, 48 bytes of data.
type T2T struct {
	Internal [10]byte
	Lock     [2]byte
	CC       [4]byte
	Data     [t2tDataCapacity]byte
}

// T3T is a Type 3 Tag memory image: a 16-byte management block (block 0)
// followed by 15 data blocks of 16 bytes each (63 usable per the NDEF
// management area once accounting for the attribute block format; this
// implementation tracks the full 16-block array and treats block 0 as the
// attribute information block).
type T3T struct {
	Blocks [t3tBlockCount][t3tBlockSize]byte
}

// T4T is a Type 4 Tag memory image: a 15-byte Capability Container plus an
// NDEF file of up to 1024 bytes (2-byte length prefix plus payload).
type T4T struct {
	CC   [15]byte
	NDEF [t4tNDEFCapacity]byte
}

// ApduState tracks the ISO-7816 file-selection state for a T4T tag across
// successive APDUs in a session.
type ApduState int

const (
	ApduNone ApduState = iota
	ApduCcSelected
	ApduNdefSelected
)

// Tag is a tagged union over the four emulated tag kinds. Exactly one of
// T1T/T2T/T3T/T4T is populated, matching Kind.
type Tag struct {
	Kind Kind
	T1T  *T1T
	T2T  *T2T
	T3T  *T3T
	T4T  *T4T

	apduState ApduState // T4T only
}

// NewTag allocates a zeroed tag of the given kind with identity fields set.
func NewTag(kind Kind, nfcid1 []byte) (*Tag, error) {
	t := &Tag{Kind: kind}
	switch kind {
	case KindT1T:
		tt := &T1T{HR: [2]byte{0x11, 0x00}}
		copy(tt.UID[:], nfcid1)
		t.T1T = tt
	case KindT2T:
		tt := &T2T{CC: [4]byte{0xE1, 0x10, 0x0C, 0x00}}
		copy(tt.Internal[:], nfcid1)
		t.T2T = tt
	case KindT3T:
		t.T3T = &T3T{}
	case KindT4T:
		tt := &T4T{}
		copy(tt.CC[:], defaultT4TCC())
		t.T4T = tt
	default:
		return nil, fmt.Errorf("tag: new tag: %w: unknown kind %v", errs.ErrWireFormat, kind)
	}
	return t, nil
}

func defaultT4TCC() []byte {
	// CC length(2)=0x000F, mapping version=0x20, MLe=0x003B, MLc=0x0034,
	// NDEF File Control TLV: tag=0x04 len=0x06 fileId=E104 maxSize=0x03F8
	// read=0x00 write=0x00.
	return []byte{
		0x00, 0x0f,
		0x20,
		0x00, 0x3b,
		0x00, 0x34,
		0x04, 0x06, 0xe1, 0x04, 0x03, 0xf8, 0x00, 0x00,
	}
}

// SetNDEF writes msg, already serialized as an NDEF message, into the tag's
// data area using the framing appropriate to its kind.
func (t *Tag) SetNDEF(msg []byte) error {
	switch t.Kind {
	case KindT1T:
		return setNDEFWithCC(t.T1T.Data[:], msg)
	case KindT2T:
		return setNDEFNoCC(t.T2T.Data[:], msg)
	case KindT3T:
		return setNDEFT3T(t.T3T, msg)
	case KindT4T:
		return setNDEFT4T(t.T4T, msg)
	default:
		errs.Panic(fmt.Sprintf("tag.SetNDEF: unreachable kind %v", t.Kind))
		return nil
	}
}

// t1tCCPrefix is the fixed T1T Capability Container written at the start
// of the data area: CC length=0x0E (112 bytes in 8-byte units), read/write
// access granted.
var t1tCCPrefix = []byte{0xe1, 0x10, 0x0e, 0x00}

// setNDEFWithCC writes the T1T capability container followed by the NDEF
// TLV into data: [CC(4)] [0x03, len, ndef..., 0xFE].
func setNDEFWithCC(data []byte, msg []byte) error {
	if len(data) < len(t1tCCPrefix) {
		return fmt.Errorf("tag: set ndef: %w: t1t data area too small for capability container", errs.ErrResourceExhausted)
	}
	copy(data[:len(t1tCCPrefix)], t1tCCPrefix)
	return writeNDEFTLV(data[len(t1tCCPrefix):], msg)
}

func setNDEFNoCC(data []byte, msg []byte) error {
	return writeNDEFTLV(data, msg)
}

func writeNDEFTLV(data []byte, msg []byte) error {
	if len(msg) >= len(data) {
		return fmt.Errorf("tag: set ndef: %w: message length %d exceeds data capacity %d", errs.ErrResourceExhausted, len(msg), len(data))
	}
	for i := range data {
		data[i] = 0x00
	}
	data[0] = 0x03
	data[1] = byte(len(msg))
	copy(data[2:], msg)
	end := 2 + len(msg)
	if end < len(data) {
		data[end] = 0xfe
	}
	return nil
}

func setNDEFT3T(t *T3T, msg []byte) error {
	capacity := (t3tBlockCount - 1) * t3tBlockSize
	if len(msg) > capacity {
		return fmt.Errorf("tag: set ndef: %w: message length %d exceeds t3t capacity %d", errs.ErrResourceExhausted, len(msg), capacity)
	}
	// Clear data blocks (1..15), copy message starting at block 1.
	for b := 1; b < t3tBlockCount; b++ {
		for i := range t.Blocks[b] {
			t.Blocks[b][i] = 0x00
		}
	}
	for i, b := range msg {
		t.Blocks[1+i/t3tBlockSize][i%t3tBlockSize] = b
	}
	// Management block (block 0) layout: ver(1) nbr(1) nbw(1) nmaxb(2)
	// unused(4) writef(1) rwflag(1) ln(3) checksum(2).
	mgmt := &t.Blocks[0]
	mgmt[0] = 0x10
	mgmt[1] = byte(t3tBlockCount - 1)
	mgmt[2] = byte(t3tBlockCount - 1)
	binary.BigEndian.PutUint16(mgmt[3:5], uint16(t3tBlockCount-1))
	mgmt[9] = 0x00
	mgmt[10] = 0x01
	mgmt[11] = byte(len(msg) >> 16)
	mgmt[12] = byte(len(msg) >> 8)
	mgmt[13] = byte(len(msg))

	var sum uint16
	for _, v := range mgmt[0:14] {
		sum += uint16(v)
	}
	binary.BigEndian.PutUint16(mgmt[14:16], sum)
	return nil
}

func setNDEFT4T(t *T4T, msg []byte) error {
	if len(msg) > t4tNDEFCapacity-2 {
		return fmt.Errorf("tag: set ndef: %w: message length %d exceeds t4t capacity %d", errs.ErrResourceExhausted, len(msg), t4tNDEFCapacity-2)
	}
	for i := range t.NDEF {
		t.NDEF[i] = 0x00
	}
	binary.BigEndian.PutUint16(t.NDEF[0:2], uint16(len(msg)))
	copy(t.NDEF[2:], msg)
	return nil
}

// SetNDEFMessage is a convenience wrapper that serializes msg via the ndef
// package before writing it into the tag.
func (t *Tag) SetNDEFMessage(msg ndef.Message) error {
	buf, err := ndef.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("tag: set ndef message: %w", err)
	}
	return t.SetNDEF(buf)
}
