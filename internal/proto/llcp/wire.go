// Package llcp encodes and decodes Logical Link Control Protocol PDUs per
// the NFC Forum LLCP 1.1 specification.
package llcp

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

// PDU type values (LLCP 1.1 section 4.3).
const (
	PTypeSYMM    byte = 0x00
	PTypePAX     byte = 0x01
	PTypeAGF     byte = 0x02
	PTypeUI      byte = 0x03
	PTypeCONNECT byte = 0x04
	PTypeDISC    byte = 0x05
	PTypeCC      byte = 0x06
	PTypeDM      byte = 0x07
	PTypeFRMR    byte = 0x08
	PTypeSNL     byte = 0x09
	PTypeI       byte = 0x0c
	PTypeRR      byte = 0x0d
	PTypeRNR     byte = 0x0e
)

// PTypeName returns a short diagnostic name for a PDU type, used in logs and
// tracing attributes.
func PTypeName(pt byte) string {
	switch pt {
	case PTypeSYMM:
		return "SYMM"
	case PTypePAX:
		return "PAX"
	case PTypeAGF:
		return "AGF"
	case PTypeUI:
		return "UI"
	case PTypeCONNECT:
		return "CONNECT"
	case PTypeDISC:
		return "DISC"
	case PTypeCC:
		return "CC"
	case PTypeDM:
		return "DM"
	case PTypeFRMR:
		return "FRMR"
	case PTypeSNL:
		return "SNL"
	case PTypeI:
		return "I"
	case PTypeRR:
		return "RR"
	case PTypeRNR:
		return "RNR"
	default:
		return fmt.Sprintf("PTYPE(%#x)", pt)
	}
}

const headerLen = 2

// Header is the 2-byte LLCP PDU header: 6-bit DSAP, 4-bit PType, 6-bit SSAP.
type Header struct {
	DSAP  byte
	PType byte
	SSAP  byte
}

// EncodeHeader packs the header fields into 2 bytes, MSB-first in wire
// order: byte0 = DSAP(6) | PType_hi(2), byte1 = PType_lo(2) | SSAP(6).
func EncodeHeader(h Header) ([]byte, error) {
	if h.DSAP > 0x3f {
		return nil, fmt.Errorf("llcp: encode header: %w: dsap %#x exceeds 6 bits", errs.ErrWireFormat, h.DSAP)
	}
	if h.SSAP > 0x3f {
		return nil, fmt.Errorf("llcp: encode header: %w: ssap %#x exceeds 6 bits", errs.ErrWireFormat, h.SSAP)
	}
	if h.PType > 0x0f {
		return nil, fmt.Errorf("llcp: encode header: %w: ptype %#x exceeds 4 bits", errs.ErrWireFormat, h.PType)
	}
	b0 := (h.DSAP << 2) | (h.PType >> 2)
	b1 := (h.PType&0x03)<<6 | h.SSAP
	return []byte{b0, b1}, nil
}

// DecodeHeader unpacks the 2-byte header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, fmt.Errorf("llcp: decode header: %w: need %d bytes, have %d", errs.ErrWireFormat, headerLen, len(buf))
	}
	return Header{
		DSAP:  buf[0] >> 2,
		PType: (buf[0]&0x03)<<2 | buf[1]>>6,
		SSAP:  buf[1] & 0x3f,
	}, nil
}

// PDU is a fully decoded LLCP PDU.
type PDU struct {
	Header Header
	Info   []byte
}

// Decode parses a full PDU (header plus remaining info field) from buf.
// There is no length field in the LLCP PDU itself; callers must frame PDUs
// externally (the register block staging area or an AGF sub-PDU length).
func Decode(buf []byte) (PDU, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return PDU{}, err
	}
	return PDU{Header: h, Info: append([]byte(nil), buf[headerLen:]...)}, nil
}

// Encode serializes a full PDU.
func Encode(p PDU) ([]byte, error) {
	hdr, err := EncodeHeader(p.Header)
	if err != nil {
		return nil, err
	}
	return append(hdr, p.Info...), nil
}

// Sequence encodes the mod-16 send/receive sequence pair carried by I, RR,
// and RNR PDUs as the first info byte: high nibble N(S), low nibble N(R).
type Sequence struct {
	NS byte
	NR byte
}

// EncodeSequence packs a sequence pair into one byte.
func EncodeSequence(s Sequence) byte {
	return (s.NS&0x0f)<<4 | (s.NR & 0x0f)
}

// DecodeSequence unpacks a sequence byte.
func DecodeSequence(b byte) Sequence {
	return Sequence{NS: b >> 4, NR: b & 0x0f}
}

// Parameter TLV types (LLCP 1.1 section 4.5).
const (
	TLVVersion byte = 0x01
	TLVMIUX    byte = 0x02
	TLVWKS     byte = 0x03
	TLVLTO     byte = 0x04
	TLVRW      byte = 0x05
	TLVSN      byte = 0x06
	TLVOPT     byte = 0x07
	TLVSDREQ   byte = 0x08
	TLVSDRES   byte = 0x09
)

// TLV is a single LLCP parameter.
type TLV struct {
	Type  byte
	Value []byte
}

// EncodeTLVs serializes a sequence of TLVs as type, length, value triples.
func EncodeTLVs(tlvs []TLV) ([]byte, error) {
	var out []byte
	for _, t := range tlvs {
		if len(t.Value) > 255 {
			return nil, fmt.Errorf("llcp: encode tlv %#x: %w: value too long", t.Type, errs.ErrWireFormat)
		}
		out = append(out, t.Type, byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out, nil
}

// DecodeTLVs parses a sequence of TLVs occupying the whole of buf.
func DecodeTLVs(buf []byte) ([]TLV, error) {
	var out []TLV
	pos := 0
	for pos < len(buf) {
		if len(buf) < pos+2 {
			return nil, fmt.Errorf("llcp: decode tlv: %w: header truncated at offset %d", errs.ErrWireFormat, pos)
		}
		typ := buf[pos]
		length := int(buf[pos+1])
		pos += 2
		if len(buf) < pos+length {
			return nil, fmt.Errorf("llcp: decode tlv: %w: value truncated at offset %d", errs.ErrWireFormat, pos)
		}
		out = append(out, TLV{Type: typ, Value: append([]byte(nil), buf[pos:pos+length]...)})
		pos += length
	}
	return out, nil
}

// FindTLV returns the first TLV of the given type, if present.
func FindTLV(tlvs []TLV, typ byte) (TLV, bool) {
	for _, t := range tlvs {
		if t.Type == typ {
			return t, true
		}
	}
	return TLV{}, false
}

// MIUXValue decodes a 2-byte MIUX TLV value into an MIU extension offset
// (11 bits).
func MIUXValue(v []byte) (uint16, error) {
	if len(v) != 2 {
		return 0, fmt.Errorf("llcp: decode miux: %w: expected 2 bytes, have %d", errs.ErrWireFormat, len(v))
	}
	return (uint16(v[0])<<8 | uint16(v[1])) & 0x07ff, nil
}

// EncodeMIUX encodes an MIU extension offset into a 2-byte TLV value.
func EncodeMIUX(offset uint16) []byte {
	offset &= 0x07ff
	return []byte{byte(offset >> 8), byte(offset)}
}

// RWValue decodes a 1-byte RW TLV value into a receive-window size (4 bits).
func RWValue(v []byte) (byte, error) {
	if len(v) != 1 {
		return 0, fmt.Errorf("llcp: decode rw: %w: expected 1 byte, have %d", errs.ErrWireFormat, len(v))
	}
	return v[0] & 0x0f, nil
}

// EncodeRW encodes a receive-window size into a 1-byte TLV value.
func EncodeRW(rw byte) []byte {
	return []byte{rw & 0x0f}
}

const (
	// DefaultMIU is the default maximum information unit size in bytes.
	DefaultMIU = 128
	// DefaultRW is the default receive window size.
	DefaultRW = 1
	// SAPCount is the number of service access points in the address space.
	SAPCount = 64
)
