// Package snep encodes and decodes Simple NDEF Exchange Protocol messages
// per the NFC Forum SNEP 1.0 specification, riding over an LLCP data link.
package snep

import (
	"encoding/binary"
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

// Message codes (SNEP 1.0 section 3.1).
const (
	ReqContinue byte = 0x00
	ReqGet      byte = 0x01
	ReqPut      byte = 0x02
	ReqReject   byte = 0x7f

	RspContinue          byte = 0x80
	RspSuccess            byte = 0x81
	RspNotFound           byte = 0xc0
	RspExcessData         byte = 0xc1
	RspBadRequest         byte = 0xc2
	RspNotImplemented     byte = 0xe0
	RspUnsupportedVersion byte = 0xe1
	RspReject             byte = 0xff
)

// MessageName returns a short diagnostic name for a message code.
func MessageName(msg byte) string {
	switch msg {
	case ReqContinue:
		return "REQ_CONTINUE"
	case ReqGet:
		return "REQ_GET"
	case ReqPut:
		return "REQ_PUT"
	case ReqReject:
		return "REQ_REJECT"
	case RspContinue:
		return "RSP_CONTINUE"
	case RspSuccess:
		return "RSP_SUCCESS"
	case RspNotFound:
		return "RSP_NOT_FOUND"
	case RspExcessData:
		return "RSP_EXCESS_DATA"
	case RspBadRequest:
		return "RSP_BAD_REQUEST"
	case RspNotImplemented:
		return "RSP_NOT_IMPLEMENTED"
	case RspUnsupportedVersion:
		return "RSP_UNSUPPORTED_VERSION"
	case RspReject:
		return "RSP_REJECT"
	default:
		return fmt.Sprintf("MSG(%#x)", msg)
	}
}

// VersionMajor and VersionMinor are the only version this module supports.
const (
	VersionMajor byte = 1
	VersionMinor byte = 0
)

const headerLen = 6

// Header is the 6-byte SNEP header: version, message code, and 4-byte
// big-endian information-field length.
type Header struct {
	Major byte
	Minor byte
	Msg   byte
	Len   uint32
}

// Version packs major/minor into the single version byte (high nibble
// major, low nibble minor).
func (h Header) Version() byte {
	return (h.Major&0x0f)<<4 | (h.Minor & 0x0f)
}

// EncodeHeader serializes a 6-byte SNEP header.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, headerLen)
	buf[0] = h.Version()
	buf[1] = h.Msg
	binary.BigEndian.PutUint32(buf[2:6], h.Len)
	return buf
}

// DecodeHeader parses the 6-byte header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, fmt.Errorf("snep: decode header: %w: need %d bytes, have %d", errs.ErrWireFormat, headerLen, len(buf))
	}
	return Header{
		Major: buf[0] >> 4,
		Minor: buf[0] & 0x0f,
		Msg:   buf[1],
		Len:   binary.BigEndian.Uint32(buf[2:6]),
	}, nil
}

// Message is a fully decoded SNEP message: header plus information field.
type Message struct {
	Header Header
	Info   []byte
}

// Encode serializes a complete SNEP message with the supported version.
// Len is taken from len(info).
func Encode(msg byte, info []byte) []byte {
	h := Header{Major: VersionMajor, Minor: VersionMinor, Msg: msg, Len: uint32(len(info))}
	return append(EncodeHeader(h), info...)
}

// Decode parses a complete SNEP message from buf. buf must hold at least Len
// information bytes after the header; any bytes beyond them are ignored.
// Callers reassembling a fragmented PUT/GET request
// across multiple LLCP I-PDUs accumulate Info across calls using the header
// from the first fragment.
func Decode(buf []byte) (Message, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Message{}, fmt.Errorf("snep: decode message: %w", err)
	}
	rest := buf[headerLen:]
	if uint32(len(rest)) < h.Len {
		return Message{}, fmt.Errorf("snep: decode message: %w: need %d info bytes, have %d", errs.ErrWireFormat, h.Len, len(rest))
	}
	return Message{Header: h, Info: append([]byte(nil), rest[:h.Len]...)}, nil
}
