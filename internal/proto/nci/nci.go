// Package nci encodes and decodes NCI 1.0 packet headers and the core
// command/response/notification payloads used by the controller.
package nci

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

// Message Type values, occupying the top 3 bits of header byte 0.
const (
	MTData byte = 0x00
	MTCmd  byte = 0x01
	MTRsp  byte = 0x02
	MTNtf  byte = 0x03
)

// Group Identifier values (NCI 1.0 table 3).
const (
	GIDCore byte = 0x00
	GIDRF   byte = 0x01
	GIDProp byte = 0x0f
)

// Opcodes within GIDCore.
const (
	OIDCoreReset       byte = 0x00
	OIDCoreInit        byte = 0x01
	OIDCoreSetConfig   byte = 0x02
	OIDCoreGetConfig   byte = 0x03
	OIDCoreConnCreate  byte = 0x04
	OIDCoreConnClose   byte = 0x05
	OIDCoreGenericErr  byte = 0x07
	OIDCoreIfaceErr    byte = 0x08
)

// Opcodes within GIDRF.
const (
	OIDRFDiscoverMap     byte = 0x00
	OIDRFSetListenMode   byte = 0x01
	OIDRFDiscover        byte = 0x03
	OIDRFDiscoverSelect  byte = 0x04
	OIDRFIntfActivated   byte = 0x05
	OIDRFDeactivate      byte = 0x06
	OIDRFFieldInfo       byte = 0x07
	OIDRFT3TPolling      byte = 0x08
	OIDRFParameterUpdate byte = 0x09
)

const headerLen = 3

// Header is the 3-byte NCI packet control header.
type Header struct {
	MT   byte
	PBF  bool // packet boundary flag: more fragments follow
	GID  byte
	OID  byte // valid for Cmd/Rsp/Ntf; unused (reserved) for Data
	Len  byte
}

// EncodeHeader writes the 3-byte header for a payload of length payloadLen.
// For MTData, oid is ignored and the reserved bits are written as zero.
func EncodeHeader(mt byte, pbf bool, gid, oid byte, payloadLen int) ([]byte, error) {
	if payloadLen < 0 || payloadLen > 255 {
		return nil, fmt.Errorf("nci: encode header: %w: payload length %d out of range", errs.ErrWireFormat, payloadLen)
	}
	if gid > 0x0f {
		return nil, fmt.Errorf("nci: encode header: %w: gid %#x exceeds 4 bits", errs.ErrWireFormat, gid)
	}
	b0 := (mt & 0x03) << 5
	if pbf {
		b0 |= 0x10
	}
	b0 |= gid & 0x0f
	hdr := make([]byte, headerLen)
	hdr[0] = b0
	if mt == MTData {
		hdr[1] = 0x00
	} else {
		hdr[1] = oid & 0x3f
	}
	hdr[2] = byte(payloadLen)
	return hdr, nil
}

// DecodeHeader parses the 3-byte header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, fmt.Errorf("nci: decode header: %w: need %d bytes, have %d", errs.ErrWireFormat, headerLen, len(buf))
	}
	h := Header{
		MT:  (buf[0] >> 5) & 0x03,
		PBF: buf[0]&0x10 != 0,
		GID: buf[0] & 0x0f,
		OID: buf[1] & 0x3f,
		Len: buf[2],
	}
	return h, nil
}

// Packet is a fully decoded NCI packet: header plus payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// Decode parses a complete NCI packet (header and payload) from buf.
func Decode(buf []byte) (Packet, int, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Packet{}, 0, err
	}
	total := headerLen + int(h.Len)
	if len(buf) < total {
		return Packet{}, 0, fmt.Errorf("nci: decode packet: %w: need %d bytes, have %d", errs.ErrWireFormat, total, len(buf))
	}
	return Packet{
		Header:  h,
		Payload: append([]byte(nil), buf[headerLen:total]...),
	}, total, nil
}

// Encode serializes a complete NCI packet from its header fields and payload.
func Encode(mt byte, pbf bool, gid, oid byte, payload []byte) ([]byte, error) {
	hdr, err := EncodeHeader(mt, pbf, gid, oid, len(payload))
	if err != nil {
		return nil, err
	}
	return append(hdr, payload...), nil
}

// Status codes returned in RSP payloads (NCI 1.0 table 101).
const (
	StatusOK                  byte = 0x00
	StatusRejected            byte = 0x01
	StatusRFFrameCorrupted    byte = 0x02
	StatusFailed              byte = 0x03
	StatusNotInitialized      byte = 0x04
	StatusSyntaxError         byte = 0x05
	StatusSemanticError       byte = 0x06
	StatusUnknownGID          byte = 0x07
	StatusUnknownOID          byte = 0x08
	StatusInvalidParam        byte = 0x09
	StatusMessageSizeExceeded byte = 0x0a
)
