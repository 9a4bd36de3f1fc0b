// Package hci encodes and decodes the vendor Host Controller Interface
// packets used by the Broadcom BCM2079x-class command plane.
package hci

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

const headerLen = 3

// Packet is a decoded HCI packet: service, command, and payload.
type Packet struct {
	Service byte
	Command byte
	Payload []byte
}

// Encode serializes an HCI packet. payload must be at most 256 bytes.
func Encode(service, command byte, payload []byte) ([]byte, error) {
	if len(payload) > 256 {
		return nil, fmt.Errorf("hci: encode: %w: payload length %d exceeds 256", errs.ErrWireFormat, len(payload))
	}
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, service, command, byte(len(payload)))
	buf = append(buf, payload...)
	return buf, nil
}

// Decode parses a complete HCI packet from buf, returning the packet and the
// number of bytes consumed.
func Decode(buf []byte) (Packet, int, error) {
	if len(buf) < headerLen {
		return Packet{}, 0, fmt.Errorf("hci: decode: %w: need %d bytes, have %d", errs.ErrWireFormat, headerLen, len(buf))
	}
	n := int(buf[2])
	total := headerLen + n
	if len(buf) < total {
		return Packet{}, 0, fmt.Errorf("hci: decode: %w: need %d bytes, have %d", errs.ErrWireFormat, total, len(buf))
	}
	return Packet{
		Service: buf[0],
		Command: buf[1],
		Payload: append([]byte(nil), buf[headerLen:total]...),
	}, total, nil
}

// CmdComplete is the event payload layout for a completed HCI command.
type CmdComplete struct {
	NPackets byte
	Service  byte
	Command  byte
	Status   byte
}

// EncodeCmdComplete serializes a CmdComplete event payload.
//
// The reference BCM2079x firmware reports npackets=0x3c regardless of the
// actual outstanding command credit count; callers constructing a
// CmdComplete for compatibility with host drivers that check this field
// should set NPackets to that value explicitly.
func EncodeCmdComplete(c CmdComplete) []byte {
	return []byte{c.NPackets, c.Service, c.Command, c.Status}
}

// DecodeCmdComplete parses a CmdComplete event payload.
func DecodeCmdComplete(buf []byte) (CmdComplete, error) {
	if len(buf) < 4 {
		return CmdComplete{}, fmt.Errorf("hci: decode cmd_complete: %w: need 4 bytes, have %d", errs.ErrWireFormat, len(buf))
	}
	return CmdComplete{
		NPackets: buf[0],
		Service:  buf[1],
		Command:  buf[2],
		Status:   buf[3],
	}, nil
}

// Known service identifiers for the vendor command set.
const (
	ServiceCore byte = 0x00
	ServiceNFC  byte = 0x01
	ServiceRF   byte = 0x02
)

// BCM2079x-compatible cmd_complete npackets value, reported regardless of
// actual outstanding command credit.
const CmdCompleteNPackets = 0x3c
