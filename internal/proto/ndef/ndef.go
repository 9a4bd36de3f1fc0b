// Package ndef encodes and decodes NFC Data Exchange Format records and
// messages, per the NFC Forum NDEF Technical Specification.
package ndef

import (
	"encoding/binary"
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

// Record header flag bits (NDEF spec section 2.3).
const (
	FlagMB byte = 0x80 // message begin
	FlagME byte = 0x40 // message end
	FlagCF byte = 0x20 // chunk flag
	FlagSR byte = 0x10 // short record
	FlagIL byte = 0x08 // id length present
	tnfMask      = 0x07
)

// Type Name Format values (NDEF spec section 2.3.2).
const (
	TNFEmpty        byte = 0x00
	TNFWellKnown    byte = 0x01
	TNFMediaType    byte = 0x02
	TNFAbsoluteURI  byte = 0x03
	TNFExternal     byte = 0x04
	TNFUnknown      byte = 0x05
	TNFUnchanged    byte = 0x06
	TNFReserved     byte = 0x07
)

// Record is a single NDEF record within a message.
type Record struct {
	TNF     byte
	Type    []byte
	ID      []byte
	Payload []byte
}

// Message is an ordered sequence of records. EncodeMessage sets MB on the
// first record and ME on the last; the chunk flag (CF) is never set since
// this module never emits chunked records.
type Message struct {
	Records []Record
}

// EncodeMessage serializes every record in m, always using the short-record
// form when the payload fits (length < 256) and the 4-byte form otherwise.
func EncodeMessage(m Message) ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, fmt.Errorf("ndef: encode message: %w: empty message", errs.ErrWireFormat)
	}
	var out []byte
	for i, r := range m.Records {
		flags := r.TNF & tnfMask
		if i == 0 {
			flags |= FlagMB
		}
		if i == len(m.Records)-1 {
			flags |= FlagME
		}
		short := len(r.Payload) < 256
		if short {
			flags |= FlagSR
		}
		if len(r.ID) > 0 {
			flags |= FlagIL
		}
		if len(r.Type) > 255 {
			return nil, fmt.Errorf("ndef: encode record %d: %w: type field too long", i, errs.ErrWireFormat)
		}
		if len(r.ID) > 255 {
			return nil, fmt.Errorf("ndef: encode record %d: %w: id field too long", i, errs.ErrWireFormat)
		}

		buf := []byte{flags, byte(len(r.Type))}
		if short {
			buf = append(buf, byte(len(r.Payload)))
		} else {
			var plen [4]byte
			binary.BigEndian.PutUint32(plen[:], uint32(len(r.Payload)))
			buf = append(buf, plen[:]...)
		}
		if flags&FlagIL != 0 {
			buf = append(buf, byte(len(r.ID)))
		}
		buf = append(buf, r.Type...)
		if flags&FlagIL != 0 {
			buf = append(buf, r.ID...)
		}
		buf = append(buf, r.Payload...)
		out = append(out, buf...)
	}
	return out, nil
}

// DecodeMessage parses a full NDEF message from buf. It requires the first
// record to carry MB and the last to carry ME, and rejects chunked records
// (CF) since no emulated tag or SNEP peer in this module produces them.
func DecodeMessage(buf []byte) (Message, error) {
	var msg Message
	pos := 0
	first := true
	for pos < len(buf) {
		r, n, err := decodeRecord(buf[pos:], first)
		if err != nil {
			return Message{}, fmt.Errorf("ndef: decode message at offset %d: %w", pos, err)
		}
		msg.Records = append(msg.Records, r.Record)
		if first && r.Flags&FlagMB == 0 {
			return Message{}, fmt.Errorf("ndef: decode message: %w: first record missing MB", errs.ErrWireFormat)
		}
		first = false
		pos += n
		if r.Flags&FlagME != 0 {
			if pos != len(buf) {
				return Message{}, fmt.Errorf("ndef: decode message: %w: trailing bytes after ME", errs.ErrWireFormat)
			}
			return msg, nil
		}
	}
	return Message{}, fmt.Errorf("ndef: decode message: %w: missing ME record", errs.ErrWireFormat)
}

type decodedRecord struct {
	Record
	Flags byte
}

func decodeRecord(buf []byte, first bool) (decodedRecord, int, error) {
	if len(buf) < 2 {
		return decodedRecord{}, 0, fmt.Errorf("%w: record header truncated", errs.ErrWireFormat)
	}
	flags := buf[0]
	typeLen := int(buf[1])
	if flags&FlagCF != 0 {
		return decodedRecord{}, 0, fmt.Errorf("%w: chunked records not supported", errs.ErrWireFormat)
	}
	pos := 2
	var payloadLen int
	if flags&FlagSR != 0 {
		if len(buf) < pos+1 {
			return decodedRecord{}, 0, fmt.Errorf("%w: short record payload length truncated", errs.ErrWireFormat)
		}
		payloadLen = int(buf[pos])
		pos++
	} else {
		if len(buf) < pos+4 {
			return decodedRecord{}, 0, fmt.Errorf("%w: record payload length truncated", errs.ErrWireFormat)
		}
		payloadLen = int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		pos += 4
	}
	var idLen int
	if flags&FlagIL != 0 {
		if len(buf) < pos+1 {
			return decodedRecord{}, 0, fmt.Errorf("%w: id length truncated", errs.ErrWireFormat)
		}
		idLen = int(buf[pos])
		pos++
	}
	need := pos + typeLen + idLen + payloadLen
	if len(buf) < need {
		return decodedRecord{}, 0, fmt.Errorf("%w: record body truncated, need %d have %d", errs.ErrWireFormat, need, len(buf))
	}
	typ := buf[pos : pos+typeLen]
	pos += typeLen
	var id []byte
	if idLen > 0 {
		id = buf[pos : pos+idLen]
		pos += idLen
	}
	payload := buf[pos : pos+payloadLen]
	pos += payloadLen

	return decodedRecord{
		Record: Record{
			TNF:     flags & tnfMask,
			Type:    append([]byte(nil), typ...),
			ID:      append([]byte(nil), id...),
			Payload: append([]byte(nil), payload...),
		},
		Flags: flags,
	}, pos, nil
}
