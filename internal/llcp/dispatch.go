package llcp

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
	wire "github.com/nfcemu/nfcemu/internal/proto/llcp"
)

// LinkTable resolves the data link addressed by a (remote, local) SAP pair.
// The RE engine implements this over its dl[SAP_COUNT][SAP_COUNT] matrix.
type LinkTable interface {
	Link(remoteSAP, localSAP byte) *DataLink
}

// SNEPHandler is invoked for an inbound I-PDU addressed to a SAP that hosts
// the SNEP service, and returns the reply information field, if any.
type SNEPHandler func(dl *DataLink, localSAP byte, info []byte) ([]byte, error)

// Dispatch interprets a single inbound PDU against the link identified by
// its (DSAP, SSAP), returning a reply PDU to send back (if the PDU type and
// link state call for one) and any raw PDUs that were queued on the link
// while Connecting and are now flushed by an inbound CC. dsap in the
// inbound PDU addresses a local SAP; from the RE's perspective the link is
// indexed dl[remoteSAP][localSAP], where the remote SAP is the inbound
// PDU's SSAP and the local SAP is its DSAP.
func Dispatch(pdu wire.PDU, links LinkTable, snep SNEPHandler) (*wire.PDU, [][]byte, error) {
	localSAP := pdu.Header.DSAP
	remoteSAP := pdu.Header.SSAP

	switch pdu.Header.PType {
	case wire.PTypeSYMM:
		return nil, nil, nil

	case wire.PTypeCONNECT:
		dl := links.Link(remoteSAP, localSAP)
		tlvs, err := wire.DecodeTLVs(pdu.Info)
		if err != nil {
			return nil, nil, fmt.Errorf("llcp: dispatch connect: %w", err)
		}
		if err := dl.AcceptConnect(tlvs); err != nil {
			return nil, nil, err
		}
		reply := wire.PDU{
			Header: wire.Header{DSAP: remoteSAP, PType: wire.PTypeCC, SSAP: localSAP},
		}
		return &reply, nil, nil

	case wire.PTypeCC:
		dl := links.Link(remoteSAP, localSAP)
		tlvs, err := wire.DecodeTLVs(pdu.Info)
		if err != nil {
			return nil, nil, fmt.Errorf("llcp: dispatch cc: %w", err)
		}
		flushed, err := dl.AcceptCC(tlvs)
		if err != nil {
			return nil, nil, err
		}
		return nil, flushed, nil

	case wire.PTypeDISC:
		dl := links.Link(remoteSAP, localSAP)
		dl.AcceptDisc()
		reply := wire.PDU{
			Header: wire.Header{DSAP: remoteSAP, PType: wire.PTypeDM, SSAP: localSAP},
			Info:   []byte{0x00},
		}
		return &reply, nil, nil

	case wire.PTypeDM:
		dl := links.Link(remoteSAP, localSAP)
		dl.AcceptDisc()
		return nil, nil, nil

	case wire.PTypeI:
		if len(pdu.Info) < 1 {
			return nil, nil, fmt.Errorf("llcp: dispatch i: %w: missing sequence byte", errs.ErrWireFormat)
		}
		seq := wire.DecodeSequence(pdu.Info[0])
		info := pdu.Info[1:]
		dl := links.Link(remoteSAP, localSAP)

		var handler func([]byte) ([]byte, error)
		if snep != nil {
			handler = func(b []byte) ([]byte, error) { return snep(dl, localSAP, b) }
		}
		replyInfo, err := dl.AcceptI(seq, info, handler)
		if err != nil {
			return nil, nil, err
		}
		if replyInfo == nil {
			return nil, nil, nil
		}
		outSeq := dl.NextSend()
		reply := wire.PDU{
			Header: wire.Header{DSAP: remoteSAP, PType: wire.PTypeI, SSAP: localSAP},
			Info:   append([]byte{wire.EncodeSequence(outSeq)}, replyInfo...),
		}
		return &reply, nil, nil

	case wire.PTypeRR:
		if len(pdu.Info) < 1 {
			return nil, nil, fmt.Errorf("llcp: dispatch rr: %w: missing sequence byte", errs.ErrWireFormat)
		}
		dl := links.Link(remoteSAP, localSAP)
		dl.AcceptRR(wire.DecodeSequence(pdu.Info[0]).NR)
		return nil, nil, nil

	case wire.PTypeRNR:
		if len(pdu.Info) < 1 {
			return nil, nil, fmt.Errorf("llcp: dispatch rnr: %w: missing sequence byte", errs.ErrWireFormat)
		}
		dl := links.Link(remoteSAP, localSAP)
		dl.AcceptRNR(wire.DecodeSequence(pdu.Info[0]).NR)
		return nil, nil, nil

	case wire.PTypeFRMR:
		// Logged by the caller; no state transition, no reply.
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("llcp: dispatch: %w: unhandled ptype %s", errs.ErrWireFormat, wire.PTypeName(pdu.Header.PType))
	}
}

// BuildConnect constructs an outbound CONNECT PDU for a locally-initiated
// connection attempt.
func BuildConnect(remoteSAP, localSAP byte, tlvs []wire.TLV) (wire.PDU, error) {
	info, err := wire.EncodeTLVs(tlvs)
	if err != nil {
		return wire.PDU{}, fmt.Errorf("llcp: build connect: %w", err)
	}
	return wire.PDU{
		Header: wire.Header{DSAP: remoteSAP, PType: wire.PTypeCONNECT, SSAP: localSAP},
		Info:   info,
	}, nil
}

// BuildSYMM constructs a bare SYMM PDU.
func BuildSYMM() wire.PDU {
	return wire.PDU{Header: wire.Header{DSAP: 0, PType: wire.PTypeSYMM, SSAP: 0}}
}
