// Package llcp implements the per-(DSAP,SSAP) data-link state machine and
// PDU dispatch for the Logical Link Control Protocol, riding over the
// wire-level codec in internal/proto/llcp.
package llcp

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
	wire "github.com/nfcemu/nfcemu/internal/proto/llcp"
)

// Status is a data link's connection state.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Disconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

const reassemblyCapacity = 512

// DataLink holds the connection-oriented state for a single (dsap, ssap)
// pair, per LLCP 1.1 section 5.5.
type DataLink struct {
	Status Status

	// Sequence variables, mod 16.
	VS  byte
	VSA byte
	VR  byte
	VRA byte

	MIU  int
	RWL  byte
	RWR  byte

	// Pending holds PDUs queued while Connecting, flushed into the RE's
	// global xmit queue once the link reaches Connected.
	Pending [][]byte

	// RBuf is the reassembly buffer: I-PDU information fields received
	// with no SAP handler are appended to it, keeping at most the most
	// recent reassemblyCapacity bytes.
	RBuf []byte
}

// NewDataLink returns a data link in its initial Disconnected state with
// protocol defaults.
func NewDataLink() *DataLink {
	return &DataLink{
		Status: Disconnected,
		MIU:    wire.DefaultMIU,
		RWL:    wire.DefaultRW,
		RWR:    wire.DefaultRW,
	}
}

// Reset returns the link to Disconnected and clears sequence/queue state.
func (dl *DataLink) Reset() {
	dl.Status = Disconnected
	dl.VS, dl.VSA, dl.VR, dl.VRA = 0, 0, 0, 0
	dl.Pending = nil
	dl.RBuf = nil
}

// ApplyTLVs interprets the TLVs carried by a CONNECT/CC PDU, updating MIU
// and RWR. Malformed or unrecognized TLVs are skipped, not fatal, per the
// parameter-parsing rule: bad input degrades to defaults rather than
// aborting the handshake.
func (dl *DataLink) ApplyTLVs(tlvs []wire.TLV) {
	for _, t := range tlvs {
		switch t.Type {
		case wire.TLVMIUX:
			if miux, err := wire.MIUXValue(t.Value); err == nil {
				dl.MIU = wire.DefaultMIU + int(miux)
			}
		case wire.TLVRW:
			if rw, err := wire.RWValue(t.Value); err == nil {
				dl.RWR = rw
			}
		}
	}
}

// AcceptConnect transitions a Disconnected link to Connected on an inbound
// CONNECT PDU, applying any negotiated parameters.
func (dl *DataLink) AcceptConnect(tlvs []wire.TLV) error {
	if dl.Status != Disconnected {
		return fmt.Errorf("llcp: accept connect: %w: link in state %s", errs.ErrWrongState, dl.Status)
	}
	dl.Reset()
	dl.ApplyTLVs(tlvs)
	dl.Status = Connected
	return nil
}

// InitiateConnect transitions a Disconnected link to Connecting for a
// locally-originated CONNECT.
func (dl *DataLink) InitiateConnect() error {
	if dl.Status != Disconnected {
		return fmt.Errorf("llcp: initiate connect: %w: link in state %s", errs.ErrWrongState, dl.Status)
	}
	dl.Status = Connecting
	return nil
}

// AcceptCC transitions a Connecting link to Connected on an inbound CC,
// returning the PDUs that were queued while Connecting so the caller can
// flush them onto the RE's global xmit queue.
func (dl *DataLink) AcceptCC(tlvs []wire.TLV) ([][]byte, error) {
	if dl.Status != Connecting {
		return nil, fmt.Errorf("llcp: accept cc: %w: link in state %s", errs.ErrWrongState, dl.Status)
	}
	dl.ApplyTLVs(tlvs)
	dl.Status = Connected
	flushed := dl.Pending
	dl.Pending = nil
	return flushed, nil
}

// AcceptDisc transitions any state to Disconnected on an inbound DISC or DM.
func (dl *DataLink) AcceptDisc() {
	dl.Reset()
}

// AcceptI advances the receive sequence number and either hands the
// information field to handle (typically the SNEP SAP handler) or appends
// it to the reassembly buffer when handle is nil. It returns handle's reply,
// if any.
func (dl *DataLink) AcceptI(seq wire.Sequence, info []byte, handle func([]byte) ([]byte, error)) ([]byte, error) {
	if dl.Status != Connected {
		return nil, fmt.Errorf("llcp: accept i: %w: link in state %s", errs.ErrWrongState, dl.Status)
	}
	dl.VR = (dl.VR + 1) % 16
	dl.VSA = seq.NR

	if handle != nil {
		return handle(info)
	}
	dl.RBuf = append(append([]byte(nil), dl.RBuf...), info...)
	if len(dl.RBuf) > reassemblyCapacity {
		dl.RBuf = dl.RBuf[len(dl.RBuf)-reassemblyCapacity:]
	}
	return nil, nil
}

// AcceptRR records the peer's reported receive sequence number.
func (dl *DataLink) AcceptRR(nr byte) {
	dl.VSA = nr
}

// AcceptRNR records the peer's reported receive sequence number; the RNR
// condition (receiver not ready) is otherwise not separately tracked since
// this controller never throttles on it.
func (dl *DataLink) AcceptRNR(nr byte) {
	dl.VSA = nr
}

// NextSend returns the sequence pair for the next outbound I-PDU and
// advances VS.
func (dl *DataLink) NextSend() wire.Sequence {
	seq := wire.Sequence{NS: dl.VS, NR: dl.VR}
	dl.VS = (dl.VS + 1) % 16
	return seq
}

// QueuePending appends a PDU to the link's per-link pending queue while
// Connecting.
func (dl *DataLink) QueuePending(pdu []byte) {
	dl.Pending = append(dl.Pending, pdu)
}
