// Package re implements the remote-endpoint engine: the simulated RF peer
// that owns an RF protocol, an LLCP data-link matrix, transmit scheduling,
// and (for tag-kind peers) a memory image served through the tag command
// interpreter.
package re

import (
	"fmt"
	"time"

	"github.com/nfcemu/nfcemu/internal/errs"
	"github.com/nfcemu/nfcemu/internal/llcp"
	wire "github.com/nfcemu/nfcemu/internal/proto/llcp"
	"github.com/nfcemu/nfcemu/internal/snep"
	"github.com/nfcemu/nfcemu/internal/tag"
	"github.com/nfcemu/nfcemu/pkg/metrics"
)

// SAPCount is the size of the LLCP service access point address space.
const SAPCount = wire.SAPCount

// Protocol identifies the RF protocol a remote endpoint emulates.
type Protocol int

const (
	ProtocolT1T Protocol = iota
	ProtocolT2T
	ProtocolT3T
	ProtocolISODEP
	ProtocolNFCDEP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolT1T:
		return "t1t"
	case ProtocolT2T:
		return "t2t"
	case ProtocolT3T:
		return "t3t"
	case ProtocolISODEP:
		return "iso-dep"
	case ProtocolNFCDEP:
		return "nfc-dep"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// IsTag reports whether this protocol is served by a tag memory image
// rather than the LLCP/SNEP stack.
func (p Protocol) IsTag() bool {
	return p == ProtocolT1T || p == ProtocolT2T || p == ProtocolT3T || p == ProtocolISODEP
}

// RFProtoByte returns the NCI RF_PROTOCOL_* wire value for p, per the NCI
// 1.0 protocol enumeration (T1T=1, T2T=2, T3T=3, ISO-DEP=4, NFC-DEP=5).
func (p Protocol) RFProtoByte() byte {
	switch p {
	case ProtocolT1T:
		return 1
	case ProtocolT2T:
		return 2
	case ProtocolT3T:
		return 3
	case ProtocolISODEP:
		return 4
	case ProtocolNFCDEP:
		return 5
	default:
		return 0
	}
}

const bufCapacity = 1024

// TimerHost is the cooperative timing service the RE's xmit timer is armed
// against; adaptor.Timer implements it over time.AfterFunc. An endpoint
// whose Timer is nil arms no xmit timer.
type TimerHost interface {
	Arm(d time.Duration, fire func())
	Cancel()
	Pending() bool
}

const xmitTimerPeriod = 2000 * time.Millisecond

// Endpoint is a simulated RF peer.
type Endpoint struct {
	Protocol Protocol
	TechMode string // e.g. "A-poll", "B-poll", "F-poll"
	NFCID1   []byte
	NFCID3   []byte

	Tag *tag.Tag // non-nil iff Protocol.IsTag()

	ID int // discovered id; 0 when not yet discovered

	dl [SAPCount][SAPCount]*llcp.DataLink

	LastDSAP int // -1 when never observed
	LastSSAP int

	XmitNext bool
	Timer    TimerHost
	xmitQ    [][]byte

	ConnID int

	SBuf []byte // host-written bytes addressed to this peer
	RBuf []byte // peer-produced bytes pending for the host

	snepSAP byte
	snep    *snep.Endpoint

	// Metrics is optional; a nil value disables LLCP-traffic metrics on
	// this endpoint at zero overhead.
	Metrics metrics.LLCPMetrics
}

// New constructs an endpoint in its initial (undiscovered) state.
func New(proto Protocol, techMode string, nfcid1, nfcid3 []byte) *Endpoint {
	e := &Endpoint{
		Protocol: proto,
		TechMode: techMode,
		NFCID1:   append([]byte(nil), nfcid1...),
		NFCID3:   append([]byte(nil), nfcid3...),
		LastDSAP: -1,
		LastSSAP: -1,
		SBuf:     make([]byte, 0, bufCapacity),
		RBuf:     make([]byte, 0, bufCapacity),
		snepSAP:  4, // well-known SNEP SAP per NFC Forum assignment
	}
	if proto == ProtocolNFCDEP {
		e.snep = snep.New()
	}
	return e
}

// SetMetrics wires LLCP and SNEP metrics collection onto this endpoint.
// Called once after construction; either argument may be nil to leave
// that layer's metrics disabled.
func (e *Endpoint) SetMetrics(llcpMetrics metrics.LLCPMetrics, snepMetrics metrics.SNEPMetrics) {
	e.Metrics = llcpMetrics
	if e.snep != nil {
		e.snep.Metrics = snepMetrics
	}
}

// Link implements llcp.LinkTable, lazily allocating the data link for a
// (remoteSAP, localSAP) pair.
func (e *Endpoint) Link(remoteSAP, localSAP byte) *llcp.DataLink {
	if e.dl[remoteSAP][localSAP] == nil {
		e.dl[remoteSAP][localSAP] = llcp.NewDataLink()
	}
	return e.dl[remoteSAP][localSAP]
}

// RememberSAPs records the most recently addressed (dsap, ssap) pair so a
// subsequent "-1" console argument can resolve to it.
func (e *Endpoint) RememberSAPs(dsap, ssap byte) {
	e.LastDSAP = int(dsap)
	e.LastSSAP = int(ssap)
}

// ResolveSAP maps a console-supplied SAP argument (-1 meaning "last
// observed") to a concrete value.
func (e *Endpoint) ResolveSAP(arg int, last int) (byte, error) {
	if arg == -1 {
		if last < 0 {
			return 0, fmt.Errorf("re: resolve sap: %w: no SAP observed yet", errs.ErrNoActiveEndpoint)
		}
		return byte(last), nil
	}
	if arg < 0 || arg >= SAPCount {
		return 0, fmt.Errorf("re: resolve sap: %w: sap %d out of range", errs.ErrWireFormat, arg)
	}
	return byte(arg), nil
}

// snepHandler adapts the endpoint's SNEP layer to llcp.SNEPHandler, only
// responding for the well-known SNEP SAP.
func (e *Endpoint) snepHandler(dl *llcp.DataLink, localSAP byte, info []byte) ([]byte, error) {
	if e.snep == nil || localSAP != e.snepSAP {
		return nil, nil
	}
	return e.snep.HandleFragment(dl, info)
}

// ProcessLLCP decodes and dispatches one inbound LLCP PDU, queuing or
// sending the reply per the SendPDUFromRE scheduling rule, and marks the
// endpoint's turn to transmit.
func (e *Endpoint) ProcessLLCP(payload []byte, send func([]byte) error) error {
	pdu, err := wire.Decode(payload)
	if err != nil {
		return fmt.Errorf("re: process llcp: %w", err)
	}
	if e.Metrics != nil {
		e.Metrics.RecordPDU(wire.PTypeName(pdu.Header.PType), "rx")
	}
	e.RememberSAPs(pdu.Header.DSAP, pdu.Header.SSAP)
	e.XmitNext = true
	if e.Timer != nil {
		e.Timer.Arm(xmitTimerPeriod, func() { e.fireXmitTimer(send) })
	}

	reply, flushed, err := llcp.Dispatch(pdu, e, e.snepHandler)
	if err != nil {
		return fmt.Errorf("re: process llcp: %w", err)
	}
	if reply != nil {
		out, err := wire.Encode(*reply)
		if err != nil {
			return fmt.Errorf("re: process llcp: %w", err)
		}
		if err := e.SendPDUFromRE(out, send); err != nil {
			return fmt.Errorf("re: process llcp: %w", err)
		}
	}
	for _, pending := range flushed {
		if err := e.SendPDUFromRE(pending, send); err != nil {
			return fmt.Errorf("re: process llcp: %w", err)
		}
	}
	return nil
}

// QueueConnect builds and queues (or sends immediately, per the
// xmit_next scheduling rule) a locally-initiated CONNECT PDU on the
// (remoteSAP, localSAP) link, transitioning it to Connecting. Used by the
// operator console's "llcp connect" command.
func (e *Endpoint) QueueConnect(remoteSAP, localSAP byte, tlvs []wire.TLV, send func([]byte) error) error {
	dl := e.Link(remoteSAP, localSAP)
	if err := dl.InitiateConnect(); err != nil {
		return fmt.Errorf("re: queue connect: %w", err)
	}
	pdu, err := llcp.BuildConnect(remoteSAP, localSAP, tlvs)
	if err != nil {
		return fmt.Errorf("re: queue connect: %w", err)
	}
	out, err := wire.Encode(pdu)
	if err != nil {
		return fmt.Errorf("re: queue connect: %w", err)
	}
	return e.SendPDUFromRE(out, send)
}

// QueueDataOnLink encodes info as an I-PDU on the (remoteSAP, localSAP)
// link and queues it on the link without sending it, for the console's
// "snep put" flow: the PUT is always queued
// on the link (dl.QueuePending), not sent through the RE's global xmit
// queue directly, since it must wait for the CC before it is meaningful.
func (e *Endpoint) QueueDataOnLink(remoteSAP, localSAP byte, info []byte) error {
	dl := e.Link(remoteSAP, localSAP)
	seq := dl.NextSend()
	pdu := wire.PDU{
		Header: wire.Header{DSAP: remoteSAP, PType: wire.PTypeI, SSAP: localSAP},
		Info:   append([]byte{wire.EncodeSequence(seq)}, info...),
	}
	out, err := wire.Encode(pdu)
	if err != nil {
		return fmt.Errorf("re: queue data on link: %w", err)
	}
	dl.QueuePending(out)
	return nil
}

// SendPDUFromRE is the single scheduling entry point used by every upper
// layer that wants to emit a PDU from this endpoint: if it is the
// endpoint's turn to transmit, the PDU goes out immediately and the
// pending xmit timer is cancelled; otherwise it is appended to the RE's
// xmit queue, which the xmit timer drains one PDU per fire.
func (e *Endpoint) SendPDUFromRE(pdu []byte, send func([]byte) error) error {
	if e.Metrics != nil {
		if decoded, derr := wire.Decode(pdu); derr == nil {
			e.Metrics.RecordPDU(wire.PTypeName(decoded.Header.PType), "tx")
		}
	}
	if e.XmitNext {
		e.XmitNext = false
		if e.Timer != nil {
			e.Timer.Cancel()
		}
		return send(pdu)
	}
	e.xmitQ = append(e.xmitQ, pdu)
	return nil
}

func (e *Endpoint) fireXmitTimer(send func([]byte) error) {
	var out []byte
	if len(e.xmitQ) > 0 {
		out = e.xmitQ[0]
		e.xmitQ = e.xmitQ[1:]
	} else {
		encoded, err := wire.Encode(llcp.BuildSYMM())
		if err != nil {
			return
		}
		out = encoded
		if e.Metrics != nil {
			e.Metrics.RecordSYMMTimerFire()
		}
	}
	e.XmitNext = false
	_ = send(out)
}

// LastReceivedNDEF returns the raw NDEF message bytes from the most
// recent SNEP PUT this endpoint accepted, or nil if none has arrived yet
// or this endpoint does not host the SNEP service.
func (e *Endpoint) LastReceivedNDEF() []byte {
	if e.snep == nil {
		return nil
	}
	return e.snep.LastPut
}

// TagCommandDispatch dispatches an incoming tag-native command to the
// endpoint's owned tag, appending any undispatched trailing bytes to SBuf
// per the data-packet path's step 4.
func (e *Endpoint) TagCommandDispatch(cmd []byte) ([]byte, error) {
	if e.Tag == nil {
		errs.Panic("re.TagCommandDispatch: endpoint has no owned tag")
	}
	resp := make([]byte, 512)
	consumed, written, err := e.Tag.Dispatch(cmd, resp)
	if err != nil {
		return nil, fmt.Errorf("re: tag command dispatch: %w", err)
	}
	if consumed < len(cmd) {
		e.SBuf = append(e.SBuf, cmd[consumed:]...)
	}
	return resp[:written], nil
}
