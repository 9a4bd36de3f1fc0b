// Package console implements the operator console: a line-oriented REPL
// exposing the "nfc nci ...", "nfc snep ...", and "nfc llcp ..." commands
// used to script discovery, activation, and peer-originated traffic
// against the emulated controller.
package console

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nfcemu/nfcemu/internal/controller"
	"github.com/nfcemu/nfcemu/internal/errs"
	"github.com/nfcemu/nfcemu/internal/mmio"
	"github.com/nfcemu/nfcemu/internal/nci"
	"github.com/nfcemu/nfcemu/internal/proto/ndef"
	wireLLCP "github.com/nfcemu/nfcemu/internal/proto/llcp"
	wireNCI "github.com/nfcemu/nfcemu/internal/proto/nci"
	wireSNEP "github.com/nfcemu/nfcemu/internal/proto/snep"
	"github.com/nfcemu/nfcemu/internal/re"
	"github.com/nfcemu/nfcemu/internal/telemetry"
)

// Console reads commands from an io.Reader, drives the controller and
// staged register-block device, and writes replies to an io.Writer.
type Console struct {
	Ctrl *controller.Controller
	Dev  *mmio.Device
	Out  io.Writer
	Logf func(format string, args ...any)
}

// New constructs a console wired to ctrl (for state mutation) and dev (for
// staging spontaneous notifications/data packets).
func New(ctrl *controller.Controller, dev *mmio.Device, out io.Writer, logf func(format string, args ...any)) *Console {
	return &Console{Ctrl: ctrl, Dev: dev, Out: out, Logf: logf}
}

// Run reads lines from in until EOF, dispatching each as one console
// command. It is one of the two boundary goroutines that recovers
// InvariantViolation panics (the other is the register-block loop).
func (c *Console) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c.handleLine(scanner.Text())
	}
	return scanner.Err()
}

func (c *Console) handleLine(line string) {
	defer func() {
		if r := recover(); r != nil {
			if c.Logf != nil {
				c.Logf("console: invariant violation recovered: %v", r)
			}
			c.writeKO(fmt.Sprintf("invariant violation: %v", r))
		}
	}()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	if fields[0] != "nfc" || len(fields) < 2 {
		c.writeKO("unrecognized command")
		return
	}

	_, span := telemetry.StartConsoleSpan(context.Background(), line)
	defer span.End()

	c.Ctrl.Lock()
	defer c.Ctrl.Unlock()

	var err error
	switch fields[1] {
	case "nci":
		err = c.dispatchNCI(fields[2:])
	case "snep":
		err = c.dispatchSNEP(fields[2:])
	case "llcp":
		err = c.dispatchLLCP(fields[2:])
	case "status":
		err = c.dispatchStatus()
	default:
		err = fmt.Errorf("unrecognized subsystem %q", fields[1])
	}
	if err != nil {
		span.RecordError(err)
		c.writeKO(err.Error())
	}
}

func (c *Console) dispatchNCI(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing nci command")
	}
	switch args[0] {
	case "rf_discover_ntf":
		return c.nciRFDiscoverNtf(args[1:])
	case "rf_intf_activated_ntf":
		return c.nciRFIntfActivatedNtf(args[1:])
	default:
		return fmt.Errorf("unrecognized nci command %q", args[0])
	}
}

func (c *Console) endpointAt(idx int) (*re.Endpoint, error) {
	if idx < 0 || idx >= len(c.Ctrl.Endpoints) {
		return nil, fmt.Errorf("re index %d out of range", idx)
	}
	return c.Ctrl.Endpoints[idx], nil
}

func (c *Console) allocateID(e *re.Endpoint) byte {
	if e.ID == 0 {
		e.ID = int(c.Ctrl.IDs.Next())
	}
	return byte(e.ID)
}

// modeByte maps a configured tech/mode string to the NCI activation-mode
// wire value: poll modes 0x00/0x01/0x02 for A/B/F, listen modes with the
// high bit set (0x80/0x81/0x82) for passive listen A/B/F.
func modeByte(techMode string) byte {
	lower := strings.ToLower(techMode)
	listen := strings.Contains(lower, "listen")
	var base byte
	switch {
	case strings.Contains(lower, "a-"):
		base = 0x00
	case strings.Contains(lower, "b-"):
		base = 0x01
	case strings.Contains(lower, "f-"):
		base = 0x02
	}
	if listen {
		return base | 0x80
	}
	return base
}

func (c *Console) nciRFDiscoverNtf(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: nfc nci rf_discover_ntf <re_index> <type>")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid re_index: %w", err)
	}
	typ, err := strconv.Atoi(args[1])
	if err != nil || typ < 0 || typ > 2 {
		return fmt.Errorf("invalid type: must be 0, 1, or 2")
	}

	ep, err := c.endpointAt(idx)
	if err != nil {
		return err
	}
	id := c.allocateID(ep)

	ntfType := nci.DiscoverNtfType(typ)
	ntf := nci.BuildDiscoverNtf(nci.DiscoverNtfInputs{
		ID:      id,
		RFProto: ep.Protocol.RFProtoByte(),
		Mode:    modeByte(ep.TechMode),
		Type:    ntfType,
	})

	ev := nci.EventRFDiscoverNtfMore
	if ntfType == nci.DiscoverLast || ntfType == nci.DiscoverLimit {
		ev = nci.EventRFDiscoverNtfLast
	}
	c.Ctrl.RFState = nci.Transition(c.Ctrl.RFState, ev)

	pkt, err := wireNCI.Encode(wireNCI.MTNtf, false, wireNCI.GIDRF, wireNCI.OIDRFDiscover, ntf)
	if err != nil {
		return err
	}
	if err := c.Dev.StageNtfn(pkt); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "OK\r\n")
	return nil
}

func (c *Console) nciRFIntfActivatedNtf(args []string) error {
	var ep *re.Endpoint
	var err error
	if len(args) >= 1 {
		idx, aerr := strconv.Atoi(args[0])
		if aerr != nil {
			return fmt.Errorf("invalid re_index: %w", aerr)
		}
		ep, err = c.endpointAt(idx)
		if err != nil {
			return err
		}
	} else {
		ep = c.Ctrl.ActiveRE
		if ep == nil {
			return fmt.Errorf("%w: no active re", errs.ErrNoActiveEndpoint)
		}
	}

	var iface nci.RFInterface
	if len(args) >= 2 {
		rfIdx, rerr := strconv.Atoi(args[1])
		if rerr != nil {
			return fmt.Errorf("invalid rf_index: %w", rerr)
		}
		if rfIdx < 0 || rfIdx >= len(c.Ctrl.Ifaces) {
			return fmt.Errorf("rf_index %d out of range", rfIdx)
		}
		iface = c.Ctrl.Ifaces[rfIdx]
	} else {
		sel, serr := nci.SelectInterfaceForProtocol(c.Ctrl.Ifaces, ep.Protocol.IsTag(), ep.Protocol == re.ProtocolISODEP, ep.Protocol == re.ProtocolNFCDEP)
		if serr != nil {
			return serr
		}
		iface = c.Ctrl.Ifaces[sel]
	}

	id := c.allocateID(ep)
	listen := strings.Contains(strings.ToLower(ep.TechMode), "listen")

	var nfcid3 [10]byte
	copy(nfcid3[:], ep.NFCID3)

	ntf := nci.BuildActivatedNtf(nci.ActivatedNtfInputs{
		ID:        id,
		RFIface:   iface.Kind.WireByte(),
		RFProto:   ep.Protocol.RFProtoByte(),
		Mode:      modeByte(ep.TechMode),
		NFCID1:    ep.NFCID1,
		NFCID3:    nfcid3,
		ListenMTO: 14,
		IsListen:  listen,
	})

	ev := nci.EventRFIntfActivatedPoll
	if listen {
		ev = nci.EventRFIntfActivatedListen
	}
	c.Ctrl.RFState = nci.Transition(c.Ctrl.RFState, ev)
	c.Ctrl.ActiveRE = ep
	ifaceCopy := iface
	c.Ctrl.ActiveRF = &ifaceCopy

	pkt, err := wireNCI.Encode(wireNCI.MTNtf, false, wireNCI.GIDRF, wireNCI.OIDRFIntfActivated, ntf)
	if err != nil {
		return err
	}
	if err := c.Dev.StageNtfn(pkt); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "OK\r\n")
	return nil
}

func (c *Console) activeSAPs(dsapArg, ssapArg int) (byte, byte, error) {
	ep := c.Ctrl.ActiveRE
	if ep == nil {
		return 0, 0, fmt.Errorf("%w: no active re", errs.ErrNoActiveEndpoint)
	}
	dsap, err := ep.ResolveSAP(dsapArg, ep.LastDSAP)
	if err != nil {
		return 0, 0, err
	}
	ssap, err := ep.ResolveSAP(ssapArg, ep.LastSSAP)
	if err != nil {
		return 0, 0, err
	}
	return dsap, ssap, nil
}

func (c *Console) sendFn() func([]byte) error {
	return func(b []byte) error {
		out, err := wireNCI.Encode(wireNCI.MTData, true, 0, 0, b)
		if err != nil {
			return err
		}
		return c.Dev.StageData(out)
	}
}

func (c *Console) dispatchLLCP(args []string) error {
	if len(args) != 3 || args[0] != "connect" {
		return fmt.Errorf("usage: nfc llcp connect <dsap> <ssap>")
	}
	dsapArg, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid dsap: %w", err)
	}
	ssapArg, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid ssap: %w", err)
	}
	dsap, ssap, err := c.activeSAPs(dsapArg, ssapArg)
	if err != nil {
		return err
	}
	ep := c.Ctrl.ActiveRE
	if err := ep.QueueConnect(dsap, ssap, nil, c.sendFn()); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "OK\r\n")
	return nil
}

type ndefRecordArg struct {
	flags   byte
	tnf     byte
	typ     []byte
	payload []byte
	id      []byte
}

// decodeB64Field decodes a base64 console argument, treating the "-"
// placeholder as an explicit empty field: whitespace-tokenized input
// cannot otherwise represent an empty token.
func decodeB64Field(s string) ([]byte, error) {
	if s == "-" {
		return nil, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func parseNDEFRecordArgs(args []string) ([]ndefRecordArg, error) {
	const fieldsPerRecord = 5
	if len(args)%fieldsPerRecord != 0 {
		return nil, fmt.Errorf("malformed ndef record argument list")
	}
	var recs []ndefRecordArg
	for i := 0; i < len(args); i += fieldsPerRecord {
		flags, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
		tnf, err := strconv.Atoi(args[i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid tnf: %w", err)
		}
		typ, err := decodeB64Field(args[i+2])
		if err != nil {
			return nil, fmt.Errorf("invalid type_b64: %w", err)
		}
		payload, err := decodeB64Field(args[i+3])
		if err != nil {
			return nil, fmt.Errorf("invalid payload_b64: %w", err)
		}
		id, err := decodeB64Field(args[i+4])
		if err != nil {
			return nil, fmt.Errorf("invalid id_b64: %w", err)
		}
		recs = append(recs, ndefRecordArg{flags: byte(flags), tnf: byte(tnf), typ: typ, payload: payload, id: id})
	}
	return recs, nil
}

func (c *Console) dispatchSNEP(args []string) error {
	if len(args) < 1 || args[0] != "put" {
		return fmt.Errorf("usage: nfc snep put <dsap> <ssap> [<ndef_rec>...]")
	}
	args = args[1:]
	if len(args) < 2 {
		return fmt.Errorf("usage: nfc snep put <dsap> <ssap> [<ndef_rec>...]")
	}
	dsapArg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid dsap: %w", err)
	}
	ssapArg, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid ssap: %w", err)
	}

	ep := c.Ctrl.ActiveRE
	if ep == nil {
		return fmt.Errorf("%w: no active re", errs.ErrNoActiveEndpoint)
	}

	recArgs := args[2:]
	if len(recArgs) == 0 {
		return c.printBufferedNDEF(ep)
	}

	recs, err := parseNDEFRecordArgs(recArgs)
	if err != nil {
		return err
	}
	if len(recs) > 4 {
		return fmt.Errorf("at most four ndef records per put")
	}

	msg := ndef.Message{}
	for _, r := range recs {
		msg.Records = append(msg.Records, ndef.Record{TNF: r.tnf, Type: r.typ, ID: r.id, Payload: r.payload})
	}
	ndefBytes, err := ndef.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode ndef message: %w", err)
	}

	snepMsg := wireSNEP.Encode(wireSNEP.ReqPut, ndefBytes)

	dsap, ssap, err := c.activeSAPs(dsapArg, ssapArg)
	if err != nil {
		return err
	}

	if err := ep.QueueConnect(dsap, ssap, []wireLLCP.TLV{}, c.sendFn()); err != nil {
		return err
	}
	if err := ep.QueueDataOnLink(dsap, ssap, snepMsg); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "OK\r\n")
	return nil
}

func (c *Console) printBufferedNDEF(ep *re.Endpoint) error {
	last := ep.LastReceivedNDEF()
	if last == nil {
		fmt.Fprintf(c.Out, "null\r\n")
		return nil
	}
	msg, err := ndef.DecodeMessage(last)
	if err != nil {
		return fmt.Errorf("decode buffered ndef: %w", err)
	}
	type jsonRecord struct {
		TNF     byte   `json:"tnf"`
		Type    string `json:"type"`
		ID      string `json:"id"`
		Payload string `json:"payload"`
	}
	out := make([]jsonRecord, 0, len(msg.Records))
	for _, r := range msg.Records {
		out = append(out, jsonRecord{
			TNF:     r.TNF,
			Type:    base64.RawURLEncoding.EncodeToString(r.Type),
			ID:      base64.RawURLEncoding.EncodeToString(r.ID),
			Payload: base64.RawURLEncoding.EncodeToString(r.Payload),
		})
	}
	enc, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s\r\n", enc)
	return nil
}

// StatusInfo is the JSON shape reported by "nfc status", consumed by the
// "nfcemu status" CLI command over the operator console socket.
type StatusInfo struct {
	ControllerState string `json:"controller_state"`
	RFState         string `json:"rf_state"`
	ActiveREIndex   int    `json:"active_re_index"`
	ActiveREProto   string `json:"active_re_protocol,omitempty"`
	EndpointCount   int    `json:"endpoint_count"`
}

func (c *Console) dispatchStatus() error {
	info := StatusInfo{
		ControllerState: c.Ctrl.State.String(),
		RFState:         c.Ctrl.RFState.String(),
		ActiveREIndex:   -1,
		EndpointCount:   len(c.Ctrl.Endpoints),
	}
	if c.Ctrl.ActiveRE != nil {
		info.ActiveREProto = c.Ctrl.ActiveRE.Protocol.String()
		for i, ep := range c.Ctrl.Endpoints {
			if ep == c.Ctrl.ActiveRE {
				info.ActiveREIndex = i
				break
			}
		}
	}
	enc, err := json.Marshal(info)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s\r\n", enc)
	return nil
}

func (c *Console) writeKO(reason string) {
	fmt.Fprintf(c.Out, "KO: %s\r\n", reason)
}
