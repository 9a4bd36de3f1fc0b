package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for controller/protocol operations, following
// OpenTelemetry semantic convention style with an "nfc." prefix for
// domain-specific fields.
const (
	AttrNCIGID      = "nfc.nci.gid"
	AttrNCIOID      = "nfc.nci.oid"
	AttrNCIMT       = "nfc.nci.mt"
	AttrNCIStatus   = "nfc.nci.status"
	AttrControllerState = "nfc.controller.state"
	AttrRFState     = "nfc.rf.state"
	AttrEndpointID  = "nfc.re.id"
	AttrEndpointIdx = "nfc.re.index"
	AttrRFProtocol  = "nfc.re.rfproto"
	AttrLLCPDSAP    = "nfc.llcp.dsap"
	AttrLLCPSSAP    = "nfc.llcp.ssap"
	AttrLLCPPType   = "nfc.llcp.ptype"
	AttrSNEPMsg     = "nfc.snep.msg"
	AttrTagKind     = "nfc.tag.kind"
	AttrConsoleCmd  = "nfc.console.command"
)

// Span names for the control-plane and data-plane operations.
const (
	SpanRegisterCtrl  = "register.ctrl"
	SpanNCICommand    = "nci.command"
	SpanNCIData       = "nci.data"
	SpanLLCPDispatch  = "llcp.dispatch"
	SpanSNEPDispatch  = "snep.dispatch"
	SpanTagCommand    = "tag.command"
	SpanConsoleCmd    = "console.command"
)

// NCIGID returns an attribute for an NCI group identifier.
func NCIGID(gid int) attribute.KeyValue {
	return attribute.Int(AttrNCIGID, gid)
}

// NCIOID returns an attribute for an NCI opcode identifier.
func NCIOID(oid int) attribute.KeyValue {
	return attribute.Int(AttrNCIOID, oid)
}

// NCIStatus returns an attribute for an NCI status code.
func NCIStatus(status int) attribute.KeyValue {
	return attribute.Int(AttrNCIStatus, status)
}

// ControllerState returns an attribute for the controller FSM state.
func ControllerState(state string) attribute.KeyValue {
	return attribute.String(AttrControllerState, state)
}

// RFState returns an attribute for the RF sub-state-machine state.
func RFState(state string) attribute.KeyValue {
	return attribute.String(AttrRFState, state)
}

// EndpointID returns an attribute for a remote endpoint's discovered id.
func EndpointID(id int) attribute.KeyValue {
	return attribute.Int(AttrEndpointID, id)
}

// EndpointIndex returns an attribute for a remote endpoint's table index.
func EndpointIndex(idx int) attribute.KeyValue {
	return attribute.Int(AttrEndpointIdx, idx)
}

// RFProtocol returns an attribute for an endpoint's RF protocol name.
func RFProtocol(proto string) attribute.KeyValue {
	return attribute.String(AttrRFProtocol, proto)
}

// LLCPSAPs returns attributes for an LLCP (DSAP, SSAP) pair.
func LLCPSAPs(dsap, ssap int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLLCPDSAP, dsap),
		attribute.Int(AttrLLCPSSAP, ssap),
	}
}

// LLCPPType returns an attribute for an LLCP PDU type.
func LLCPPType(ptype string) attribute.KeyValue {
	return attribute.String(AttrLLCPPType, ptype)
}

// SNEPMessage returns an attribute for a SNEP message code name.
func SNEPMessage(msg string) attribute.KeyValue {
	return attribute.String(AttrSNEPMsg, msg)
}

// TagKind returns an attribute for a tag kind (t1t, t2t, t3t, t4t).
func TagKind(kind string) attribute.KeyValue {
	return attribute.String(AttrTagKind, kind)
}

// ConsoleCommand returns an attribute for an operator console command line.
func ConsoleCommand(cmd string) attribute.KeyValue {
	return attribute.String(AttrConsoleCmd, cmd)
}

// StartNCISpan starts a span for an NCI command/notification dispatch.
func StartNCISpan(ctx context.Context, name string, gid, oid int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{NCIGID(gid), NCIOID(oid)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanNCICommand+"."+name, trace.WithAttributes(allAttrs...))
}

// StartLLCPSpan starts a span for an LLCP PDU dispatch.
func StartLLCPSpan(ctx context.Context, ptype string, dsap, ssap int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append(LLCPSAPs(dsap, ssap), LLCPPType(ptype))
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanLLCPDispatch, trace.WithAttributes(allAttrs...))
}

// StartTagSpan starts a span for a tag command dispatch.
func StartTagSpan(ctx context.Context, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{TagKind(kind)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanTagCommand, trace.WithAttributes(allAttrs...))
}

// StartConsoleSpan starts a span for an operator console command.
func StartConsoleSpan(ctx context.Context, cmd string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanConsoleCmd, trace.WithAttributes(ConsoleCommand(cmd)))
}
