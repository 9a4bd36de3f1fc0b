package nci

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
	wire "github.com/nfcemu/nfcemu/internal/proto/nci"
)

// RFInterfaceKind identifies one of the three RF interface kinds built into
// the controller's RF interface table.
type RFInterfaceKind int

const (
	IfaceFrame RFInterfaceKind = iota
	IfaceISODEP
	IfaceNFCDEP
)

// WireByte returns the NCI RF_INTERFACE_TYPE wire value for k (NFCEE
// Direct RF = 0x00 is not built by this controller): Frame=0x01,
// ISO-DEP=0x02, NFC-DEP=0x03.
func (k RFInterfaceKind) WireByte() byte {
	switch k {
	case IfaceFrame:
		return 0x01
	case IfaceISODEP:
		return 0x02
	case IfaceNFCDEP:
		return 0x03
	default:
		return 0x00
	}
}

// RFInterface is an immutable (interface kind, tech/mode) descriptor built
// at controller init.
type RFInterface struct {
	Kind     RFInterfaceKind
	TechMode string
}

// BuildRFInterfaceTable constructs the eight pre-built {Frame, ISO-DEP,
// NFC-DEP} x {A-poll, B-poll, F-poll} entries (NFC-DEP has no B-poll mode,
// giving eight rather than nine combinations).
func BuildRFInterfaceTable() []RFInterface {
	techModes := []string{"A-poll", "B-poll", "F-poll"}
	var table []RFInterface
	for _, tm := range techModes {
		table = append(table, RFInterface{Kind: IfaceFrame, TechMode: tm})
	}
	for _, tm := range techModes {
		table = append(table, RFInterface{Kind: IfaceISODEP, TechMode: tm})
	}
	for _, tm := range []string{"A-poll", "F-poll"} {
		table = append(table, RFInterface{Kind: IfaceNFCDEP, TechMode: tm})
	}
	return table
}

// SelectInterfaceForProtocol implements the auto-interface-selection rule:
// pick an RF interface by the endpoint's rfproto when the host does not
// specify one explicitly.
func SelectInterfaceForProtocol(table []RFInterface, rfProtoIsTag, isISODEP, isNFCDEP bool) (int, error) {
	var want RFInterfaceKind
	switch {
	case isNFCDEP:
		want = IfaceNFCDEP
	case isISODEP:
		want = IfaceISODEP
	case rfProtoIsTag:
		want = IfaceFrame
	default:
		return 0, fmt.Errorf("nci: select interface: %w: no matching rf protocol", errs.ErrWireFormat)
	}
	for i, iface := range table {
		if iface.Kind == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("nci: select interface: %w: no rf interface for kind %d", errs.ErrWireFormat, want)
}

// Vendor (Broadcom BCM2079x) PROP command opcodes, valid in IDLE and
// INITIALIZED.
const (
	OIDPropGetBuildInfo   byte = 0x10
	OIDPropGetPatchVersion byte = 0x11
)

func buildInfoResponse() []byte {
	return append([]byte{wire.StatusOK}, []byte("nfcemu-bcm2079x-build")...)
}

func patchVersionResponse() []byte {
	return []byte{wire.StatusOK, 0x01, 0x00}
}

// nciVersion encodes NCI version 1.0 as major<<4|minor, per CORE_RESET_RSP.
const nciVersion = 0x10

// coreResetResponse builds a CORE_RESET_RSP: {status, nci_version,
// config_status}, echoing back the reset-type byte the host sent as the
// config_status field.
func coreResetResponse(payload []byte) []byte {
	var resetType byte
	if len(payload) > 0 {
		resetType = payload[0]
	}
	return []byte{wire.StatusOK, nciVersion, resetType}
}

// DispatchResult carries the command-processor outcome: a response payload
// to stage, the controller's FSM state after the command, and (if the
// command moved the RF state machine) the new RF state.
type DispatchResult struct {
	Response []byte
	NewState ControllerState
	RFState  *RFState // nil if unchanged
}

// DispatchIdle handles a GID/OID/payload arriving while the controller is
// in IDLE. Only CORE_RESET and the two vendor identity commands are valid;
// everything else reports SEMANTIC_ERROR.
func DispatchIdle(gid, oid byte, payload []byte) DispatchResult {
	switch {
	case gid == wire.GIDCore && oid == wire.OIDCoreReset:
		return DispatchResult{Response: coreResetResponse(payload), NewState: StateReset}
	case gid == wire.GIDProp && oid == OIDPropGetBuildInfo:
		return DispatchResult{Response: buildInfoResponse(), NewState: StateIdle}
	case gid == wire.GIDProp && oid == OIDPropGetPatchVersion:
		return DispatchResult{Response: patchVersionResponse(), NewState: StateIdle}
	default:
		return DispatchResult{Response: []byte{wire.StatusSemanticError}, NewState: StateIdle}
	}
}

// DispatchReset handles a command arriving while the controller is in
// RESET. Only CORE_INIT is valid.
func DispatchReset(gid, oid byte, payload []byte, ifaces []RFInterface) DispatchResult {
	if gid != wire.GIDCore || oid != wire.OIDCoreInit {
		return DispatchResult{Response: []byte{wire.StatusSemanticError}, NewState: StateReset}
	}
	resp := []byte{wire.StatusOK, 0x00 /* features */}
	resp = append(resp, 255 /* max payload size */)
	resp = append(resp, byte(len(ifaces)))
	for _, iface := range ifaces {
		resp = append(resp, iface.Kind.WireByte())
	}
	resp = append(resp, 0x00, 0x00) // vendor, device id placeholders
	return DispatchResult{Response: resp, NewState: StateInitialized}
}

// ConfigTLV is one (id, len, value) triple from a CORE_SET_CONFIG command.
type ConfigTLV struct {
	ID  byte
	Val []byte
}

// ParseConfigTLVs parses the nparams TLVs of a CORE_SET_CONFIG payload.
func ParseConfigTLVs(payload []byte) ([]ConfigTLV, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("nci: parse config tlvs: %w: missing nparams", errs.ErrWireFormat)
	}
	n := int(payload[0])
	pos := 1
	var out []ConfigTLV
	for i := 0; i < n; i++ {
		if len(payload) < pos+2 {
			return nil, fmt.Errorf("nci: parse config tlvs: %w: truncated tlv header", errs.ErrWireFormat)
		}
		id := payload[pos]
		length := int(payload[pos+1])
		pos += 2
		if len(payload) < pos+length {
			return nil, fmt.Errorf("nci: parse config tlvs: %w: truncated tlv value", errs.ErrWireFormat)
		}
		out = append(out, ConfigTLV{ID: id, Val: append([]byte(nil), payload[pos:pos+length]...)})
		pos += length
	}
	return out, nil
}

// OIDPropI93DataRate is the vendor config parameter whose write can trigger
// an asynchronous RF_FIELD_INFO_NTF.
const OIDPropI93DataRate byte = 0xa0

// TriggersFieldInfoNtf reports whether writing this config TLV should raise
// an asynchronous RF_FIELD_INFO_NTF (byte 2's low bit set).
func TriggersFieldInfoNtf(t ConfigTLV) bool {
	return t.ID == OIDPropI93DataRate && len(t.Val) >= 2 && t.Val[1]&0x01 != 0
}

// ConfigStore is the controller's opaque 128-byte configuration block,
// addressed by id -> (offset, length).
type ConfigStore struct {
	Block   [128]byte
	Offsets map[byte]int
	Lens    map[byte]int
}

// NewConfigStore returns an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{Offsets: make(map[byte]int), Lens: make(map[byte]int)}
}

// Set writes a config TLV's value at the id's known offset, or appends a
// new offset mapping if the id has not been seen before.
func (c *ConfigStore) Set(id byte, val []byte) error {
	off, ok := c.Offsets[id]
	if !ok {
		off = nextFreeOffset(c.Offsets, c.Lens)
		c.Offsets[id] = off
	}
	if off+len(val) > len(c.Block) {
		return fmt.Errorf("nci: config store set: %w: id %#x overflows config block", errs.ErrResourceExhausted, id)
	}
	copy(c.Block[off:], val)
	c.Lens[id] = len(val)
	return nil
}

func nextFreeOffset(offsets map[byte]int, lens map[byte]int) int {
	max := 0
	for id, off := range offsets {
		if end := off + lens[id]; end > max {
			max = end
		}
	}
	return max
}

// DispatchInitialized handles a command arriving while the controller is in
// INITIALIZED. The caller supplies callbacks for RE-table-dependent
// commands (RF_DISCOVER_SELECT, data activation) since those need access to
// the controller façade's endpoint table, plus the config store and the
// RF_FIELD_INFO_NTF sink CORE_SET_CONFIG writes through.
type InitializedCallbacks struct {
	ValidateDiscoverSelect func(id int, rfproto, iface int) error

	// Config is the controller's configuration store. A nil Config makes
	// CORE_SET_CONFIG a pure ack with no persistence, which is only
	// correct for callers that don't care (most tests).
	Config *ConfigStore

	// EmitFieldInfoNtf stages an RF_FIELD_INFO_NTF payload. Called
	// synchronously from within the CORE_SET_CONFIG handler when a
	// written TLV triggers one; errors are not fatal to the CORE_SET_CONFIG
	// response itself since the notification is a side effect of it.
	EmitFieldInfoNtf func(payload []byte) error
}

// DispatchInitialized returns the response payload and whether the FSM
// should return to RESET (CORE_RESET only). curRF is the controller's
// current RF sub-state, needed to compute RF_DEACTIVATE's transition.
func DispatchInitialized(gid, oid byte, payload []byte, curRF RFState, cb InitializedCallbacks) DispatchResult {
	switch {
	case gid == wire.GIDCore && oid == wire.OIDCoreReset:
		return DispatchResult{Response: coreResetResponse(payload), NewState: StateReset}

	case gid == wire.GIDCore && oid == wire.OIDCoreSetConfig:
		tlvs, err := ParseConfigTLVs(payload)
		if err != nil {
			return DispatchResult{Response: []byte{wire.StatusSemanticError}, NewState: StateInitialized}
		}
		for _, t := range tlvs {
			if cb.Config != nil {
				if err := cb.Config.Set(t.ID, t.Val); err != nil {
					return DispatchResult{Response: []byte{wire.StatusRejected}, NewState: StateInitialized}
				}
			}
			if TriggersFieldInfoNtf(t) && cb.EmitFieldInfoNtf != nil {
				_ = cb.EmitFieldInfoNtf(BuildFieldInfoNtf())
			}
		}
		return DispatchResult{Response: []byte{wire.StatusOK, 0x00}, NewState: StateInitialized}

	case gid == wire.GIDRF && oid == wire.OIDRFDiscoverMap:
		return DispatchResult{Response: []byte{wire.StatusOK}, NewState: StateInitialized}

	case gid == wire.GIDRF && oid == wire.OIDRFDiscover:
		rf := RFDiscovery
		return DispatchResult{Response: []byte{wire.StatusOK}, NewState: StateInitialized, RFState: &rf}

	case gid == wire.GIDRF && oid == wire.OIDRFDiscoverSelect:
		if len(payload) < 3 {
			return DispatchResult{Response: []byte{wire.StatusSyntaxError}, NewState: StateInitialized}
		}
		id, rfproto, iface := int(payload[0]), int(payload[1]), int(payload[2])
		if cb.ValidateDiscoverSelect != nil {
			if err := cb.ValidateDiscoverSelect(id, rfproto, iface); err != nil {
				return DispatchResult{Response: []byte{wire.StatusRejected}, NewState: StateInitialized}
			}
		}
		return DispatchResult{Response: []byte{wire.StatusOK}, NewState: StateInitialized}

	case gid == wire.GIDProp && oid == OIDPropGetBuildInfo:
		return DispatchResult{Response: buildInfoResponse(), NewState: StateInitialized}

	case gid == wire.GIDProp && oid == OIDPropGetPatchVersion:
		return DispatchResult{Response: patchVersionResponse(), NewState: StateInitialized}

	case gid == 0x02 && oid == 0x00: // NFCEE_DISCOVER
		return DispatchResult{Response: []byte{wire.StatusOK, 0x00}, NewState: StateInitialized}

	case gid == wire.GIDRF && oid == wire.OIDRFDeactivate:
		if len(payload) < 1 {
			return DispatchResult{Response: []byte{wire.StatusSyntaxError}, NewState: StateInitialized}
		}
		next := Deactivate(curRF, DeactivateType(payload[0]))
		return DispatchResult{Response: []byte{wire.StatusOK}, NewState: StateInitialized, RFState: &next}

	default:
		return DispatchResult{Response: []byte{wire.StatusSemanticError}, NewState: StateInitialized}
	}
}

// DeactivateType enumerates the RF_DEACTIVATE command's type parameter.
type DeactivateType int

const (
	DeactivateIdleMode DeactivateType = iota
	DeactivateSleepMode
	DeactivateSleepAFMode
	DeactivateDiscovery
)

// Deactivate applies the RF_DEACTIVATE event corresponding to typ against
// cur, returning the next RF state.
func Deactivate(cur RFState, typ DeactivateType) RFState {
	switch typ {
	case DeactivateIdleMode:
		return Transition(cur, EventRFDeactivateIdle)
	case DeactivateSleepMode, DeactivateSleepAFMode:
		return Transition(cur, EventRFDeactivateSleep)
	case DeactivateDiscovery:
		return Transition(cur, EventRFDeactivateDiscovery)
	default:
		errs.Panic(fmt.Sprintf("nci: unknown deactivate type %d", int(typ)))
		return cur
	}
}
