// Package controller implements the controller façade: the device object
// that holds the RF interface table, the remote-endpoint table, the
// configuration store, the id allocator, and the current FSM/RF states,
// and wires command dispatch to the NCI/HCI processors and the active RE.
package controller

import (
	"fmt"
	"sync"

	"github.com/nfcemu/nfcemu/internal/errs"
	"github.com/nfcemu/nfcemu/internal/nci"
	wire "github.com/nfcemu/nfcemu/internal/proto/nci"
	"github.com/nfcemu/nfcemu/internal/re"
)

// IDAllocator yields RE discovery ids in 1..=254, wrapping without
// repeating within 254 consecutive calls.
type IDAllocator struct {
	next int
}

// NewIDAllocator returns an allocator ready to hand out id 1 first.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns the next id, wrapping from 254 back to 1.
func (a *IDAllocator) Next() byte {
	id := a.next
	a.next++
	if a.next > 254 {
		a.next = 1
	}
	return byte(id)
}

// Callbacks is the set of host-facing hooks the controller invokes for
// spontaneous events (notifications, outbound data). The external-boundary
// adaptor supplies concrete implementations backed by the register block.
type Callbacks struct {
	SendNtf func(payload []byte) error
	SendDta func(payload []byte) error
	LogMsg  func(format string, args ...any)
	LogErr  func(format string, args ...any)
}

// Controller is the device façade: the single owner of controller/RF
// state, the RE table, the RF interface table, and the configuration
// store. All mutation happens behind mu, matching the single-threaded
// cooperative concurrency model: the register-block and console
// goroutines each acquire mu for the duration of one command.
type Controller struct {
	mu sync.Mutex

	State   nci.ControllerState
	RFState nci.RFState

	Ifaces []nci.RFInterface
	Config *nci.ConfigStore
	IDs    *IDAllocator

	Endpoints []*re.Endpoint
	ActiveRE  *re.Endpoint
	ActiveRF  *nci.RFInterface

	cb Callbacks
}

// New constructs a controller in its initial IDLE/Idle state with a
// pre-built RF interface table and an empty endpoint table.
func New(cb Callbacks) *Controller {
	return &Controller{
		State:   nci.StateIdle,
		RFState: nci.RFIdle,
		Ifaces:  nci.BuildRFInterfaceTable(),
		Config:  nci.NewConfigStore(),
		IDs:     NewIDAllocator(),
		cb:      cb,
	}
}

// SetSendNtf wires the controller's spontaneous-notification sink after
// construction, once the host-facing transport (the register block) that
// actually stages the bytes exists. Controller and the register device
// have a construction-order dependency on each other through the adaptor,
// so this is set in a second step rather than at New.
func (c *Controller) SetSendNtf(fn func(payload []byte) error) {
	c.cb.SendNtf = fn
}

// AddEndpoint registers a remote endpoint in the controller's table,
// returning its index. Callers hold Lock for the duration, matching every
// other controller mutation.
func (c *Controller) AddEndpoint(e *re.Endpoint) int {
	c.Endpoints = append(c.Endpoints, e)
	return len(c.Endpoints) - 1
}

// ProcessNCIMsg decodes one NCI packet from cmd and dispatches it through
// the per-state command tables, returning the response packet bytes to
// stage back to the host. The caller must hold Lock for the duration,
// matching the single-threaded cooperative concurrency model: the
// register-block and console goroutines each acquire the controller's
// mutex for one whole command before calling in here.
func (c *Controller) ProcessNCIMsg(cmd []byte) ([]byte, error) {
	pkt, _, err := wire.Decode(cmd)
	if err != nil {
		return nil, fmt.Errorf("controller: process nci msg: %w", err)
	}
	if pkt.Header.MT == wire.MTData {
		return c.processDataLocked(pkt)
	}
	if pkt.Header.MT != wire.MTCmd {
		return nil, fmt.Errorf("controller: process nci msg: %w: unexpected mt %d", errs.ErrWireFormat, pkt.Header.MT)
	}

	var result nci.DispatchResult
	switch c.State {
	case nci.StateIdle:
		result = nci.DispatchIdle(pkt.Header.GID, pkt.Header.OID, pkt.Payload)
	case nci.StateReset:
		result = nci.DispatchReset(pkt.Header.GID, pkt.Header.OID, pkt.Payload, c.Ifaces)
	case nci.StateInitialized:
		result = nci.DispatchInitialized(pkt.Header.GID, pkt.Header.OID, pkt.Payload, c.RFState, nci.InitializedCallbacks{
			ValidateDiscoverSelect: c.validateDiscoverSelect,
			Config:                 c.Config,
			EmitFieldInfoNtf:       c.emitFieldInfoNtf,
		})
	default:
		errs.Panic(fmt.Sprintf("controller: unreachable fsm state %v", c.State))
	}

	c.State = result.NewState
	if result.RFState != nil {
		c.RFState = *result.RFState
		if c.RFState == nci.RFIdle {
			c.clearActiveRE()
		}
	}

	return wire.Encode(wire.MTRsp, false, pkt.Header.GID, pkt.Header.OID, result.Response)
}

// clearActiveRE drops the active remote endpoint and resets every
// endpoint's discovered id to 0, matching RF_DEACTIVATE(IdleMode)'s effect
// on the RE table (§8, scenario e).
func (c *Controller) clearActiveRE() {
	c.ActiveRE = nil
	c.ActiveRF = nil
	for _, e := range c.Endpoints {
		e.ID = 0
	}
}

// emitFieldInfoNtf wraps an RF_FIELD_INFO_NTF payload as an NCI
// notification packet and stages it through the host-facing sender, if
// one was supplied. Called from CORE_SET_CONFIG when a written TLV (the
// BCM2079x_I93_DATARATE case, §4.6) requires it.
func (c *Controller) emitFieldInfoNtf(payload []byte) error {
	if c.cb.SendNtf == nil {
		return nil
	}
	pkt, err := wire.Encode(wire.MTNtf, false, wire.GIDRF, wire.OIDRFFieldInfo, payload)
	if err != nil {
		return fmt.Errorf("controller: emit field info ntf: %w", err)
	}
	return c.cb.SendNtf(pkt)
}

func (c *Controller) validateDiscoverSelect(id, rfproto, iface int) error {
	for _, e := range c.Endpoints {
		if e.ID == id {
			if iface < 0 || iface >= len(c.Ifaces) {
				return fmt.Errorf("controller: validate discover select: %w: iface %d out of range", errs.ErrWireFormat, iface)
			}
			c.ActiveRE = e
			c.ActiveRF = &c.Ifaces[iface]
			return nil
		}
	}
	return fmt.Errorf("controller: validate discover select: %w: no endpoint with id %d", errs.ErrWireFormat, id)
}

// processDataLocked implements the data-packet path (§4.7): validate RF
// state, dispatch to the active RE by protocol, and wrap any reply back
// into an NCI data packet.
func (c *Controller) processDataLocked(pkt wire.Packet) ([]byte, error) {
	if !nci.DataAllowed(c.RFState) {
		return nil, fmt.Errorf("controller: process data: %w: rf_state %v does not accept data", errs.ErrWrongState, c.RFState)
	}
	if c.ActiveRE == nil {
		return nil, fmt.Errorf("controller: process data: %w", errs.ErrNoActiveEndpoint)
	}

	var reply []byte
	var err error
	if c.ActiveRE.Protocol == re.ProtocolNFCDEP {
		sendFn := func(b []byte) error {
			out, encErr := wire.Encode(wire.MTData, true, 0, 0, b)
			if encErr != nil {
				return encErr
			}
			if c.cb.SendDta != nil {
				return c.cb.SendDta(out)
			}
			return nil
		}
		err = c.ActiveRE.ProcessLLCP(pkt.Payload, sendFn)
	} else {
		reply, err = c.ActiveRE.TagCommandDispatch(pkt.Payload)
	}
	if err != nil {
		return nil, fmt.Errorf("controller: process data: %w", err)
	}
	if reply == nil {
		return nil, nil
	}
	return wire.Encode(wire.MTData, false, 0, 0, reply)
}

// ProcessHCICmd handles a vendor HCI command staged through ctrl=5. It
// returns the command buffer unchanged as the response; no vendor opcode
// is decoded and no EVT_CMD_COMPLETE event is built.
// The caller must hold Lock, as with ProcessNCIMsg.
func (c *Controller) ProcessHCICmd(cmd []byte) ([]byte, error) {
	return cmd, nil
}

// Lock exposes the controller's mutex to the external-boundary adaptor,
// which must hold it for the duration of each of the three cooperative
// entry points (register write, timer callback, console command).
func (c *Controller) Lock()   { c.mu.Lock() }
func (c *Controller) Unlock() { c.mu.Unlock() }
