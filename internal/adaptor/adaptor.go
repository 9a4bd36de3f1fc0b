// Package adaptor implements the external-boundary adaptor: the thin glue
// between a raw host-facing command/response buffer and the controller
// façade, plus the cooperative timing service the RE engine's transmit
// timers are armed against.
package adaptor

import (
	"context"
	"fmt"
	"time"

	"github.com/nfcemu/nfcemu/internal/controller"
	"github.com/nfcemu/nfcemu/internal/nci"
	wire "github.com/nfcemu/nfcemu/internal/proto/nci"
	"github.com/nfcemu/nfcemu/internal/telemetry"
	"github.com/nfcemu/nfcemu/pkg/metrics"
)

// Callbacks holds the host-provided function values the adaptor is
// initialized with: a logging pair, the notification/data senders, and
// optional metrics. The timing service is not part of Callbacks; it is the
// separate Timer type below.
type Callbacks struct {
	LogMsg func(format string, args ...any)
	LogErr func(format string, args ...any)

	SendNtf func(payload []byte) error
	SendDta func(payload []byte) error

	// Metrics is optional; a nil value disables NCI-boundary metrics at
	// zero overhead.
	Metrics metrics.NCIMetrics
}

// Adaptor is the boundary object the register-block and console
// goroutines call into. It owns no state beyond the controller reference;
// every mutation happens on the controller behind its mutex.
type Adaptor struct {
	ctrl *controller.Controller
	cb   Callbacks
}

// Init constructs an Adaptor wired to ctrl and the given callbacks.
func Init(ctrl *controller.Controller, cb Callbacks) *Adaptor {
	return &Adaptor{ctrl: ctrl, cb: cb}
}

// Uninit releases resources held by the adaptor. Present for parity with
// the original firmware's Init/Uninit pairing; there is currently nothing
// to release since the adaptor holds no handles of its own.
func (a *Adaptor) Uninit() {}

// ProcessNCICommand decodes and dispatches a single staged NCI command
// buffer, recovering any InvariantViolation panic at this boundary and
// converting it into a SemanticError response and a logged error, per the
// "crash is a bug report" policy.
func (a *Adaptor) ProcessNCICommand(cmd []byte) (resp []byte, err error) {
	defer a.recoverInvariant(&resp, &err)

	gid, oid := -1, -1
	if pkt, _, derr := wire.Decode(cmd); derr == nil {
		gid, oid = int(pkt.Header.GID), int(pkt.Header.OID)
	}
	_, span := telemetry.StartNCISpan(context.Background(), "process", gid, oid)
	defer span.End()

	a.ctrl.Lock()
	defer a.ctrl.Unlock()

	rfBefore := a.ctrl.RFState
	resp, err = a.ctrl.ProcessNCIMsg(cmd)
	if err != nil {
		span.RecordError(err)
	}
	if rpkt, _, rerr := wire.Decode(resp); rerr == nil && len(rpkt.Payload) > 0 {
		span.SetAttributes(telemetry.NCIStatus(int(rpkt.Payload[0])))
	}
	a.recordMetrics(cmd, resp, rfBefore)
	return resp, err
}

// recordMetrics observes one NCI command/response pair against a.cb.Metrics,
// a no-op when metrics are disabled. Decode failures are swallowed here since
// ProcessNCIMsg already reported them through err.
func (a *Adaptor) recordMetrics(cmd, resp []byte, rfBefore nci.RFState) {
	if a.cb.Metrics == nil {
		return
	}
	if pkt, _, derr := wire.Decode(cmd); derr == nil && pkt.Header.MT == wire.MTCmd {
		status := byte(0xff)
		if rpkt, _, rerr := wire.Decode(resp); rerr == nil && len(rpkt.Payload) > 0 {
			status = rpkt.Payload[0]
		}
		a.cb.Metrics.RecordCommand(pkt.Header.GID, pkt.Header.OID, status)
	}
	if rfAfter := a.ctrl.RFState; rfAfter != rfBefore {
		a.cb.Metrics.RecordRFTransition(rfBefore.String(), rfAfter.String())
	}
	a.cb.Metrics.SetEndpointCount(len(a.ctrl.Endpoints))
	a.cb.Metrics.SetActiveEndpoint(a.ctrl.ActiveRE != nil)
}

// ProcessHCICommand passes a single staged HCI command buffer to
// Controller.ProcessHCICmd under the controller lock, with the same
// panic-recovery boundary as ProcessNCICommand. The buffer is not decoded
// here.
func (a *Adaptor) ProcessHCICommand(cmd []byte) (resp []byte, err error) {
	defer a.recoverInvariant(&resp, &err)

	_, span := telemetry.StartSpan(context.Background(), "hci.command")
	defer span.End()

	a.ctrl.Lock()
	defer a.ctrl.Unlock()
	resp, err = a.ctrl.ProcessHCICmd(cmd)
	if err != nil {
		span.RecordError(err)
	}
	return resp, err
}

func (a *Adaptor) recoverInvariant(resp *[]byte, err *error) {
	if r := recover(); r != nil {
		if a.cb.LogErr != nil {
			a.cb.LogErr("invariant violation recovered at boundary: %v", r)
		}
		*resp = []byte{0x06} // NCI_STATUS_SEMANTIC_ERROR
		*err = fmt.Errorf("adaptor: recovered invariant violation: %v", r)
	}
}

// Timer is a cooperative, single-threaded timer: Arm schedules fire after
// d using time.AfterFunc, and Cancel/Pending reflect the single in-flight
// timer this RE xmit scheduling needs. Unlike a general-purpose timer
// wheel, only one callback is ever pending per Timer instance — re-arming
// replaces it. pending is maintained explicitly rather than derived from
// time.Timer.Stop's return value, since Stop is itself a mutation.
type Timer struct {
	t       *time.Timer
	pending bool
}

// Arm schedules fire to run after d, replacing any previously scheduled
// fire on this Timer.
func (tm *Timer) Arm(d time.Duration, fire func()) {
	if tm.t != nil {
		tm.t.Stop()
	}
	tm.pending = true
	tm.t = time.AfterFunc(d, func() {
		tm.pending = false
		fire()
	})
}

// Cancel stops a pending timer, if any.
func (tm *Timer) Cancel() {
	if tm.t != nil {
		tm.t.Stop()
	}
	tm.pending = false
}

// Pending reports whether a timer is currently armed and has not fired.
func (tm *Timer) Pending() bool {
	return tm.pending
}
