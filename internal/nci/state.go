// Package nci implements the NCI controller finite state machine, the RF
// sub-state machine, and the per-state command dispatch tables.
package nci

import (
	"fmt"

	"github.com/nfcemu/nfcemu/internal/errs"
)

// ControllerState is the top-level NCI device state.
type ControllerState int

const (
	StateIdle ControllerState = iota
	StateReset
	StateInitialized
)

func (s ControllerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReset:
		return "RESET"
	case StateInitialized:
		return "INITIALIZED"
	default:
		return fmt.Sprintf("ControllerState(%d)", int(s))
	}
}

// RFState is one of the seven RF interface states.
type RFState int

const (
	RFIdle RFState = iota
	RFDiscovery
	RFW4AllDiscoveries
	RFW4HostSelect
	RFPollActive
	RFListenActive
	RFListenSleep
)

func (s RFState) String() string {
	switch s {
	case RFIdle:
		return "Idle"
	case RFDiscovery:
		return "Discovery"
	case RFW4AllDiscoveries:
		return "W4AllDiscoveries"
	case RFW4HostSelect:
		return "W4HostSelect"
	case RFPollActive:
		return "PollActive"
	case RFListenActive:
		return "ListenActive"
	case RFListenSleep:
		return "ListenSleep"
	default:
		return fmt.Sprintf("RFState(%d)", int(s))
	}
}

// rfStateSet is a bitmask over the seven RF states.
type rfStateSet uint8

func setOf(states ...RFState) rfStateSet {
	var s rfStateSet
	for _, st := range states {
		s |= 1 << uint(st)
	}
	return s
}

func (s rfStateSet) has(st RFState) bool {
	return s&(1<<uint(st)) != 0
}

// RFEvent identifies an RF-state-machine transition event.
type RFEvent int

const (
	EventRFDiscoverCmd RFEvent = iota
	EventRFDiscoverNtfMore
	EventRFDiscoverNtfLast
	EventRFIntfActivatedPoll
	EventRFIntfActivatedListen
	EventRFDeactivateIdle
	EventRFDeactivateSleep
	EventRFDeactivateDiscovery
)

type rfTransition struct {
	allowed rfStateSet
	next    RFState
}

var rfTransitions = map[RFEvent]rfTransition{
	EventRFDiscoverCmd:         {setOf(RFIdle), RFDiscovery},
	EventRFDiscoverNtfMore:     {setOf(RFDiscovery), RFW4AllDiscoveries},
	EventRFDiscoverNtfLast:     {setOf(RFW4AllDiscoveries), RFW4HostSelect},
	EventRFIntfActivatedPoll:   {setOf(RFDiscovery, RFW4HostSelect), RFPollActive},
	EventRFIntfActivatedListen: {setOf(RFDiscovery, RFListenSleep), RFListenActive},
	EventRFDeactivateIdle: {
		setOf(RFIdle, RFDiscovery, RFW4AllDiscoveries, RFW4HostSelect, RFPollActive, RFListenActive, RFListenSleep),
		RFIdle,
	},
	EventRFDeactivateDiscovery: {setOf(RFPollActive, RFListenActive), RFDiscovery},
}

// rfDeactivateSleepNext resolves the RF_DEACTIVATE SLEEP/SLEEP_AF target,
// which depends on whether the current state is poll- or listen-side.
func rfDeactivateSleepNext(cur RFState) (RFState, bool) {
	switch cur {
	case RFPollActive:
		return RFW4HostSelect, true
	case RFListenActive:
		return RFListenSleep, true
	default:
		return 0, false
	}
}

// Transition advances cur along ev, panicking with an InvariantViolation if
// cur is not in ev's allowed set — an unreachable programming error per
// the controller FSM invariant.
func Transition(cur RFState, ev RFEvent) RFState {
	if ev == EventRFDeactivateSleep {
		next, ok := rfDeactivateSleepNext(cur)
		if !ok {
			errs.Panic(fmt.Sprintf("nci: rf_deactivate sleep from invalid state %s", cur))
		}
		return next
	}
	t, ok := rfTransitions[ev]
	if !ok {
		errs.Panic(fmt.Sprintf("nci: unknown rf event %d", int(ev)))
	}
	if !t.allowed.has(cur) {
		errs.Panic(fmt.Sprintf("nci: rf transition event %d not allowed from state %s", int(ev), cur))
	}
	return t.next
}

// CanTransition reports whether ev is currently permitted from cur, without
// panicking; callers that need to validate before committing (e.g. the
// data-packet path's state check) use this instead of Transition.
func CanTransition(cur RFState, ev RFEvent) bool {
	if ev == EventRFDeactivateSleep {
		_, ok := rfDeactivateSleepNext(cur)
		return ok
	}
	t, ok := rfTransitions[ev]
	if !ok {
		return false
	}
	return t.allowed.has(cur)
}

// DataAllowed reports whether an incoming NCI data packet is accepted in
// the current RF state.
func DataAllowed(cur RFState) bool {
	return cur == RFPollActive || cur == RFListenActive
}
