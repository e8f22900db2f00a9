// Package admission tracks whether the local participant is waiting,
// admitted or rejected, and the host's queue of pending participants.
package admission

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

type State int

const (
	Connecting State = iota
	WaitingRoom
	Active
	Rejected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case WaitingRoom:
		return "waiting-room"
	case Active:
		return "active"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// RejectKind only changes the message shown, never the transition.
type RejectKind int

const (
	RejectByHost RejectKind = iota
	RejectByPolicy
)

var ErrTerminal = errors.New("admission state is terminal")

// FSM is the local admission state machine. Rejected is terminal: the
// only way out is session teardown.
type FSM struct {
	mu    sync.Mutex
	state State

	onActive   func()
	onWaiting  func()
	onRejected func(kind RejectKind, reason string)
}

func NewFSM() *FSM {
	return &FSM{state: Connecting}
}

func (f *FSM) OnActive(fn func())                              { f.onActive = fn }
func (f *FSM) OnWaiting(fn func())                             { f.onWaiting = fn }
func (f *FSM) OnRejected(fn func(kind RejectKind, reason string)) { f.onRejected = fn }

func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// HandleHostStatus applies the relay's first answer: hosts and
// pre-admitted participants go straight to Active, everyone else waits.
func (f *FSM) HandleHostStatus(isHost, isAdmitted bool) error {
	f.mu.Lock()
	if f.state != Connecting {
		cur := f.state
		f.mu.Unlock()
		log.Warn().Str("module", "admission").Str("state", cur.String()).Msg("host-status ignored outside connecting")
		if cur == Rejected {
			return ErrTerminal
		}
		return nil
	}
	if isHost || isAdmitted {
		f.state = Active
		f.mu.Unlock()
		f.fire(f.onActive)
		return nil
	}
	f.state = WaitingRoom
	f.mu.Unlock()
	f.fire(f.onWaiting)
	return nil
}

// HandleAdmitted moves a waiting participant into the meeting.
func (f *FSM) HandleAdmitted() error {
	f.mu.Lock()
	switch f.state {
	case Rejected:
		f.mu.Unlock()
		return ErrTerminal
	case Active:
		f.mu.Unlock()
		return nil // duplicate notification
	case Connecting:
		// admitted must not skip the waiting room announcement
		f.mu.Unlock()
		log.Warn().Str("module", "admission").Msg("admitted before host-status, ignored")
		return nil
	}
	f.state = Active
	f.mu.Unlock()
	f.fire(f.onActive)
	return nil
}

// HandleRejected is valid from any non-terminal state; host rejection
// and automatic policy rejection take the same transition.
func (f *FSM) HandleRejected(kind RejectKind, reason string) error {
	f.mu.Lock()
	if f.state == Rejected {
		f.mu.Unlock()
		return nil
	}
	f.state = Rejected
	f.mu.Unlock()
	if f.onRejected != nil {
		f.onRejected(kind, reason)
	}
	return nil
}

func (f *FSM) fire(fn func()) {
	if fn != nil {
		fn()
	}
}
