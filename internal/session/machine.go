// Package session holds the per-connection lifecycle shared by the server
// and the reconnecting client.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// State is a connection lifecycle state.
type State int32

const (
	Connecting State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Role decides whether a machine may leave Disconnected.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// ErrInvalidTransition is returned for a transition the lifecycle does not
// allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// ChangeFunc observes a transition. It runs after the machine lock has been
// released.
type ChangeFunc func(from, to State)

// Machine is the lifecycle of one logical connection. A server-role machine
// ends in Disconnected; a client-role machine may re-enter Connecting.
type Machine struct {
	mu       sync.Mutex
	role     Role
	state    State
	clock    clock.Clock
	lastSeen time.Time
	watchers []ChangeFunc
}

// NewMachine returns a machine in Connecting. A nil clock means the wall
// clock.
func NewMachine(role Role, clk clock.Clock) *Machine {
	if clk == nil {
		clk = clock.New()
	}
	return &Machine{role: role, state: Connecting, clock: clk}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether outbound writes are currently allowed.
func (m *Machine) IsConnected() bool {
	return m.State() == Connected
}

// OnChange registers fn for every future transition.
func (m *Machine) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

// Open moves Connecting to Connected after a successful handshake.
func (m *Machine) Open() error {
	return m.transition(Connecting, Connected)
}

// Close moves the machine to Disconnected from either live state. It reports
// whether a transition happened; closing twice is a no-op.
func (m *Machine) Close() bool {
	m.mu.Lock()
	from := m.state
	if from == Disconnected {
		m.mu.Unlock()
		return false
	}
	m.state = Disconnected
	watchers := m.watchers
	m.mu.Unlock()

	notify(watchers, from, Disconnected)
	return true
}

// Reconnect moves Disconnected back to Connecting. Only client machines may
// do this.
func (m *Machine) Reconnect() error {
	if m.role != RoleClient {
		return fmt.Errorf("%w: server connections do not reconnect", ErrInvalidTransition)
	}
	return m.transition(Disconnected, Connecting)
}

// Touch records inbound activity.
func (m *Machine) Touch() {
	m.mu.Lock()
	m.lastSeen = m.clock.Now()
	m.mu.Unlock()
}

// LastSeen is the time of the most recent Touch, or zero.
func (m *Machine) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

func (m *Machine) transition(from, to State) error {
	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, cur)
	}
	m.state = to
	if to == Connected {
		m.lastSeen = m.clock.Now()
	}
	watchers := m.watchers
	m.mu.Unlock()

	notify(watchers, from, to)
	return nil
}

func notify(watchers []ChangeFunc, from, to State) {
	for _, fn := range watchers {
		fn(from, to)
	}
}
