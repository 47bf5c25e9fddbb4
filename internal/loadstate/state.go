package loadstate

import (
	"fmt"
	"slices"
	"sync"

	"github.com/omjaiswal45/Chat-App/internal/bus"
)

// State represents a phase of a conversation-load request.
type State string

const (
	Idle           State = "IDLE"
	LoadingLocal   State = "LOADING_LOCAL"
	LocalLoaded    State = "LOCAL_LOADED"
	FetchingRemote State = "FETCHING_REMOTE"
	Merged         State = "MERGED"
	RemoteFailed   State = "REMOTE_FAILED"
)

// validTransitions defines allowed state transitions. Every state may fall
// back to Idle (conversation switch cancels an in-flight load) or restart at
// LoadingLocal.
var validTransitions = map[State][]State{
	Idle:           {LoadingLocal},
	LoadingLocal:   {LocalLoaded, Idle, LoadingLocal},
	LocalLoaded:    {FetchingRemote, Idle, LoadingLocal},
	FetchingRemote: {Merged, RemoteFailed, Idle, LoadingLocal},
	Merged:         {LoadingLocal, Idle},
	RemoteFailed:   {LoadingLocal, Idle},
}

// Machine tracks and enforces conversation-load state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Emit(bus.KindLoadChanged, Change{From: from, To: to})
	}
	return nil
}

// Change is the payload for load state change events.
type Change struct {
	From State
	To   State
}
