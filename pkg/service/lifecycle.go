package service

import (
	"errors"
	"fmt"
	"sync"
)

// State is a lifecycle state of the monitoring subsystem.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// ErrInvalidTransition is returned when a lifecycle call does not fit the
// current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

var validTransitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopped},
	StateRunning:  {StateStopping},
	StateStopping: {StateStopped},
}

// lifecycle guards the current state.
type lifecycle struct {
	mu    sync.RWMutex
	state State
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: StateStopped}
}

func (l *lifecycle) current() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// transition moves to next if the table allows it from the current state.
func (l *lifecycle) transition(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, allowed := range validTransitions[l.state] {
		if allowed == next {
			l.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, next)
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
