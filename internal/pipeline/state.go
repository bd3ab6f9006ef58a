package pipeline

import "fmt"

// State is a stage of a synchronization run
type State int

const (
	StateStart State = iota
	StateInputReady
	StateCleaned
	StateClassified
	StateFeatureResolved
	StateSynchronizing
	StateDone
)

var stateNames = map[State]string{
	StateStart:           "start",
	StateInputReady:      "input_ready",
	StateCleaned:         "cleaned",
	StateClassified:      "classified",
	StateFeatureResolved: "feature_resolved",
	StateSynchronizing:   "synchronizing",
	StateDone:            "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event moves a run from one state to the next
type Event int

const (
	EventInputLoaded Event = iota
	EventCleaned
	EventClassified
	EventFeatureResolved
	EventSyncStarted
	EventSyncFinished
)

var eventNames = map[Event]string{
	EventInputLoaded:     "input_loaded",
	EventCleaned:         "cleaned",
	EventClassified:      "classified",
	EventFeatureResolved: "feature_resolved",
	EventSyncStarted:     "sync_started",
	EventSyncFinished:    "sync_finished",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

type transitionKey struct {
	from  State
	event Event
}

// transitions is the complete, strictly forward graph of a run
var transitions = map[transitionKey]State{
	{StateStart, EventInputLoaded}:           StateInputReady,
	{StateInputReady, EventCleaned}:          StateCleaned,
	{StateCleaned, EventClassified}:          StateClassified,
	{StateClassified, EventFeatureResolved}:  StateFeatureResolved,
	{StateFeatureResolved, EventSyncStarted}: StateSynchronizing,
	{StateSynchronizing, EventSyncFinished}:  StateDone,
}

// machine tracks the state of one run
type machine struct {
	table   map[transitionKey]State
	current State
}

func newMachine(table map[transitionKey]State) (*machine, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	return &machine{table: table, current: StateStart}, nil
}

// validateTable checks the graph is one forward chain from Start to Done:
// every state but Done has exactly one exit, and each step moves forward.
func validateTable(table map[transitionKey]State) error {
	exits := make(map[State]State, len(table))
	for key, to := range table {
		if _, known := stateNames[key.from]; !known {
			return fmt.Errorf("transition from unknown %s", key.from)
		}
		if _, known := stateNames[to]; !known {
			return fmt.Errorf("transition to unknown %s", to)
		}
		if to <= key.from {
			return fmt.Errorf("transition %s --%s--> %s does not move forward", key.from, key.event, to)
		}
		if prev, dup := exits[key.from]; dup {
			return fmt.Errorf("state %s has two exits (%s, %s)", key.from, prev, to)
		}
		exits[key.from] = to
	}

	seen := map[State]bool{StateStart: true}
	for s := StateStart; s != StateDone; {
		next, ok := exits[s]
		if !ok {
			return fmt.Errorf("state %s has no exit", s)
		}
		if seen[next] {
			return fmt.Errorf("cycle at %s", next)
		}
		seen[next] = true
		s = next
	}
	if _, ok := exits[StateDone]; ok {
		return fmt.Errorf("state %s must be terminal", StateDone)
	}
	if len(seen) != len(stateNames) {
		return fmt.Errorf("%d states unreachable from %s", len(stateNames)-len(seen), StateStart)
	}
	return nil
}

// fire applies event and returns the previous and new state
func (m *machine) fire(event Event) (State, State, error) {
	next, ok := m.table[transitionKey{m.current, event}]
	if !ok {
		return m.current, m.current, fmt.Errorf("event %s not allowed in state %s", event, m.current)
	}
	from := m.current
	m.current = next
	return from, next, nil
}

func (m *machine) state() State {
	return m.current
}
