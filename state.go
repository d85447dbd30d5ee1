package reflux

// State describes the health of a Cache.
type State int32

const (
	// StateHealthy indicates the last load or reload succeeded.
	StateHealthy State = iota

	// StateDegraded indicates the last reload failed. The previous snapshot
	// is still being served.
	StateDegraded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// NotifierState is the lifecycle position of a Notifier.
// Transitions only move forward: Created, Running, Stopped.
type NotifierState int32

const (
	// NotifierCreated is the state before Start.
	NotifierCreated NotifierState = iota

	// NotifierRunning indicates the watch loop is active.
	NotifierRunning

	// NotifierStopped is terminal. It is reached through Close, context
	// cancellation, or a watch subsystem failure.
	NotifierStopped
)

// String returns the string representation of the notifier state.
func (s NotifierState) String() string {
	switch s {
	case NotifierCreated:
		return "created"
	case NotifierRunning:
		return "running"
	case NotifierStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
