package reflux

import "github.com/zoobzio/capitan"

// Field keys for reflux events.
var (
	// KeyPath is the configuration file path.
	KeyPath = capitan.NewStringKey("path")

	// KeyFormat is the parser format name.
	KeyFormat = capitan.NewStringKey("format")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyModTime is the file modification time, RFC 3339 with nanoseconds.
	KeyModTime = capitan.NewStringKey("mod_time")

	// KeyVersion is the snapshot version.
	KeyVersion = capitan.NewIntKey("version")

	// KeyDuration is how long a load or reload took.
	KeyDuration = capitan.NewDurationKey("duration")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyOp is the filesystem operation that triggered a change.
	KeyOp = capitan.NewStringKey("op")
)
