package eventbus

import "time"

// Kind identifies one of the closed set of framework events.
type Kind string

const (
	// KindAny subscribes to every event; it is never published directly.
	KindAny Kind = "*"

	KindCommandExecutionStarted    Kind = "command.execution.started"
	KindCommandExecutionFinished   Kind = "command.execution.finished"
	KindScheduledExecutionStarted  Kind = "scheduled.execution.started"
	KindScheduledExecutionFinished Kind = "scheduled.execution.finished"
	KindInlineExecutionStarted     Kind = "inline.execution.started"
	KindInlineExecutionFinished    Kind = "inline.execution.finished"
	KindCaptureExecutionStarted    Kind = "capture.execution.started"
	KindCaptureExecutionFinished   Kind = "capture.execution.finished"

	KindCacheBuildStarted  Kind = "cache.build.started"
	KindCacheBuildFinished Kind = "cache.build.finished"

	KindLockAcquired Kind = "lock.acquired"
	KindLockReleased Kind = "lock.released"

	KindStateSaved  Kind = "state.saved"
	KindStateLoaded Kind = "state.loaded"

	KindTaskCreated Kind = "task.created"
	KindTaskRun     Kind = "task.run"

	KindError Kind = "error"
)

// Event is the payload delivered to subscribers. CorrelationID ties
// together events belonging to one unit of work.
type Event struct {
	Kind          Kind
	CorrelationID string
	Action        string
	Tenant        string
	Detail        map[string]any
	At            time.Time
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)
