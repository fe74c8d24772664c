package domain

// TransitionEvent names a signaling event admitted to the state machine.
type TransitionEvent string

const (
	EventAnswer         TransitionEvent = "answer"
	EventReject         TransitionEvent = "reject"
	EventEnd            TransitionEvent = "end"
	EventTimeout        TransitionEvent = "timeout"
	EventConnectionLost TransitionEvent = "connection-lost"
)

// SystemActor marks timer- and watchdog-driven transitions that no user
// submitted. The state machine skips party checks for it.
const SystemActor UserID = ""

// Lifecycle event names published for external persistence layers.
const (
	LifecycleInitiated = "call.initiated"
	LifecycleAnswered  = "call.answered"
	LifecycleEnded     = "call.ended"
)
