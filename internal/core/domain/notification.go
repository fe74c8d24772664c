package domain

// Outbound event names delivered to a user's bound sockets.
const (
	EventIncomingCall     = "incoming-call"
	EventCallStatus       = "call-status"
	EventBitrateDirective = "bitrate-directive"
	EventSignalRelay      = "signal-relay"
)

// Notification is one (recipient, event, payload) side effect produced by a
// state transition. Transitions return these as data; a separate dispatch
// step delivers them, so transition logic stays transport-free.
type Notification struct {
	Recipient UserID
	Event     string
	Payload   interface{}
}

// IncomingCallPayload announces a new ringing call to the callee.
type IncomingCallPayload struct {
	CallID CallID   `json:"call_id"`
	From   UserID   `json:"from"`
	Type   CallType `json:"type"`
}

// CallStatusPayload reports a status change to a call party.
type CallStatusPayload struct {
	CallID CallID     `json:"call_id"`
	Status CallStatus `json:"status"`
	Reason EndReason  `json:"reason,omitempty"`
}

// SignalRelayPayload carries an opaque signaling blob (SDP offer/answer,
// ICE candidate) between the two parties. The core never interprets it.
type SignalRelayPayload struct {
	CallID CallID      `json:"call_id"`
	From   UserID      `json:"from"`
	Signal interface{} `json:"signal"`
}
