package domain

import "time"

type CallID string
type UserID string
type ConnID string

type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

type CallStatus string

const (
	StatusRinging  CallStatus = "ringing"
	StatusAnswered CallStatus = "answered"
	StatusEnded    CallStatus = "ended"
)

type EndReason string

const (
	ReasonNone     EndReason = "none"
	ReasonHangup   EndReason = "hangup"
	ReasonRejected EndReason = "rejected"
	ReasonTimeout  EndReason = "timeout"
	ReasonError    EndReason = "error"
)

// CallSession is the authoritative record of one two-party call.
// Status and EndReason are mutated only through the state machine.
type CallSession struct {
	ID         CallID
	Caller     UserID
	Callee     UserID
	Type       CallType
	Status     CallStatus
	StartTime  time.Time
	AnswerTime time.Time
	EndTime    time.Time
	EndReason  EndReason
	Quality    map[UserID]QualityTier // per-leg, keyed by reporting user
}

func (s *CallSession) Active() bool {
	return s.Status != StatusEnded
}

func (s *CallSession) IsParty(u UserID) bool {
	return u == s.Caller || u == s.Callee
}

// OtherParty returns the counterpart of u in the call. The caller must
// already have checked IsParty.
func (s *CallSession) OtherParty(u UserID) UserID {
	if u == s.Caller {
		return s.Callee
	}
	return s.Caller
}

// Duration reports ringing-to-now for live calls and answer-to-end for
// completed ones. Never-answered calls have zero duration.
func (s *CallSession) Duration(now time.Time) time.Duration {
	if s.AnswerTime.IsZero() {
		return 0
	}
	if s.Status == StatusEnded {
		return s.EndTime.Sub(s.AnswerTime)
	}
	return now.Sub(s.AnswerTime)
}

// Clone returns a deep copy so state-machine transitions never mutate the
// stored session in place.
func (s *CallSession) Clone() *CallSession {
	c := *s
	if s.Quality != nil {
		c.Quality = make(map[UserID]QualityTier, len(s.Quality))
		for k, v := range s.Quality {
			c.Quality[k] = v
		}
	}
	return &c
}

// CallSummary is the read-model returned by status and listing queries.
type CallSummary struct {
	ID         CallID     `json:"call_id"`
	Caller     UserID     `json:"caller"`
	Callee     UserID     `json:"callee"`
	Type       CallType   `json:"type"`
	Status     CallStatus `json:"status"`
	Reason     EndReason  `json:"reason,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

func (s *CallSession) Summary(now time.Time) CallSummary {
	sum := CallSummary{
		ID:         s.ID,
		Caller:     s.Caller,
		Callee:     s.Callee,
		Type:       s.Type,
		Status:     s.Status,
		DurationMs: s.Duration(now).Milliseconds(),
	}
	if s.Status == StatusEnded {
		sum.Reason = s.EndReason
	}
	return sum
}
