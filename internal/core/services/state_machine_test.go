package services

import (
	"testing"
	"time"

	"callnet/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func ringingSession() *domain.CallSession {
	return &domain.CallSession{
		ID:        "call-1",
		Caller:    "alice",
		Callee:    "bob",
		Type:      domain.CallTypeVideo,
		Status:    domain.StatusRinging,
		StartTime: time.Now().Add(-time.Second),
		EndReason: domain.ReasonNone,
	}
}

func answeredSession() *domain.CallSession {
	sess := ringingSession()
	sess.Status = domain.StatusAnswered
	sess.AnswerTime = time.Now()
	return sess
}

func endedSession() *domain.CallSession {
	sess := answeredSession()
	sess.Status = domain.StatusEnded
	sess.EndReason = domain.ReasonHangup
	sess.EndTime = time.Now()
	return sess
}

func TestApplyTransition_AnswerByCallee(t *testing.T) {
	now := time.Now()
	sess := ringingSession()

	next, notifs, err := ApplyTransition(sess, domain.EventAnswer, "bob", now)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, next.Status)
	assert.Equal(t, now, next.AnswerTime)
	// Input session is never mutated.
	assert.Equal(t, domain.StatusRinging, sess.Status)

	assert.Len(t, notifs, 1)
	assert.Equal(t, domain.UserID("alice"), notifs[0].Recipient)
	assert.Equal(t, domain.EventCallStatus, notifs[0].Event)
	payload := notifs[0].Payload.(domain.CallStatusPayload)
	assert.Equal(t, domain.StatusAnswered, payload.Status)
}

func TestApplyTransition_AnswerByCallerForbidden(t *testing.T) {
	_, _, err := ApplyTransition(ringingSession(), domain.EventAnswer, "alice", time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApplyTransition_AnswerByStrangerForbidden(t *testing.T) {
	_, _, err := ApplyTransition(ringingSession(), domain.EventAnswer, "mallory", time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApplyTransition_AnswerAfterAnswerRejected(t *testing.T) {
	_, _, err := ApplyTransition(answeredSession(), domain.EventAnswer, "bob", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyTransition_RejectByCallee(t *testing.T) {
	now := time.Now()
	next, notifs, err := ApplyTransition(ringingSession(), domain.EventReject, "bob", now)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, next.Status)
	assert.Equal(t, domain.ReasonRejected, next.EndReason)
	assert.Equal(t, now, next.EndTime)

	assert.Len(t, notifs, 1)
	assert.Equal(t, domain.UserID("alice"), notifs[0].Recipient)
	payload := notifs[0].Payload.(domain.CallStatusPayload)
	assert.Equal(t, domain.ReasonRejected, payload.Reason)
}

func TestApplyTransition_RejectByCallerForbidden(t *testing.T) {
	_, _, err := ApplyTransition(ringingSession(), domain.EventReject, "alice", time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApplyTransition_RejectAnsweredRejected(t *testing.T) {
	_, _, err := ApplyTransition(answeredSession(), domain.EventReject, "bob", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyTransition_EndWhileRingingCancels(t *testing.T) {
	next, notifs, err := ApplyTransition(ringingSession(), domain.EventEnd, "alice", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, next.Status)
	assert.Equal(t, domain.ReasonHangup, next.EndReason)

	// Only the counterpart of the actor is notified.
	assert.Len(t, notifs, 1)
	assert.Equal(t, domain.UserID("bob"), notifs[0].Recipient)
}

func TestApplyTransition_EndAnsweredHangsUp(t *testing.T) {
	next, notifs, err := ApplyTransition(answeredSession(), domain.EventEnd, "bob", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, domain.ReasonHangup, next.EndReason)
	assert.Len(t, notifs, 1)
	assert.Equal(t, domain.UserID("alice"), notifs[0].Recipient)
}

func TestApplyTransition_TimeoutRinging(t *testing.T) {
	next, notifs, err := ApplyTransition(ringingSession(), domain.EventTimeout, domain.SystemActor, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, domain.ReasonTimeout, next.EndReason)

	assert.Len(t, notifs, 2)
	recipients := []domain.UserID{notifs[0].Recipient, notifs[1].Recipient}
	assert.Contains(t, recipients, domain.UserID("alice"))
	assert.Contains(t, recipients, domain.UserID("bob"))
}

func TestApplyTransition_TimeoutAnsweredRejected(t *testing.T) {
	_, _, err := ApplyTransition(answeredSession(), domain.EventTimeout, domain.SystemActor, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyTransition_ConnectionLostAnswered(t *testing.T) {
	next, notifs, err := ApplyTransition(answeredSession(), domain.EventConnectionLost, domain.SystemActor, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, domain.ReasonError, next.EndReason)
	assert.Len(t, notifs, 2)
}

func TestApplyTransition_ConnectionLostRingingRejected(t *testing.T) {
	_, _, err := ApplyTransition(ringingSession(), domain.EventConnectionLost, domain.SystemActor, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyTransition_TerminalStateRejectsEverything(t *testing.T) {
	events := []domain.TransitionEvent{
		domain.EventAnswer,
		domain.EventReject,
		domain.EventEnd,
		domain.EventTimeout,
		domain.EventConnectionLost,
	}
	for _, event := range events {
		_, _, err := ApplyTransition(endedSession(), event, "bob", time.Now())
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "event %s", event)
	}
}

func TestApplyTransition_UnknownEvent(t *testing.T) {
	_, _, err := ApplyTransition(ringingSession(), domain.TransitionEvent("mute"), "bob", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
