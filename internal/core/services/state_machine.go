package services

import (
	"time"

	"callnet/internal/core/domain"
)

// ApplyTransition is the pure call state machine. It validates the event
// against the current session state, returns the resulting session as a new
// value plus the notifications the transition produces, and never touches
// storage or transport. Timer- and watchdog-driven events pass
// domain.SystemActor and skip the party guard.
func ApplyTransition(sess *domain.CallSession, event domain.TransitionEvent, actor domain.UserID, now time.Time) (*domain.CallSession, []domain.Notification, error) {
	if sess.Status == domain.StatusEnded {
		return nil, nil, domain.ErrInvalidTransition
	}

	if actor != domain.SystemActor && !sess.IsParty(actor) {
		return nil, nil, domain.ErrForbidden
	}

	switch event {
	case domain.EventAnswer:
		return applyAnswer(sess, actor, now)
	case domain.EventReject:
		return applyReject(sess, actor, now)
	case domain.EventEnd:
		return applyEnd(sess, actor, now)
	case domain.EventTimeout:
		return applyTimeout(sess, now)
	case domain.EventConnectionLost:
		return applyConnectionLost(sess, now)
	default:
		return nil, nil, domain.ErrInvalidArgument
	}
}

func applyAnswer(sess *domain.CallSession, actor domain.UserID, now time.Time) (*domain.CallSession, []domain.Notification, error) {
	if sess.Status != domain.StatusRinging {
		return nil, nil, domain.ErrInvalidTransition
	}
	// Exact equality against the stored callee id; the caller answering
	// their own call makes no sense.
	if actor != sess.Callee {
		return nil, nil, domain.ErrForbidden
	}

	next := sess.Clone()
	next.Status = domain.StatusAnswered
	next.AnswerTime = now

	notifs := []domain.Notification{
		{
			Recipient: sess.Caller,
			Event:     domain.EventCallStatus,
			Payload: domain.CallStatusPayload{
				CallID: sess.ID,
				Status: domain.StatusAnswered,
			},
		},
	}
	return next, notifs, nil
}

func applyReject(sess *domain.CallSession, actor domain.UserID, now time.Time) (*domain.CallSession, []domain.Notification, error) {
	if sess.Status != domain.StatusRinging {
		return nil, nil, domain.ErrInvalidTransition
	}
	if actor != sess.Callee {
		return nil, nil, domain.ErrForbidden
	}

	next := terminate(sess, domain.ReasonRejected, now)

	notifs := []domain.Notification{
		{
			Recipient: sess.Caller,
			Event:     domain.EventCallStatus,
			Payload: domain.CallStatusPayload{
				CallID: sess.ID,
				Status: domain.StatusEnded,
				Reason: domain.ReasonRejected,
			},
		},
	}
	return next, notifs, nil
}

func applyEnd(sess *domain.CallSession, actor domain.UserID, now time.Time) (*domain.CallSession, []domain.Notification, error) {
	// Valid from both Ringing (caller cancel) and Answered (hangup).
	next := terminate(sess, domain.ReasonHangup, now)

	recipient := sess.Caller
	if actor == sess.Caller {
		recipient = sess.Callee
	}
	notifs := []domain.Notification{
		{
			Recipient: recipient,
			Event:     domain.EventCallStatus,
			Payload: domain.CallStatusPayload{
				CallID: sess.ID,
				Status: domain.StatusEnded,
				Reason: domain.ReasonHangup,
			},
		},
	}
	return next, notifs, nil
}

func applyTimeout(sess *domain.CallSession, now time.Time) (*domain.CallSession, []domain.Notification, error) {
	if sess.Status != domain.StatusRinging {
		return nil, nil, domain.ErrInvalidTransition
	}

	next := terminate(sess, domain.ReasonTimeout, now)
	return next, notifyBoth(sess, domain.ReasonTimeout), nil
}

func applyConnectionLost(sess *domain.CallSession, now time.Time) (*domain.CallSession, []domain.Notification, error) {
	if sess.Status != domain.StatusAnswered {
		return nil, nil, domain.ErrInvalidTransition
	}

	next := terminate(sess, domain.ReasonError, now)
	return next, notifyBoth(sess, domain.ReasonError), nil
}

func terminate(sess *domain.CallSession, reason domain.EndReason, now time.Time) *domain.CallSession {
	next := sess.Clone()
	next.Status = domain.StatusEnded
	next.EndReason = reason
	next.EndTime = now
	return next
}

func notifyBoth(sess *domain.CallSession, reason domain.EndReason) []domain.Notification {
	payload := domain.CallStatusPayload{
		CallID: sess.ID,
		Status: domain.StatusEnded,
		Reason: reason,
	}
	return []domain.Notification{
		{Recipient: sess.Caller, Event: domain.EventCallStatus, Payload: payload},
		{Recipient: sess.Callee, Event: domain.EventCallStatus, Payload: payload},
	}
}
