package domain

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrCallNotFound      = errors.New("call not found")
	ErrForbidden         = errors.New("acting user is not a party to the call")
	ErrAlreadyInCall     = errors.New("user already has an active call")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrDeliveryFailed    = errors.New("delivery to recipient failed")
	ErrUserOffline       = errors.New("user has no connected sockets")
)
