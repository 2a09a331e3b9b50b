package coordinator

import "errors"

// Every error here is an expected, recoverable outcome: the bot layer
// translates each into a user-facing denial and the process carries on.
var (
	ErrDuplicateOffer      = errors.New("offer already dispatched")
	ErrUnknownOffer        = errors.New("unknown offer")
	ErrUnregisteredDriver  = errors.New("driver not registered")
	ErrNotNotified         = errors.New("driver was not notified of this offer")
	ErrAlreadyTaken        = errors.New("offer already taken")
	ErrNotOwnerOrNotActive = errors.New("offer not active or not owned by driver")
)
