package types

import "errors"

var (
	ErrMeetingNotFound   = errors.New("meeting not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
