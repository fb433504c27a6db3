package frames

import "fmt"

type State uint8

const (
	StateIdle State = iota
	StateWaitingOnSlotFence
	StateAcquiring
	StateWaitingOnImageFence
	StateSubmitting
	StatePresenting
	StateInvalidated
	StateRebuilding
	// Suspended: the surface has zero area. Every DrawFrame retries the
	// rebuild until it has a size again.
	StateSuspended
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWaitingOnSlotFence:
		return "WaitingOnSlotFence"
	case StateAcquiring:
		return "Acquiring"
	case StateWaitingOnImageFence:
		return "WaitingOnImageFence"
	case StateSubmitting:
		return "Submitting"
	case StatePresenting:
		return "Presenting"
	case StateInvalidated:
		return "Invalidated"
	case StateRebuilding:
		return "Rebuilding"
	case StateSuspended:
		return "Suspended"
	case StateShutDown:
		return "ShutDown"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}
