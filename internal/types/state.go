package types

// Phase is the lifecycle tag of a RequestState.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// RequestState tracks one logical request kind for the presentation layer.
// Value is set only in PhaseSucceeded and Err only in PhaseFailed.
type RequestState[T any] struct {
	Phase Phase
	Value *T
	Err   *APIError
}

// Idle returns the state of a request that has not been made.
func Idle[T any]() RequestState[T] {
	return RequestState[T]{Phase: PhaseIdle}
}

// Pending returns the state of a request in flight.
func Pending[T any]() RequestState[T] {
	return RequestState[T]{Phase: PhasePending}
}

// Succeeded returns a resolved state carrying v.
func Succeeded[T any](v T) RequestState[T] {
	return RequestState[T]{Phase: PhaseSucceeded, Value: &v}
}

// Failed returns a resolved state carrying err.
func Failed[T any](err *APIError) RequestState[T] {
	return RequestState[T]{Phase: PhaseFailed, Err: err}
}

func (s RequestState[T]) IsIdle() bool      { return s.Phase == PhaseIdle || s.Phase == "" }
func (s RequestState[T]) IsPending() bool   { return s.Phase == PhasePending }
func (s RequestState[T]) IsSucceeded() bool { return s.Phase == PhaseSucceeded }
func (s RequestState[T]) IsFailed() bool    { return s.Phase == PhaseFailed }
