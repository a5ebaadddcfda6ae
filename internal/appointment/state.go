package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTerminalAppointment     = errors.New("appointment is completed or cancelled")
)

// InvalidTransitionError identifies the rejected pair.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s in one step.
func AllowedTransitions(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

type TransitionOptions struct {
	Reason string
	By     string
	Now    time.Time
}

// Transition moves a to the requested status. On failure a is left unchanged.
func Transition(a *Appointment, to Status, opts TransitionOptions) error {
	if !CanTransition(a.Status, to) {
		return &InvalidTransitionError{From: a.Status, To: to}
	}
	reason := strings.TrimSpace(opts.Reason)
	if to == StatusCancelled && reason == "" {
		return &ValidationError{Field: "cancellationReason", Message: "is required"}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch to {
	case StatusConfirmed:
		a.ConfirmedDate = &now
	case StatusCompleted:
		a.CompletedDate = &now
	case StatusCancelled:
		a.CancelledDate = &now
		a.CancellationReason = reason
	}
	a.Status = to
	if opts.By != "" {
		a.LastModifiedBy = opts.By
	}
	a.UpdatedAt = now
	return nil
}
