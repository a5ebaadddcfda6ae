package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSlotConflict = errors.New("agent already has an appointment at this time")

// ConflictError carries the overlapping appointments so callers can show them.
type ConflictError struct {
	Conflicts []Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (%d existing)", ErrSlotConflict.Error(), len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

// FindConflicts returns every non-terminal appointment in existing that shares agent,
// calendar date and time with the requested slot, skipping excludeID.
// It only reports; deciding to reject, queue or force is up to the caller.
func FindConflicts(existing []Appointment, agentID string, date time.Time, clock string, excludeID uuid.UUID) []Appointment {
	if agentID == "" {
		return nil
	}
	var out []Appointment
	for _, a := range existing {
		if a.ID == excludeID && excludeID != uuid.Nil {
			continue
		}
		if a.AgentID != agentID || a.Time != clock || !sameDate(a.Date, date) {
			continue
		}
		if a.Status.Terminal() {
			continue
		}
		out = append(out, a)
	}
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
