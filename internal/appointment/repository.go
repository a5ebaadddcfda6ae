package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDuplicateReference  = errors.New("booking reference already exists")
	ErrStaleAppointment    = errors.New("appointment was modified concurrently")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentByReference(ctx context.Context, ref string) (*Appointment, error)

	// For conflict checks
	ListActiveForAgentSlot(ctx context.Context, agentID string, date time.Time, clock string) ([]Appointment, error)

	ListByCitizen(ctx context.Context, citizenID string, limit, offset int) ([]Appointment, error)
	ListForDepartmentOn(ctx context.Context, department string, date time.Time) ([]Appointment, error)

	// CreateAppointment returns ErrDuplicateReference or ErrSlotConflict on unique violations.
	CreateAppointment(ctx context.Context, a *Appointment) error

	// UpdateAppointment writes a only if the stored status still equals expected,
	// returning ErrStaleAppointment otherwise.
	UpdateAppointment(ctx context.Context, a *Appointment, expected Status) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
