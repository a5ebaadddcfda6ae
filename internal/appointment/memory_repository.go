package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in process. It enforces the same unique rules
// as the Postgres schema: one booking reference per record and one active booking
// per agent slot.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Appointment
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[uuid.UUID]*Appointment{}}
}

func clone(a *Appointment) *Appointment {
	c := *a
	c.SetDocuments(a.documents)
	c.RequiredDocuments = append([]string(nil), a.RequiredDocuments...)
	if a.QRCode != nil {
		qr := *a.QRCode
		c.QRCode = &qr
	}
	return &c
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) GetAppointmentByReference(_ context.Context, ref string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.BookingReference == ref {
			return clone(a), nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) ListActiveForAgentSlot(_ context.Context, agentID string, date time.Time, clock string) ([]Appointment, error) {
	return r.filter(func(a *Appointment) bool {
		return a.AgentID == agentID && a.Time == clock && sameDate(a.Date, date) && a.IsModifiable()
	}), nil
}

func (r *MemoryRepository) ListByCitizen(_ context.Context, citizenID string, limit, offset int) ([]Appointment, error) {
	out := r.filter(func(a *Appointment) bool { return a.CitizenID == citizenID })
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt(time.UTC).After(out[j].ScheduledAt(time.UTC))
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListForDepartmentOn(_ context.Context, department string, date time.Time) ([]Appointment, error) {
	out := r.filter(func(a *Appointment) bool {
		return (a.Department == department || a.Department == "") && sameDate(a.Date, date)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *MemoryRepository) filter(keep func(a *Appointment) bool) []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.byID {
		if keep(a) {
			out = append(out, *clone(a))
		}
	}
	return out
}

// slotTaken mirrors the partial unique index on active agent slots.
func (r *MemoryRepository) slotTaken(a *Appointment) bool {
	if a.AgentID == "" || !a.IsModifiable() {
		return false
	}
	for id, other := range r.byID {
		if id != a.ID && other.AgentID == a.AgentID && other.Time == a.Time &&
			sameDate(other.Date, a.Date) && other.IsModifiable() {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.BookingReference == a.BookingReference {
			return ErrDuplicateReference
		}
	}
	if r.slotTaken(a) {
		return ErrSlotConflict
	}
	r.byID[a.ID] = clone(a)
	return nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, a *Appointment, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok || stored.Status != expected {
		return ErrStaleAppointment
	}
	if r.slotTaken(a) {
		return ErrSlotConflict
	}
	r.byID[a.ID] = clone(a)
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns the logged events in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
