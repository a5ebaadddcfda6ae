package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/gov-appointments/internal/observability/metrics"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventDocumentAdded          = "DOCUMENT_ADDED"
	EventQRGenerated            = "QR_GENERATED"
)

// MaxReferenceAttempts bounds retries after booking reference collisions.
const MaxReferenceAttempts = 5

var (
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrReferencesExhausted  = errors.New("could not allocate a unique booking reference")
	ErrUnknownNotifyChannel = errors.New("notification channel must be email or sms")
)

type ServiceConfig struct {
	Location   *time.Location
	References *ReferenceGenerator
	Now        func() time.Time
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	refs    *ReferenceGenerator
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(repo Repository, locker redisclient.Locker, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.References == nil {
		cfg.References = NewRandomReferenceGenerator()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		refs:    cfg.References,
		loc:     cfg.Location,
		now:     cfg.Now,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Location is the local context used for "today" and scheduled times.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Create books a pending appointment. The conflict check is a pre-filter for a good
// error message; the active-slot unique index is the final arbiter.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	now := s.now()

	appt, err := NewAppointment(in, s.refs.Generate(now.In(s.loc)), now, s.loc)
	if err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, err
	}

	book := func(ctx context.Context) error {
		if err := s.checkConflicts(ctx, appt, uuid.Nil); err != nil {
			return err
		}
		return s.insertWithFreshReference(ctx, appt, now)
	}

	if appt.AgentID == "" {
		err = book(ctx)
	} else {
		key := redisclient.SlotKey(appt.AgentID, FormatDate(appt.Date), appt.Time)
		err = s.locker.WithSlotLock(ctx, key, book)
	}

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.ObserveBooking("locked")
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotConflict):
			s.metrics.ObserveBooking("conflict")
			return nil, err
		default:
			s.metrics.ObserveBooking("error")
			return nil, err
		}
	}

	s.metrics.ObserveBooking("created")
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("booking_reference", appt.BookingReference).
		Str("agent_id", appt.AgentID).
		Msg("appointment created")

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"booking_reference": appt.BookingReference,
		"agent_id":          appt.AgentID,
		"date":              FormatDate(appt.Date),
		"time":              appt.Time,
	})

	return appt, nil
}

func (s *Service) checkConflicts(ctx context.Context, appt *Appointment, exclude uuid.UUID) error {
	if appt.AgentID == "" {
		return nil
	}
	existing, err := s.repo.ListActiveForAgentSlot(ctx, appt.AgentID, appt.Date, appt.Time)
	if err != nil {
		return fmt.Errorf("check agent slot: %w", err)
	}
	if conflicts := FindConflicts(existing, appt.AgentID, appt.Date, appt.Time, exclude); len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// insertWithFreshReference retries on reference collisions with a new random suffix.
// The reference is only ever generated here, before the first successful insert.
func (s *Service) insertWithFreshReference(ctx context.Context, appt *Appointment, now time.Time) error {
	for attempt := 0; attempt < MaxReferenceAttempts; attempt++ {
		if attempt > 0 {
			appt.BookingReference = s.refs.Generate(now.In(s.loc))
		}
		err := s.repo.CreateAppointment(ctx, appt)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrDuplicateReference):
			s.metrics.ObserveReferenceCollision()
			s.logger.Warn().Str("booking_reference", appt.BookingReference).Int("attempt", attempt+1).Msg("booking reference collision")
			continue
		case errors.Is(err, ErrSlotConflict):
			return &ConflictError{}
		default:
			return fmt.Errorf("create appointment: %w", err)
		}
	}
	return ErrReferencesExhausted
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID, by string) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, TransitionOptions{By: by}, EventAppointmentConfirmed)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, by string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, TransitionOptions{By: by}, EventAppointmentCompleted)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, by string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, TransitionOptions{By: by, Reason: reason}, EventAppointmentCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, opts TransitionOptions, event string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	prev := appt.Status
	opts.Now = s.now()
	if err := Transition(appt, to, opts); err != nil {
		s.metrics.ObserveTransition(string(prev), string(to), "rejected")
		return nil, err
	}

	if err := s.repo.UpdateAppointment(ctx, appt, prev); err != nil {
		s.metrics.ObserveTransition(string(prev), string(to), "error")
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.metrics.ObserveTransition(string(prev), string(to), "ok")
	payload := map[string]any{"from": prev, "to": to}
	if to == StatusCancelled {
		payload["reason"] = appt.CancellationReason
	}
	s.logEvent(ctx, appt.ID, event, payload)

	return appt, nil
}

type RescheduleInput struct {
	Date    string
	Time    string
	AgentID *string
	By      string
}

// Reschedule moves a modifiable appointment to a new date and time. The booking
// reference is kept.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !appt.IsModifiable() {
		return nil, ErrTerminalAppointment
	}

	now := s.now()
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if err := ValidateTime(in.Time); err != nil {
		return nil, err
	}
	if err := ValidateFutureDate(date, now, s.loc); err != nil {
		return nil, err
	}

	prev := appt.Status
	oldDate, oldTime, oldAgent := FormatDate(appt.Date), appt.Time, appt.AgentID
	appt.Date = date
	appt.Time = in.Time
	if in.AgentID != nil {
		appt.AgentID = strings.TrimSpace(*in.AgentID)
	}
	// the QR payload carries date, time and agent; a moved booking needs a new one
	if FormatDate(appt.Date) != oldDate || appt.Time != oldTime || appt.AgentID != oldAgent {
		appt.QRCode = nil
	}
	appt.UpdatedAt = now
	if in.By != "" {
		appt.LastModifiedBy = in.By
	}

	move := func(ctx context.Context) error {
		if err := s.checkConflicts(ctx, appt, appt.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateAppointment(ctx, appt, prev); err != nil {
			if errors.Is(err, ErrSlotConflict) {
				return &ConflictError{}
			}
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	}

	if appt.AgentID == "" {
		err = move(ctx)
	} else {
		err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(appt.AgentID, FormatDate(appt.Date), appt.Time), move)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentRescheduled, map[string]any{
		"from_date": oldDate,
		"from_time": oldTime,
		"to_date":   FormatDate(appt.Date),
		"to_time":   appt.Time,
		"agent_id":  appt.AgentID,
	})

	return appt, nil
}

// mutate loads, applies fn and saves under the loaded status.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(a *Appointment, now time.Time) error) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	now := s.now()
	if err := fn(appt, now); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAppointment(ctx, appt, appt.Status); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) AddDocument(ctx context.Context, id uuid.UUID, doc Document, by string) (*Appointment, error) {
	appt, err := s.mutate(ctx, id, func(a *Appointment, now time.Time) error {
		if err := a.AddDocument(doc, now); err != nil {
			return err
		}
		if by != "" {
			a.LastModifiedBy = by
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventDocumentAdded, map[string]any{"name": doc.Name, "label": doc.Label})
	return appt, nil
}

func (s *Service) UpdateAgentNotes(ctx context.Context, id uuid.UUID, notes, by string) (*Appointment, error) {
	return s.mutate(ctx, id, func(a *Appointment, now time.Time) error {
		if a.Status.Terminal() {
			return ErrTerminalAppointment
		}
		a.AgentNotes = notes
		a.LastModifiedBy = by
		a.UpdatedAt = now
		return nil
	})
}

// MarkNotification records that an email or SMS went out. Delivery happens elsewhere.
func (s *Service) MarkNotification(ctx context.Context, id uuid.UUID, channel string) (*Appointment, error) {
	return s.mutate(ctx, id, func(a *Appointment, now time.Time) error {
		switch channel {
		case "email":
			a.EmailSent = true
			a.EmailSentAt = &now
		case "sms":
			a.SMSSent = true
			a.SMSSentAt = &now
		default:
			return ErrUnknownNotifyChannel
		}
		a.UpdatedAt = now
		return nil
	})
}

// AttachQR stores the generated QR artifact on the appointment.
func (s *Service) AttachQR(ctx context.Context, id uuid.UUID, qr QRArtifact) (*Appointment, error) {
	appt, err := s.mutate(ctx, id, func(a *Appointment, now time.Time) error {
		if a.Status.Terminal() {
			return ErrTerminalAppointment
		}
		a.QRCode = &qr
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventQRGenerated, map[string]any{"generated_at": qr.GeneratedAt})
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) GetByReference(ctx context.Context, ref string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByReference(ctx, strings.ToUpper(strings.TrimSpace(ref)))
	if err != nil {
		return nil, fmt.Errorf("get appointment by reference: %w", err)
	}
	return appt, nil
}

// ListByCitizen retrieves appointments for a specific citizen
func (s *Service) ListByCitizen(ctx context.Context, citizenID string, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByCitizen(ctx, citizenID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by citizen: %w", err)
	}
	return appointments, nil
}

// ListForDepartmentOn returns the department's board for date. A zero date means today.
func (s *Service) ListForDepartmentOn(ctx context.Context, department string, date time.Time) ([]Appointment, error) {
	if date.IsZero() {
		date = CalendarDate(s.now().In(s.loc))
	}
	appointments, err := s.repo.ListForDepartmentOn(ctx, department, CalendarDate(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments by department: %w", err)
	}
	return appointments, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
