package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/observability/metrics"
)

const (
	EarlyWindow = 60 * time.Minute
	LateWindow  = 15 * time.Minute
)

type TimeStatus string

const (
	TimeEarly   TimeStatus = "early"
	TimeValid   TimeStatus = "valid"
	TimeLate    TimeStatus = "late"
	TimeExpired TimeStatus = "expired"
)

type Reason string

const (
	ReasonInvalidFormat      Reason = "invalid_format"
	ReasonNotFound           Reason = "not_found"
	ReasonCancelled          Reason = "cancelled"
	ReasonCompleted          Reason = "completed"
	ReasonDepartmentMismatch Reason = "department_mismatch"
	ReasonTooEarly           Reason = "too_early"
	ReasonTooLate            Reason = "too_late"
	ReasonNotConfirmed       Reason = "not_confirmed"
	ReasonOK                 Reason = "ok"
)

// Scanner is the authenticated principal scanning the code.
type Scanner struct {
	ID           string
	DepartmentID string
}

type Summary struct {
	BookingReference string `json:"bookingReference"`
	CitizenName      string `json:"citizenName"`
	ServiceType      string `json:"serviceType"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Status           string `json:"status"`
	Department       string `json:"department"`
}

func summarize(a *appointment.Appointment) *Summary {
	return &Summary{
		BookingReference: a.BookingReference,
		CitizenName:      a.CitizenName,
		ServiceType:      string(a.ServiceType),
		Date:             appointment.FormatDate(a.Date),
		Time:             a.Time,
		Status:           string(a.Status),
		Department:       a.Department,
	}
}

// Result is the verdict for one scan. Every outcome other than a storage failure is a Result.
type Result struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message"`
	Appointment     *Summary   `json:"appointment,omitempty"`
	TimeStatus      TimeStatus `json:"timeStatus,omitempty"`
	DepartmentMatch *bool      `json:"departmentMatch,omitempty"`
	Reason          Reason     `json:"reason"`

	appointmentID uuid.UUID
}

// Lookup resolves a booking reference.
type Lookup interface {
	GetByReference(ctx context.Context, ref string) (*appointment.Appointment, error)
}

type ValidatorConfig struct {
	Location *time.Location
	Secret   string
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Validator classifies QR scans. It never writes.
type Validator struct {
	lookup  Lookup
	loc     *time.Location
	secret  string
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewValidator(lookup Lookup, cfg ValidatorConfig) *Validator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Validator{
		lookup:  lookup,
		loc:     cfg.Location,
		secret:  cfg.Secret,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

func boolPtr(b bool) *bool { return &b }

func (v *Validator) Validate(ctx context.Context, raw string, scanner Scanner, now time.Time) (Result, error) {
	res, err := v.validate(ctx, raw, scanner, now)
	if err != nil {
		return Result{}, err
	}
	v.metrics.ObserveCheckIn(string(res.Reason), string(res.TimeStatus))
	return res, nil
}

func (v *Validator) validate(ctx context.Context, raw string, scanner Scanner, now time.Time) (Result, error) {
	payload, err := DecodePayload(raw)
	if err != nil {
		return Result{
			Message:         "Invalid QR code format",
			TimeStatus:      TimeExpired,
			DepartmentMatch: boolPtr(false),
			Reason:          ReasonInvalidFormat,
		}, nil
	}

	if v.secret != "" && payload.Verify != "" && !payload.Verified(v.secret) {
		v.logger.Warn().Str("booking_reference", payload.Ref).Msg("qr verify field does not match")
	}

	appt, err := v.lookup.GetByReference(ctx, payload.Ref)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return Result{
				Message:         "Appointment not found",
				TimeStatus:      TimeExpired,
				DepartmentMatch: boolPtr(false),
				Reason:          ReasonNotFound,
			}, nil
		}
		return Result{}, fmt.Errorf("lookup appointment: %w", err)
	}

	summary := summarize(appt)
	base := Result{Appointment: summary, appointmentID: appt.ID}

	switch appt.Status {
	case appointment.StatusCancelled:
		base.Message = "This appointment has been cancelled"
		base.TimeStatus = TimeExpired
		base.DepartmentMatch = boolPtr(false)
		base.Reason = ReasonCancelled
		return base, nil
	case appointment.StatusCompleted:
		base.Message = "This appointment has already been completed"
		base.TimeStatus = TimeExpired
		base.DepartmentMatch = boolPtr(true)
		base.Reason = ReasonCompleted
		return base, nil
	}

	match := v.departmentMatches(appt, scanner)
	base.DepartmentMatch = boolPtr(match)
	if !match {
		base.Message = "This appointment belongs to a different department"
		base.TimeStatus = TimeValid
		base.Reason = ReasonDepartmentMismatch
		return base, nil
	}

	base.TimeStatus = ClassifyWindow(appt.ScheduledAt(v.loc), now)
	switch base.TimeStatus {
	case TimeEarly:
		base.Message = "Too early. Check in within 1 hour of the appointment"
		base.Reason = ReasonTooEarly
	case TimeLate:
		base.Message = "Check-in window has closed"
		base.Reason = ReasonTooLate
	default:
		base.Success = true
		base.Message = "Check-in valid"
		base.Reason = ReasonOK
	}
	return base, nil
}

// departmentMatches also accepts appointments with no department, so any department
// can check them in.
func (v *Validator) departmentMatches(a *appointment.Appointment, scanner Scanner) bool {
	switch {
	case a.Department == "":
		v.logger.Warn().
			Str("booking_reference", a.BookingReference).
			Str("scanner_id", scanner.ID).
			Msg("checking in appointment without a department")
		return true
	case scanner.DepartmentID != "" && a.Department == scanner.DepartmentID:
		return true
	case scanner.ID != "" && a.Department == scanner.ID:
		return true
	}
	return false
}

// ClassifyWindow places now against [scheduled-60m, scheduled+15m], both ends inclusive.
func ClassifyWindow(scheduled, now time.Time) TimeStatus {
	switch {
	case now.Before(scheduled.Add(-EarlyWindow)):
		return TimeEarly
	case now.After(scheduled.Add(LateWindow)):
		return TimeLate
	}
	return TimeValid
}
