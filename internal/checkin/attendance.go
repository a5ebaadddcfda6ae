package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

type Completer interface {
	Complete(ctx context.Context, id uuid.UUID, by string) (*appointment.Appointment, error)
}

// ConfirmAttendance revalidates the scan and, when it is valid, marks the appointment
// completed. Only confirmed appointments can be completed.
func (v *Validator) ConfirmAttendance(ctx context.Context, c Completer, raw string, scanner Scanner, now time.Time) (Result, error) {
	res, err := v.Validate(ctx, raw, scanner, now)
	if err != nil || !res.Success {
		return res, err
	}

	appt, err := c.Complete(ctx, res.appointmentID, scanner.ID)
	if err != nil {
		if errors.Is(err, appointment.ErrInvalidStatusTransition) {
			res.Success = false
			res.Message = "Appointment must be confirmed before attendance can be recorded"
			res.Reason = ReasonNotConfirmed
			return res, nil
		}
		return Result{}, fmt.Errorf("complete appointment: %w", err)
	}

	v.logger.Info().
		Str("booking_reference", appt.BookingReference).
		Str("scanner_id", scanner.ID).
		Msg("attendance confirmed")

	res.Appointment = summarize(appt)
	res.Message = "Attendance confirmed"
	return res, nil
}
