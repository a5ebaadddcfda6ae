package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

type fakeCompleter struct {
	byID  map[uuid.UUID]*appointment.Appointment
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, id uuid.UUID, by string) (*appointment.Appointment, error) {
	f.calls++
	a, ok := f.byID[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err := appointment.Transition(a, appointment.StatusCompleted, appointment.TransitionOptions{By: by}); err != nil {
		return nil, err
	}
	return a, nil
}

func TestConfirmAttendance(t *testing.T) {
	appt := confirmedAppointment()
	v, _ := newTestValidator(appt)
	c := &fakeCompleter{byID: map[uuid.UUID]*appointment.Appointment{appt.ID: appt}}
	raw := encode(t, appt)

	res, err := v.ConfirmAttendance(context.Background(), c, raw, immigration, scheduledAt(appt))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "completed", res.Appointment.Status)
	assert.Equal(t, "staff-12", appt.LastModifiedBy)

	// a second scan sees the completed record
	res, err = v.ConfirmAttendance(context.Background(), c, raw, immigration, scheduledAt(appt))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonCompleted, res.Reason)
	assert.Equal(t, 1, c.calls)
}

func TestConfirmAttendanceRequiresConfirmed(t *testing.T) {
	appt := confirmedAppointment()
	appt.Status = appointment.StatusPending
	v, _ := newTestValidator(appt)
	c := &fakeCompleter{byID: map[uuid.UUID]*appointment.Appointment{appt.ID: appt}}

	res, err := v.ConfirmAttendance(context.Background(), c, encode(t, appt), immigration, scheduledAt(appt))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotConfirmed, res.Reason)
	assert.Equal(t, appointment.StatusPending, appt.Status)
}

func TestConfirmAttendanceOutsideWindowDoesNotWrite(t *testing.T) {
	appt := confirmedAppointment()
	v, _ := newTestValidator(appt)
	c := &fakeCompleter{byID: map[uuid.UUID]*appointment.Appointment{appt.ID: appt}}

	res, err := v.ConfirmAttendance(context.Background(), c, encode(t, appt), immigration, scheduledAt(appt).Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, TimeLate, res.TimeStatus)
	assert.Zero(t, c.calls)
}

type brokenCompleter struct{}

func (brokenCompleter) Complete(context.Context, uuid.UUID, string) (*appointment.Appointment, error) {
	return nil, errors.New("db down")
}

func TestConfirmAttendanceStorageFailure(t *testing.T) {
	appt := confirmedAppointment()
	v, _ := newTestValidator(appt)

	_, err := v.ConfirmAttendance(context.Background(), brokenCompleter{}, encode(t, appt), immigration, scheduledAt(appt))
	assert.Error(t, err)
}
