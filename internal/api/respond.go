package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/conversation"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeAppointmentError maps service errors to HTTP responses. Anything unrecognised
// is a 500.
func writeAppointmentError(w http.ResponseWriter, err error) {
	var (
		ve *appointment.ValidationError
		ce *appointment.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_failed", Field: ve.Field, Details: ve.Message})
	case errors.As(err, &ce):
		resp := ConflictResponse{Error: "slot_conflict", Details: appointment.ErrSlotConflict.Error()}
		for i := range ce.Conflicts {
			resp.Conflicts = append(resp.Conflicts, toAppointmentResponse(&ce.Conflicts[i]))
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrTerminalAppointment):
		writeError(w, http.StatusConflict, "appointment_closed", err.Error())
	case errors.Is(err, appointment.ErrStaleAppointment):
		writeError(w, http.StatusConflict, "appointment_modified", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrUnknownNotifyChannel):
		writeError(w, http.StatusBadRequest, "invalid_channel", err.Error())
	case errors.Is(err, conversation.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, conversation.ErrSessionNotComplete):
		writeError(w, http.StatusConflict, "session_incomplete", err.Error())
	case errors.Is(err, conversation.ErrEmptySessionID):
		writeError(w, http.StatusBadRequest, "invalid_session_id", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
