package api

import (
	"net/http"
	"time"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/checkin"
)

func scanner(r *http.Request) checkin.Scanner {
	p := principal(r)
	return checkin.Scanner{ID: p.Subject, DepartmentID: p.DepartmentID}
}

func validateCheckInHandler(v *checkin.Validator, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := v.Validate(r.Context(), req.QRData, scanner(r), now())
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func confirmAttendanceHandler(v *checkin.Validator, svc *appointment.Service, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := v.ConfirmAttendance(r.Context(), svc, req.QRData, scanner(r), now())
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
