package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/checkin"
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func principal(r *http.Request) Principal {
	p, _ := PrincipalFromContext(r.Context())
	return p
}

// loadOwned resolves {id} and checks that the caller may act on it.
func loadOwned(w http.ResponseWriter, r *http.Request, svc *appointment.Service) (*appointment.Appointment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return nil, false
	}
	appt, err := svc.Get(r.Context(), id)
	if err != nil {
		writeAppointmentError(w, err)
		return nil, false
	}
	if !principal(r).CanAccessCitizen(appt.CitizenID) {
		// do not reveal other citizens' bookings
		writeError(w, http.StatusNotFound, "appointment_not_found", appointment.ErrAppointmentNotFound.Error())
		return nil, false
	}
	return appt, true
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decode(w, r, &req) {
			return
		}
		p := principal(r)
		if p.Role == RoleCitizen {
			req.CitizenID = p.Subject
		}

		appt, err := svc.Create(r.Context(), req.input())
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentByReferenceHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetByReference(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		if !principal(r).CanAccessCitizen(appt.CitizenID) {
			writeError(w, http.StatusNotFound, "appointment_not_found", appointment.ErrAppointmentNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler lists the caller's appointments. Staff may pass citizenId.
func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		citizenID := p.Subject
		if p.IsStaff() {
			if q := r.URL.Query().Get("citizenId"); q != "" {
				citizenID = q
			}
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		list, err := svc.ListByCitizen(r.Context(), citizenID, limit, offset)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse{Items: toAppointmentList(list), Limit: limit, Offset: offset})
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		updated, err := svc.Confirm(r.Context(), appt.ID, principal(r).Subject)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		updated, err := svc.Complete(r.Context(), appt.ID, principal(r).Subject)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelRequest
		if !decode(w, r, &req) {
			return
		}
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		updated, err := svc.Cancel(r.Context(), appt.ID, req.Reason, principal(r).Subject)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RescheduleRequest
		if !decode(w, r, &req) {
			return
		}
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		p := principal(r)
		if !p.IsStaff() {
			// citizens cannot pick the officer
			req.AgentID = nil
		}
		updated, err := svc.Reschedule(r.Context(), appt.ID, appointment.RescheduleInput{
			Date:    req.Date,
			Time:    req.Time,
			AgentID: req.AgentID,
			By:      p.Subject,
		})
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func addDocumentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc appointment.Document
		if !decode(w, r, &doc) {
			return
		}
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		doc.UploadedAt = time.Time{}
		updated, err := svc.AddDocument(r.Context(), appt.ID, doc, principal(r).Subject)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func updateNotesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotesRequest
		if !decode(w, r, &req) {
			return
		}
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		updated, err := svc.UpdateAgentNotes(r.Context(), appt.ID, req.Notes, principal(r).Subject)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func markNotificationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotifyRequest
		if !decode(w, r, &req) {
			return
		}
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		updated, err := svc.MarkNotification(r.Context(), appt.ID, req.Channel)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func issueQRHandler(svc *appointment.Service, issuer *checkin.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := loadOwned(w, r, svc)
		if !ok {
			return
		}
		updated, err := issuer.Issue(r.Context(), appt.ID)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

// departmentBoardHandler lists a department's appointments for ?date=, default today.
// Staff only see their own department; admins see any.
func departmentBoardHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept := chi.URLParam(r, "dept")
		p := principal(r)
		if p.Role != RoleAdmin && p.DepartmentID != dept {
			writeError(w, http.StatusForbidden, "forbidden", "not a member of this department")
			return
		}

		var date time.Time
		if q := r.URL.Query().Get("date"); q != "" {
			d, err := appointment.ParseDate(q)
			if err != nil {
				writeAppointmentError(w, err)
				return
			}
			date = d
		}

		list, err := svc.ListForDepartmentOn(r.Context(), dept, date)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse{Items: toAppointmentList(list)})
	}
}
