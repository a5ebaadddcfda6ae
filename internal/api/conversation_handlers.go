package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/conversation"
)

func postMessageHandler(svc *conversation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MessageRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := svc.HandleMessage(r.Context(), chi.URLParam(r, "sessionId"), principal(r).Subject, req.Message)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// loadSession returns the session if it belongs to the caller. Sessions started
// anonymously are readable by anyone holding the id.
func loadSession(w http.ResponseWriter, r *http.Request, svc *conversation.Service) (*conversation.Session, bool) {
	sess, err := svc.Get(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeAppointmentError(w, err)
		return nil, false
	}
	p := principal(r)
	if sess.UserID != "" && sess.UserID != p.Subject && !p.IsStaff() {
		writeError(w, http.StatusNotFound, "session_not_found", conversation.ErrSessionNotFound.Error())
		return nil, false
	}
	return sess, true
}

func getSessionHandler(svc *conversation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func resetSessionHandler(svc *conversation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, svc)
		if !ok {
			return
		}
		if err := svc.Reset(r.Context(), sess.SessionID); err != nil {
			writeAppointmentError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// bookSessionHandler turns a completed conversation into a pending appointment.
func bookSessionHandler(conv *conversation.Service, appts *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if !decode(w, r, &req) {
			return
		}
		sess, ok := loadSession(w, r, conv)
		if !ok {
			return
		}
		in, err := conversation.Draft(sess, conversation.Citizen{
			ID:         principal(r).Subject,
			Name:       req.CitizenName,
			NIC:        req.NIC,
			Email:      req.Email,
			Phone:      req.Phone,
			AgentID:    req.AgentID,
			OfficeName: req.OfficeName,
			Priority:   req.Priority,
		})
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		appt, err := appts.Create(r.Context(), in)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}
