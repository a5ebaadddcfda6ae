package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

type CreateAppointmentRequest struct {
	CitizenID         string   `json:"citizenId"`
	CitizenName       string   `json:"citizenName"`
	NIC               string   `json:"nic"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	ServiceType       string   `json:"serviceType"`
	Department        string   `json:"department"`
	Date              string   `json:"date"`
	Time              string   `json:"time"`
	Priority          string   `json:"priority"`
	AgentID           string   `json:"agentId"`
	OfficeName        string   `json:"officeName"`
	CitizenNotes      string   `json:"citizenNotes"`
	RequiredDocuments []string `json:"requiredDocuments"`
}

func (r CreateAppointmentRequest) input() appointment.CreateInput {
	return appointment.CreateInput{
		CitizenID:         r.CitizenID,
		CitizenName:       r.CitizenName,
		NIC:               r.NIC,
		Email:             r.Email,
		Phone:             r.Phone,
		ServiceType:       r.ServiceType,
		Department:        r.Department,
		Date:              r.Date,
		Time:              r.Time,
		Priority:          r.Priority,
		AgentID:           r.AgentID,
		OfficeName:        r.OfficeName,
		CitizenNotes:      r.CitizenNotes,
		RequiredDocuments: r.RequiredDocuments,
	}
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type RescheduleRequest struct {
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	AgentID *string `json:"agentId"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type NotifyRequest struct {
	Channel string `json:"channel"`
}

type CheckInRequest struct {
	QRData string `json:"qrData"`
}

type MessageRequest struct {
	Message string `json:"message"`
}

// BookRequest supplies the identity fields a conversation does not collect.
type BookRequest struct {
	CitizenName string `json:"citizenName"`
	NIC         string `json:"nic"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	AgentID     string `json:"agentId"`
	OfficeName  string `json:"officeName"`
	Priority    string `json:"priority"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID               `json:"id"`
	BookingReference   string                  `json:"bookingReference"`
	CitizenID          string                  `json:"citizenId"`
	CitizenName        string                  `json:"citizenName"`
	NIC                string                  `json:"nic"`
	Email              string                  `json:"email,omitempty"`
	Phone              string                  `json:"phone"`
	ServiceType        string                  `json:"serviceType"`
	Department         string                  `json:"department,omitempty"`
	Date               string                  `json:"date"`
	Time               string                  `json:"time"`
	Priority           string                  `json:"priority"`
	AgentID            string                  `json:"agentId,omitempty"`
	OfficeName         string                  `json:"officeName,omitempty"`
	Status             string                  `json:"status"`
	CitizenNotes       string                  `json:"citizenNotes,omitempty"`
	AgentNotes         string                  `json:"agentNotes,omitempty"`
	RequiredDocuments  []string                `json:"requiredDocuments,omitempty"`
	Documents          []appointment.Document  `json:"documents,omitempty"`
	QRCode             *appointment.QRArtifact `json:"qrCode,omitempty"`
	SubmittedDate      time.Time               `json:"submittedDate"`
	ConfirmedDate      *time.Time              `json:"confirmedDate,omitempty"`
	CompletedDate      *time.Time              `json:"completedDate,omitempty"`
	CancelledDate      *time.Time              `json:"cancelledDate,omitempty"`
	CancellationReason string                  `json:"cancellationReason,omitempty"`
	LastModifiedBy     string                  `json:"lastModifiedBy,omitempty"`
	EmailSent          bool                    `json:"emailSent"`
	SMSSent            bool                    `json:"smsSent"`
	AllowedTransitions []appointment.Status    `json:"allowedTransitions"`
	UpdatedAt          time.Time               `json:"updatedAt"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	allowed := appointment.AllowedTransitions(a.Status)
	if allowed == nil {
		allowed = []appointment.Status{}
	}
	return AppointmentResponse{
		ID:                 a.ID,
		BookingReference:   a.BookingReference,
		CitizenID:          a.CitizenID,
		CitizenName:        a.CitizenName,
		NIC:                a.NIC,
		Email:              a.Email,
		Phone:              a.Phone,
		ServiceType:        string(a.ServiceType),
		Department:         a.Department,
		Date:               appointment.FormatDate(a.Date),
		Time:               a.Time,
		Priority:           string(a.Priority),
		AgentID:            a.AgentID,
		OfficeName:         a.OfficeName,
		Status:             string(a.Status),
		CitizenNotes:       a.CitizenNotes,
		AgentNotes:         a.AgentNotes,
		RequiredDocuments:  a.RequiredDocuments,
		Documents:          a.Documents(),
		QRCode:             a.QRCode,
		SubmittedDate:      a.SubmittedDate,
		ConfirmedDate:      a.ConfirmedDate,
		CompletedDate:      a.CompletedDate,
		CancelledDate:      a.CancelledDate,
		CancellationReason: a.CancellationReason,
		LastModifiedBy:     a.LastModifiedBy,
		EmailSent:          a.EmailSent,
		SMSSent:            a.SMSSent,
		AllowedTransitions: allowed,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

type ListResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Limit  int                   `json:"limit,omitempty"`
	Offset int                   `json:"offset,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

type ConflictResponse struct {
	Error     string                `json:"error"`
	Details   string                `json:"details"`
	Conflicts []AppointmentResponse `json:"conflicts"`
}
