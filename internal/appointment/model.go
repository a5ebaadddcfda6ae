package appointment

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: "must be one of pending, confirmed, completed, cancelled"}
	}
	return s, nil
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent
}

func ParsePriority(v string) (Priority, error) {
	switch Priority(v) {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityUrgent:
		return Priority(v), nil
	}
	return "", &ValidationError{Field: "priority", Message: "must be normal or urgent"}
}

type ServiceType string

const (
	ServicePassport     ServiceType = "passport"
	ServiceLicense      ServiceType = "license"
	ServiceCertificate  ServiceType = "certificate"
	ServiceRegistration ServiceType = "registration"
	ServiceVisa         ServiceType = "visa"
)

// ServiceTypes lists the supported service types in display order.
var ServiceTypes = []ServiceType{
	ServicePassport,
	ServiceLicense,
	ServiceCertificate,
	ServiceRegistration,
	ServiceVisa,
}

func (st ServiceType) Valid() bool {
	return slices.Contains(ServiceTypes, st)
}

func ParseServiceType(v string) (ServiceType, error) {
	for _, st := range ServiceTypes {
		if string(st) == v {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "serviceType", Message: "must be one of passport, license, certificate, registration, visa"}
}

// Document is metadata for a file already uploaded to object storage.
type Document struct {
	Name         string    `json:"name"`
	Label        string    `json:"label"`
	URL          string    `json:"url"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

type QRArtifact struct {
	Data        string    `json:"data"`
	ImageURL    string    `json:"imageUrl"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Appointment struct {
	ID               uuid.UUID
	BookingReference string

	CitizenID   string
	CitizenName string
	NIC         string
	Email       string
	Phone       string

	ServiceType ServiceType
	Department  string

	// Date is the calendar date, held as midnight UTC.
	Date     time.Time
	Time     string
	Priority Priority

	AgentID    string
	OfficeName string

	Status Status

	CitizenNotes      string
	AgentNotes        string
	RequiredDocuments []string
	documents         []Document

	QRCode *QRArtifact

	SubmittedDate      time.Time
	ConfirmedDate      *time.Time
	CompletedDate      *time.Time
	CancelledDate      *time.Time
	CancellationReason string
	LastModifiedBy     string

	EmailSent   bool
	EmailSentAt *time.Time
	SMSSent     bool
	SMSSentAt   *time.Time

	UpdatedAt time.Time
}

// IsModifiable reports whether the appointment can still be changed.
func (a *Appointment) IsModifiable() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// IsToday compares the appointment date with the calendar date of now in loc.
func (a *Appointment) IsToday(now time.Time, loc *time.Location) bool {
	y, m, d := now.In(loc).Date()
	ay, am, ad := a.Date.Date()
	return y == ay && m == am && d == ad
}

// ScheduledAt combines Date and Time in loc. A malformed Time yields the start of the day.
func (a *Appointment) ScheduledAt(loc *time.Location) time.Time {
	h, m, err := parseClock(a.Time)
	if err != nil {
		h, m = 0, 0
	}
	y, mo, d := a.Date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, loc)
}

// Documents returns a copy of the uploaded document list.
func (a *Appointment) Documents() []Document {
	out := make([]Document, len(a.documents))
	copy(out, a.documents)
	return out
}

// AddDocument appends doc. Documents are append-only until the appointment is terminal.
func (a *Appointment) AddDocument(doc Document, now time.Time) error {
	if a.Status.Terminal() {
		return ErrTerminalAppointment
	}
	if doc.Name == "" {
		return &ValidationError{Field: "documents.name", Message: "is required"}
	}
	if doc.URL == "" {
		return &ValidationError{Field: "documents.url", Message: "is required"}
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	a.documents = append(a.documents, doc)
	a.UpdatedAt = now
	return nil
}

// SetDocuments replaces the document list wholesale. Only repositories rehydrating
// stored rows should call it.
func (a *Appointment) SetDocuments(docs []Document) {
	a.documents = append([]Document(nil), docs...)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// CalendarDate truncates t to its calendar date in its own location, as midnight UTC.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
