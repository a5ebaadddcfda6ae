package appointment

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrValidation = errors.New("validation failed")

// ValidationError names the offending field. Records that fail validation must not be persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var (
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	// Sri Lankan mobile numbers: 07XXXXXXXX, 7XXXXXXXX or +947XXXXXXXX.
	mobilePattern = regexp.MustCompile(`^(?:\+94|0)?7\d{8}$`)
	nicOldPattern = regexp.MustCompile(`^\d{9}[VvXx]$`)
	nicNewPattern = regexp.MustCompile(`^\d{12}$`)
)

func parseClock(v string) (int, int, error) {
	m := clockPattern.FindStringSubmatch(v)
	if m == nil {
		return 0, 0, &ValidationError{Field: "time", Message: "must be HH:MM (24h)"}
	}
	h := int(m[1][0]-'0')*10 + int(m[1][1]-'0')
	min := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	return h, min, nil
}

func ValidateTime(v string) error {
	_, _, err := parseClock(v)
	return err
}

// ValidateFutureDate requires the start of date in loc to be strictly after now.
func ValidateFutureDate(date, now time.Time, loc *time.Location) error {
	if date.IsZero() {
		return &ValidationError{Field: "date", Message: "is required"}
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if !start.After(now) {
		return &ValidationError{Field: "date", Message: "must be in the future"}
	}
	return nil
}

func normalizePhone(v string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(v))
}

func ValidatePhone(v string) error {
	if !mobilePattern.MatchString(normalizePhone(v)) {
		return &ValidationError{Field: "phone", Message: "must be a valid mobile number"}
	}
	return nil
}

func ValidateNIC(v string) error {
	v = strings.TrimSpace(v)
	if !nicOldPattern.MatchString(v) && !nicNewPattern.MatchString(v) {
		return &ValidationError{Field: "nic", Message: "must be 9 digits followed by V/X or 12 digits"}
	}
	return nil
}

func ValidateEmail(v string) error {
	if v == "" {
		return nil
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

// CreateInput is a booking intent, from a citizen form or a completed conversation.
type CreateInput struct {
	CitizenID         string
	CitizenName       string
	NIC               string
	Email             string
	Phone             string
	ServiceType       string
	Department        string
	Date              string
	Time              string
	Priority          string
	AgentID           string
	OfficeName        string
	CitizenNotes      string
	RequiredDocuments []string
}

// NewAppointment validates in and builds a pending record carrying ref.
func NewAppointment(in CreateInput, ref string, now time.Time, loc *time.Location) (*Appointment, error) {
	if strings.TrimSpace(in.CitizenID) == "" {
		return nil, &ValidationError{Field: "citizenId", Message: "is required"}
	}
	if strings.TrimSpace(in.CitizenName) == "" {
		return nil, &ValidationError{Field: "citizenName", Message: "is required"}
	}
	if err := ValidateNIC(in.NIC); err != nil {
		return nil, err
	}
	if err := ValidatePhone(in.Phone); err != nil {
		return nil, err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	st, err := ParseServiceType(in.ServiceType)
	if err != nil {
		return nil, err
	}
	prio, err := ParsePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if err := ValidateTime(in.Time); err != nil {
		return nil, err
	}
	if err := ValidateFutureDate(date, now, loc); err != nil {
		return nil, err
	}
	if !ReferencePattern.MatchString(ref) {
		return nil, &ValidationError{Field: "bookingReference", Message: "must match APT followed by 10 digits"}
	}

	return &Appointment{
		ID:                uuid.New(),
		BookingReference:  ref,
		CitizenID:         strings.TrimSpace(in.CitizenID),
		CitizenName:       strings.TrimSpace(in.CitizenName),
		NIC:               strings.ToUpper(strings.TrimSpace(in.NIC)),
		Email:             in.Email,
		Phone:             normalizePhone(in.Phone),
		ServiceType:       st,
		Department:        strings.TrimSpace(in.Department),
		Date:              date,
		Time:              in.Time,
		Priority:          prio,
		AgentID:           strings.TrimSpace(in.AgentID),
		OfficeName:        strings.TrimSpace(in.OfficeName),
		Status:            StatusPending,
		CitizenNotes:      in.CitizenNotes,
		RequiredDocuments: append([]string(nil), in.RequiredDocuments...),
		SubmittedDate:     now,
		UpdatedAt:         now,
	}, nil
}
