package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

var ErrSessionNotComplete = errors.New("conversation has not collected all details yet")

var serviceKeywords = []struct {
	keyword string
	service appointment.ServiceType
}{
	{"passport", appointment.ServicePassport},
	{"visa", appointment.ServiceVisa},
	{"licence", appointment.ServiceLicense},
	{"license", appointment.ServiceLicense},
	{"driving", appointment.ServiceLicense},
	{"certificate", appointment.ServiceCertificate},
	{"birth", appointment.ServiceCertificate},
	{"marriage", appointment.ServiceCertificate},
	{"registration", appointment.ServiceRegistration},
	{"register", appointment.ServiceRegistration},
}

// MatchServiceType maps free text like "passport renewal" to a service type.
func MatchServiceType(text string) (appointment.ServiceType, bool) {
	t := strings.ToLower(text)
	for _, k := range serviceKeywords {
		if strings.Contains(t, k.keyword) {
			return k.service, true
		}
	}
	return "", false
}

var clockLayouts = []string{"15:04", "3:04pm", "3:04 pm", "3pm", "3 pm"}

func normalizeClock(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

// Citizen carries the identity fields a conversation never asks for.
type Citizen struct {
	ID         string
	Name       string
	NIC        string
	Email      string
	Phone      string
	AgentID    string
	OfficeName string
	Priority   string
}

// Draft turns a completed conversation into a booking intent. Date and time are
// checked for shape only; the appointment service applies the full rules.
func Draft(sess *Session, c Citizen) (appointment.CreateInput, error) {
	if !sess.IsComplete() {
		return appointment.CreateInput{}, ErrSessionNotComplete
	}
	d := sess.CollectedData

	st, ok := MatchServiceType(d.Service)
	if !ok {
		st, ok = MatchServiceType(d.Department)
	}
	if !ok {
		return appointment.CreateInput{}, &appointment.ValidationError{Field: "service", Message: "could not be matched to a supported service"}
	}

	date := strings.TrimSpace(d.PreferredDate)
	if _, err := appointment.ParseDate(date); err != nil {
		return appointment.CreateInput{}, &appointment.ValidationError{Field: "preferredDate", Message: "must be YYYY-MM-DD"}
	}
	clock, ok := normalizeClock(d.PreferredTime)
	if !ok {
		return appointment.CreateInput{}, &appointment.ValidationError{Field: "preferredTime", Message: "must be HH:MM"}
	}

	notes := d.AdditionalNotes
	if d.AgentType != "" {
		notes = strings.TrimSpace("Officer type: " + d.AgentType + "\n" + notes)
	}

	return appointment.CreateInput{
		CitizenID:    c.ID,
		CitizenName:  c.Name,
		NIC:          c.NIC,
		Email:        c.Email,
		Phone:        c.Phone,
		ServiceType:  string(st),
		Department:   strings.ToLower(strings.TrimSpace(d.Department)),
		Date:         date,
		Time:         clock,
		Priority:     c.Priority,
		AgentID:      c.AgentID,
		OfficeName:   c.OfficeName,
		CitizenNotes: notes,
	}, nil
}
