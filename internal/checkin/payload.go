package checkin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

var ErrInvalidPayload = errors.New("invalid QR payload")

// Payload is the JSON carried inside a check-in QR code.
type Payload struct {
	Ref       string `json:"ref"`
	Name      string `json:"name"`
	Service   string `json:"service"`
	Dept      string `json:"dept"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Agent     string `json:"agent"`
	Office    string `json:"office"`
	Verify    string `json:"verify"`
	Generated string `json:"generated"`
}

// NewPayload snapshots a for printing on a QR code.
func NewPayload(a *appointment.Appointment, now time.Time, secret string) Payload {
	date := appointment.FormatDate(a.Date)
	return Payload{
		Ref:       a.BookingReference,
		Name:      a.CitizenName,
		Service:   string(a.ServiceType),
		Dept:      a.Department,
		Date:      date,
		Time:      a.Time,
		Agent:     a.AgentID,
		Office:    a.OfficeName,
		Verify:    Sign(secret, a.BookingReference, date, a.Time),
		Generated: now.UTC().Format(time.RFC3339),
	}
}

func EncodePayload(a *appointment.Appointment, now time.Time, secret string) (string, error) {
	b, err := json.Marshal(NewPayload(a, now, secret))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload parses raw. A payload without a ref is rejected.
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return Payload{}, ErrInvalidPayload
	}
	p.Ref = strings.TrimSpace(p.Ref)
	if p.Ref == "" {
		return Payload{}, ErrInvalidPayload
	}
	return p, nil
}

// Sign returns the first 16 hex chars of HMAC-SHA256(ref|date|time).
func Sign(secret, ref, date, clock string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ref + "|" + date + "|" + clock))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// Verified reports whether Verify matches the other fields under secret.
func (p Payload) Verified(secret string) bool {
	return hmac.Equal([]byte(p.Verify), []byte(Sign(secret, p.Ref, p.Date, p.Time)))
}
