package checkin

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

// QRStore loads appointments and stores the rendered QR artifact.
type QRStore interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	AttachQR(ctx context.Context, id uuid.UUID, qr appointment.QRArtifact) (*appointment.Appointment, error)
}

type Issuer struct {
	store     QRStore
	secret    string
	imageBase string
	now       func() time.Time
}

func NewIssuer(store QRStore, secret, imageBaseURL string, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{store: store, secret: secret, imageBase: imageBaseURL, now: now}
}

// Issue renders the check-in payload for id and attaches it to the appointment.
func (i *Issuer) Issue(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := i.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := i.now()
	data, err := EncodePayload(appt, now, i.secret)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}
	return i.store.AttachQR(ctx, id, appointment.QRArtifact{
		Data:        data,
		ImageURL:    i.imageBase + url.QueryEscape(data),
		GeneratedAt: now,
	})
}
