package checkin

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/appointment"
)

func TestEncodePayloadKeys(t *testing.T) {
	appt := confirmedAppointment()
	now := time.Date(2026, 10, 14, 5, 0, 0, 0, time.UTC)

	raw, err := EncodePayload(appt, now, testSecret)
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, map[string]string{
		"ref":       "APT2610141234",
		"name":      "Nimal Perera",
		"service":   "passport",
		"dept":      "immigration",
		"date":      "2026-10-20",
		"time":      "09:30",
		"agent":     "agent-7",
		"office":    "Battaramulla",
		"verify":    Sign(testSecret, "APT2610141234", "2026-10-20", "09:30"),
		"generated": "2026-10-14T05:00:00Z",
	}, m)

	p, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.True(t, p.Verified(testSecret))
	assert.False(t, p.Verified("other"))
	assert.Len(t, p.Verify, 16)
}

func TestDecodePayloadRejectsMissingRef(t *testing.T) {
	_, err := DecodePayload(`{"name":"Nimal"}`)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = DecodePayload(`{"ref":`)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

type fakeQRStore struct {
	appt *appointment.Appointment
}

func (f *fakeQRStore) Get(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, appointment.ErrAppointmentNotFound
	}
	return f.appt, nil
}

func (f *fakeQRStore) AttachQR(_ context.Context, _ uuid.UUID, qr appointment.QRArtifact) (*appointment.Appointment, error) {
	f.appt.QRCode = &qr
	return f.appt, nil
}

func TestIssuerAttachesArtifact(t *testing.T) {
	appt := confirmedAppointment()
	store := &fakeQRStore{appt: appt}
	now := time.Date(2026, 10, 14, 5, 0, 0, 0, time.UTC)
	issuer := NewIssuer(store, testSecret, "https://qr.example/render?data=", func() time.Time { return now })

	got, err := issuer.Issue(context.Background(), appt.ID)
	require.NoError(t, err)
	require.NotNil(t, got.QRCode)
	assert.Equal(t, now, got.QRCode.GeneratedAt)
	require.True(t, strings.HasPrefix(got.QRCode.ImageURL, "https://qr.example/render?data="))

	escaped := strings.TrimPrefix(got.QRCode.ImageURL, "https://qr.example/render?data=")
	data, err := url.QueryUnescape(escaped)
	require.NoError(t, err)
	assert.Equal(t, got.QRCode.Data, data)

	// the issued code validates at the scheduled time
	v, _ := newTestValidator(appt)
	res, err := v.Validate(context.Background(), got.QRCode.Data, immigration, scheduledAt(appt))
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = issuer.Issue(context.Background(), uuid.New())
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}
