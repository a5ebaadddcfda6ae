package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/checkin"
	"github.com/hackgods/gov-appointments/internal/conversation"
	"github.com/hackgods/gov-appointments/internal/observability/metrics"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
	"github.com/hackgods/gov-appointments/pkg/logging"
)

const testSecret = "jwt-secret"

var colombo, _ = time.LoadLocation("Asia/Colombo")

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	repo   *appointment.MemoryRepository
	redis  *miniredis.Miniredis
	now    time.Time
	tokens map[string]string
}

func newTestEnv(t *testing.T, checkInLimit int) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		t:     t,
		repo:  appointment.NewMemoryRepository(),
		redis: mr,
		now:   time.Date(2026, 10, 14, 10, 0, 0, 0, colombo),
	}
	clock := func() time.Time { return env.now }

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := logging.Nop()

	appts := appointment.NewService(env.repo, redisclient.NewRedisSlotLocker(client, 5*time.Second), appointment.ServiceConfig{
		Location: colombo,
		Now:      clock,
		Logger:   logger,
		Metrics:  m,
	})

	router := NewRouter(RouterConfig{
		Appointments:   appts,
		Validator:      checkin.NewValidator(appts, checkin.ValidatorConfig{Location: colombo, Secret: "qr", Logger: logger, Metrics: m}),
		Issuer:         checkin.NewIssuer(appts, "qr", "https://qr.example/?data=", clock),
		Conversations:  conversation.NewService(conversation.NewRedisStore(client, nil), logger, m, clock),
		Health:         NewHealthHandler(func(context.Context) error { return nil }, func(ctx context.Context) error { return client.Ping(ctx).Err() }, "test", "v0"),
		JWTSecret:      testSecret,
		CheckInLimiter: redisclient.NewRedisRateLimiter(client, "checkin", checkInLimit, time.Minute),
		MessageLimiter: redisclient.NewRedisRateLimiter(client, "messages", 100, time.Minute),
		RequestTimeout: 5 * time.Second,
		Gatherer:       reg,
		Logger:         logger,
		Now:            clock,
	})

	env.srv = httptest.NewServer(router)
	t.Cleanup(env.srv.Close)

	env.tokens = map[string]string{
		"citizen":     env.sign(Principal{Subject: "citizen-1", Role: RoleCitizen}),
		"other":       env.sign(Principal{Subject: "citizen-2", Role: RoleCitizen}),
		"staff":       env.sign(Principal{Subject: "staff-12", Role: RoleStaff, DepartmentID: "immigration"}),
		"other-staff": env.sign(Principal{Subject: "staff-40", Role: RoleStaff, DepartmentID: "motor-traffic"}),
		"admin":       env.sign(Principal{Subject: "admin-1", Role: RoleAdmin}),
	}
	return env
}

func (e *testEnv) sign(p Principal) string {
	tok, err := SignToken(testSecret, p, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, who string, body any) (*http.Response, []byte) {
	e.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(e.t, err)
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[who])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(e.t, err)
	return resp, buf.Bytes()
}

func bookingBody() map[string]any {
	return map[string]any{
		"citizenName": "Nimal Perera",
		"nic":         "901234567V",
		"phone":       "0771234567",
		"serviceType": "passport",
		"department":  "immigration",
		"date":        "2026-10-20",
		"time":        "09:30",
		"agentId":     "agent-7",
	}
}

func (e *testEnv) book(who string, body map[string]any) AppointmentResponse {
	e.t.Helper()
	resp, raw := e.do(http.MethodPost, "/appointments", who, body)
	require.Equal(e.t, http.StatusCreated, resp.StatusCode, string(raw))
	var out AppointmentResponse
	require.NoError(e.t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, _ := env.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, raw := env.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(raw, &ready))
	assert.Equal(t, "ok", ready.Status)

	env.redis.Close()
	resp, raw = env.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &ready))
	assert.Equal(t, "degraded", ready.Status)

	resp, _ = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, 10)

	resp, _ := env.do(http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.tokens["forged"] = func() string {
		tok, _ := SignToken("wrong", Principal{Subject: "x", Role: RoleAdmin}, jwt.RegisteredClaims{})
		return tok
	}()
	resp, _ = env.do(http.MethodGet, "/appointments", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndReadAppointment(t *testing.T) {
	env := newTestEnv(t, 10)

	body := bookingBody()
	body["citizenId"] = "someone-else"
	created := env.book("citizen", body)

	assert.Equal(t, "citizen-1", created.CitizenID, "citizens always book for themselves")
	assert.Equal(t, "pending", created.Status)
	assert.Regexp(t, appointment.ReferencePattern, created.BookingReference)
	assert.ElementsMatch(t, []appointment.Status{appointment.StatusConfirmed, appointment.StatusCancelled}, created.AllowedTransitions)

	resp, _ := env.do(http.MethodGet, "/appointments/"+created.ID.String(), "citizen", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/appointments/"+created.ID.String(), "other", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw := env.do(http.MethodGet, "/appointments/ref/"+created.BookingReference, "staff", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = env.do(http.MethodGet, "/appointments", "citizen", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Items, 1)

	resp, _ = env.do(http.MethodGet, "/appointments/not-a-uuid", "citizen", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAppointmentErrors(t *testing.T) {
	env := newTestEnv(t, 10)
	first := env.book("citizen", bookingBody())

	resp, raw := env.do(http.MethodPost, "/appointments", "other", bookingBody())
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var conflict ConflictResponse
	require.NoError(t, json.Unmarshal(raw, &conflict))
	assert.Equal(t, "slot_conflict", conflict.Error)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, first.ID, conflict.Conflicts[0].ID)

	bad := bookingBody()
	bad["time"] = "9am"
	resp, raw = env.do(http.MethodPost, "/appointments", "citizen", bad)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var verr ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &verr))
	assert.Equal(t, "time", verr.Field)

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/appointments", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+env.tokens["citizen"])
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r2.StatusCode)
}

func TestLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t, 10)
	created := env.book("citizen", bookingBody())
	base := "/appointments/" + created.ID.String()

	resp, _ := env.do(http.MethodPost, base+"/confirm", "citizen", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, base+"/complete", "staff", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, raw := env.do(http.MethodPost, base+"/confirm", "staff", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = env.do(http.MethodPost, base+"/documents", "citizen", appointment.Document{Name: "nic", URL: "https://files/nic.pdf"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, base+"/notes", "staff", NotesRequest{Notes: "bring originals"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, base+"/notifications", "staff", NotifyRequest{Channel: "sms"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = env.do(http.MethodPost, base+"/reschedule", "citizen", RescheduleRequest{Date: "2026-10-21", Time: "11:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var moved AppointmentResponse
	require.NoError(t, json.Unmarshal(raw, &moved))
	assert.Equal(t, "2026-10-21", moved.Date)
	assert.Equal(t, created.BookingReference, moved.BookingReference)
	assert.Len(t, moved.Documents, 1)
	assert.True(t, moved.SMSSent)

	resp, raw = env.do(http.MethodPost, base+"/cancel", "citizen", CancelRequest{})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(raw))

	resp, raw = env.do(http.MethodPost, base+"/cancel", "citizen", CancelRequest{Reason: "travelling"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = env.do(http.MethodPost, base+"/confirm", "staff", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDepartmentBoard(t *testing.T) {
	env := newTestEnv(t, 10)
	env.book("citizen", bookingBody())

	resp, raw := env.do(http.MethodGet, "/departments/immigration/appointments?date=2026-10-20", "staff", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var list ListResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Items, 1)

	resp, _ = env.do(http.MethodGet, "/departments/immigration/appointments", "other-staff", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/departments/immigration/appointments?date=20-10-2026", "admin", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCheckInFlow(t *testing.T) {
	env := newTestEnv(t, 10)
	created := env.book("citizen", bookingBody())
	base := "/appointments/" + created.ID.String()

	resp, raw := env.do(http.MethodPost, base+"/qr", "citizen", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var withQR AppointmentResponse
	require.NoError(t, json.Unmarshal(raw, &withQR))
	require.NotNil(t, withQR.QRCode)
	qr := withQR.QRCode.Data

	env.now = time.Date(2026, 10, 20, 9, 0, 0, 0, colombo)

	resp, raw = env.do(http.MethodPost, "/checkin/validate", "staff", CheckInRequest{QRData: qr})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res map[string]any
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "valid", res["timeStatus"])
	assert.Equal(t, true, res["departmentMatch"])
	assert.Equal(t, created.BookingReference, res["appointment"].(map[string]any)["bookingReference"])

	resp, raw = env.do(http.MethodPost, "/checkin/validate", "other-staff", CheckInRequest{QRData: qr})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, false, res["success"])
	assert.Equal(t, false, res["departmentMatch"])

	resp, raw = env.do(http.MethodPost, "/checkin/confirm", "staff", CheckInRequest{QRData: qr})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirm checkin.Result
	require.NoError(t, json.Unmarshal(raw, &confirm))
	assert.False(t, confirm.Success)
	assert.Equal(t, checkin.ReasonNotConfirmed, confirm.Reason)

	resp, _ = env.do(http.MethodPost, base+"/confirm", "staff", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = env.do(http.MethodPost, "/checkin/confirm", "staff", CheckInRequest{QRData: qr})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &confirm))
	assert.True(t, confirm.Success)
	assert.Equal(t, "completed", confirm.Appointment.Status)

	resp, _ = env.do(http.MethodPost, "/checkin/validate", "citizen", CheckInRequest{QRData: qr})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw = env.do(http.MethodPost, "/checkin/validate", "staff", CheckInRequest{QRData: "garbage"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, "expired", res["timeStatus"])
}

func TestCheckInRateLimited(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := env.do(http.MethodPost, "/checkin/validate", "staff", CheckInRequest{QRData: "{}"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := env.do(http.MethodPost, "/checkin/validate", "staff", CheckInRequest{QRData: "{}"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestConversationEndpoints(t *testing.T) {
	env := newTestEnv(t, 10)
	path := "/conversations/s-1"

	var turn conversation.TurnResponse
	for _, msg := range []string{"hello", "Immigration", "passport renewal", "any officer", "2026-10-22", "10:15", "none"} {
		resp, raw := env.do(http.MethodPost, path+"/messages", "citizen", MessageRequest{Message: msg})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		require.NoError(t, json.Unmarshal(raw, &turn))
	}
	assert.True(t, turn.IsComplete)
	assert.Equal(t, conversation.StepComplete, turn.CurrentStep)

	resp, _ := env.do(http.MethodGet, path, "other", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw := env.do(http.MethodPost, path+"/book", "citizen", BookRequest{CitizenName: "Nimal Perera", NIC: "901234567V", Phone: "0771234567", AgentID: "agent-7"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var booked AppointmentResponse
	require.NoError(t, json.Unmarshal(raw, &booked))
	assert.Equal(t, "passport", booked.ServiceType)
	assert.Equal(t, "2026-10-22", booked.Date)
	assert.Equal(t, "10:15", booked.Time)
	assert.Equal(t, "citizen-1", booked.CitizenID)

	resp, _ = env.do(http.MethodDelete, path, "citizen", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(http.MethodGet, path, "citizen", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/conversations/s-2/messages", "citizen", MessageRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(http.MethodPost, "/conversations/s-2/book", "citizen", BookRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConversationMessageRejectsOtherCitizen(t *testing.T) {
	env := newTestEnv(t, 10)
	path := "/conversations/s-1/messages"

	for _, msg := range []string{"hello", "Immigration"} {
		resp, raw := env.do(http.MethodPost, path, "citizen", MessageRequest{Message: msg})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	}

	resp, raw := env.do(http.MethodPost, path, "other", MessageRequest{Message: "visa"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, string(raw), "Immigration")

	resp, raw = env.do(http.MethodGet, "/conversations/s-1", "citizen", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess conversation.Session
	require.NoError(t, json.Unmarshal(raw, &sess))
	assert.Equal(t, conversation.StepService, sess.CurrentStep)
	assert.Empty(t, sess.CollectedData.Service)
}

func TestWriteAppointmentErrorDefaultsTo500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAppointmentError(rec, errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logging.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
