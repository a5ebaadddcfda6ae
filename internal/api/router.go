package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/checkin"
	"github.com/hackgods/gov-appointments/internal/conversation"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
)

type RouterConfig struct {
	Appointments  *appointment.Service
	Validator     *checkin.Validator
	Issuer        *checkin.Issuer
	Conversations *conversation.Service
	Health        *HealthHandler

	JWTSecret      string
	CheckInLimiter redisclient.RateLimiter
	MessageLimiter redisclient.RateLimiter
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	Now            func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil, nil, "", "")
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	// Health endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(TimeoutMiddleware(cfg.RequestTimeout))
		r.Use(Authenticate(cfg.JWTSecret))

		svc := cfg.Appointments
		staff := RequireRole(RoleStaff, RoleAdmin)

		// Appointment endpoints
		r.Post("/appointments", createAppointmentHandler(svc))
		r.Get("/appointments", listAppointmentsHandler(svc))
		r.Get("/appointments/ref/{ref}", getAppointmentByReferenceHandler(svc))
		r.Get("/appointments/{id}", getAppointmentHandler(svc))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))
		r.Post("/appointments/{id}/documents", addDocumentHandler(svc))
		r.Post("/appointments/{id}/qr", issueQRHandler(svc, cfg.Issuer))

		r.With(staff).Post("/appointments/{id}/confirm", confirmAppointmentHandler(svc))
		r.With(staff).Post("/appointments/{id}/complete", completeAppointmentHandler(svc))
		r.With(staff).Post("/appointments/{id}/notes", updateNotesHandler(svc))
		r.With(staff).Post("/appointments/{id}/notifications", markNotificationHandler(svc))
		r.With(staff).Get("/departments/{dept}/appointments", departmentBoardHandler(svc))

		// Check-in endpoints
		r.Route("/checkin", func(r chi.Router) {
			r.Use(staff)
			r.Use(RateLimitMiddleware(cfg.CheckInLimiter, cfg.Logger))
			r.Post("/validate", validateCheckInHandler(cfg.Validator, cfg.Now))
			r.Post("/confirm", confirmAttendanceHandler(cfg.Validator, svc, cfg.Now))
		})

		// Conversation endpoints
		r.Route("/conversations/{sessionId}", func(r chi.Router) {
			r.With(RateLimitMiddleware(cfg.MessageLimiter, cfg.Logger)).Post("/messages", postMessageHandler(cfg.Conversations))
			r.Get("/", getSessionHandler(cfg.Conversations))
			r.Delete("/", resetSessionHandler(cfg.Conversations))
			r.Post("/book", bookSessionHandler(cfg.Conversations, svc))
		})
	})

	return r
}
