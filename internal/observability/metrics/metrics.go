package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters for booking, transitions, check-in and conversation flows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	bookingsTotal      *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	checkinsTotal      *prometheus.CounterVec
	conversationTurns  *prometheus.CounterVec
	referenceCollision prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govappt",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govappt",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Status transition attempts",
		}, []string{"from", "to", "outcome"}),
		checkinsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govappt",
			Subsystem: "checkin",
			Name:      "validations_total",
			Help:      "QR check-in validations by verdict",
		}, []string{"reason", "time_status"}),
		conversationTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govappt",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed conversation turns by resulting step",
		}, []string{"step"}),
		referenceCollision: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "govappt",
			Subsystem: "appointments",
			Name:      "reference_collisions_total",
			Help:      "Booking reference unique violations that triggered a retry",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.checkinsTotal, m.conversationTurns, m.referenceCollision)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

func (m *Metrics) ObserveCheckIn(reason, timeStatus string) {
	if m == nil {
		return
	}
	m.checkinsTotal.WithLabelValues(reason, timeStatus).Inc()
}

func (m *Metrics) ObserveConversationTurn(step string) {
	if m == nil {
		return
	}
	m.conversationTurns.WithLabelValues(step).Inc()
}

func (m *Metrics) ObserveReferenceCollision() {
	if m == nil {
		return
	}
	m.referenceCollision.Inc()
}
