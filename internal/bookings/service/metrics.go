package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	created   prometheus.Counter
	conflicts prometheus.Counter
	released  prometheus.Counter
	cancelled *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "bookings_created_total",
			Help:      "Bookings successfully created.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected because the slot and time slot were taken.",
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "bookings_released_total",
			Help:      "Expired bookings released by the sweep.",
		}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "bookings_cancelled_total",
			Help:      "Bookings cancelled, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.created, m.conflicts, m.released, m.cancelled)
	return m
}
