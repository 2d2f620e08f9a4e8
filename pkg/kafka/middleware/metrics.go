package kafka_middleware

import (
	"context"
	"time"

	"smartparking/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	published *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Kafka messages published, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parking",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing a Kafka message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	reg.MustRegister(m.published, m.duration)
	return m
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		eventType := msg.GetEventType()
		m.duration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

		outcome := "success"
		if err != nil {
			outcome = kafka.ClassifyError(err).String()
		}
		m.published.WithLabelValues(eventType, outcome).Inc()

		return err
	}
}
