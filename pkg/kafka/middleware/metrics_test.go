package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"smartparking/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsProducerMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	mw := m.ProducerMiddleware()

	msg, err := kafka.NewMessage().WithKey("BK1").WithValue("x").WithEventType(kafka.EventBookingCreated).Build()
	assert.NoError(t, err)

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("i/o timeout") }

	assert.NoError(t, mw(context.Background(), msg, ok))
	assert.NoError(t, mw(context.Background(), msg, ok))
	assert.Error(t, mw(context.Background(), msg, fail))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues(kafka.EventBookingCreated, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues(kafka.EventBookingCreated, "transient")))
}
