package kafka_config

import "time"

const (
	DefaultKafkaBrokers  = "localhost:9092"
	DefaultKafkaTopic    = "parking.events"
	DefaultKafkaDLQTopic = "parking.events.dlq"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // Require all replicas
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = true
	DefaultPublishTimeout       = 2 * time.Second

	DefaultEnableMiddleware = true
)
