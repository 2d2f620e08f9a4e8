package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "smartparking"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultBoardCacheTTL = 30 * time.Second

	DefaultPort     = "3001"
	DefaultLogLevel = "info"

	DefaultSlotCount     = 10
	DefaultSweepInterval = 60 * time.Second
	DefaultSweepLockTTL  = 50 * time.Second
	DefaultTimezone      = "Local"

	DefaultSessionTTL = 12 * time.Hour
	DefaultBcryptCost = 10

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 20

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultCORSAllowedOrigins = "*"

	DefaultKafkaEnabled = false
)

// Booking lifecycle states stored on the document. Only "active" bookings
// occupy a slot; the unique partial index is keyed on this value.
const (
	StatusActive    = "active"
	StatusReleased  = "released"
	StatusCancelled = "cancelled"
)
