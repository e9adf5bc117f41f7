package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvEventsTopic  = "EVENTS_TOPIC"

	EnvRetryMaxAttempts = "RETRY_MAX_ATTEMPTS"
	EnvRetryBaseDelay   = "RETRY_BASE_DELAY"

	EnvBreakerFailureThreshold = "BREAKER_FAILURE_THRESHOLD"
	EnvBreakerCooldown         = "BREAKER_COOLDOWN"

	EnvSweepInterval = "SWEEP_INTERVAL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
