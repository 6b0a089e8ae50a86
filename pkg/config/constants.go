package config

const EnvPrefix = "PLATEFUL"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "PLATEFUL_APP_ENV"
	EnvPort     = "PLATEFUL_APP_PORT"
	EnvRedisURL = "PLATEFUL_REDIS_URL"
)
