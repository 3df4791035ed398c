package config

const (
	EnvPrefix = "THREADLINE"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv  = "THREADLINE_APP_ENV"
	EnvAppPort = "THREADLINE_APP_PORT"

	EnvDBDSN  = "THREADLINE_DB_DSN"
	EnvDBHost = "THREADLINE_DB_HOST"
	EnvDBUser = "THREADLINE_DB_USER"
	EnvDBName = "THREADLINE_DB_NAME"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
