package config

const (
	EnvPrefix = "TAJER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TAJER_DB_DSN"
	EnvDBHost = "TAJER_DB_HOST"
	EnvDBUser = "TAJER_DB_USER"
	EnvDBName = "TAJER_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
