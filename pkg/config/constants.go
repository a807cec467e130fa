package config

const (
	// EnvPrefix is empty because every variable carries the BRIDGE_ prefix
	// explicitly in its envconfig tag.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BRIDGE_DB_DSN"
	EnvDBHost = "BRIDGE_DB_HOST"
	EnvDBUser = "BRIDGE_DB_USER"
	EnvDBName = "BRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
