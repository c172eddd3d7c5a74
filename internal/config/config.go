package config

type Config interface {
	EnvConfig
	CorsConfig
	IdPConfig
	StoreConfig
	EdgeConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// IdPConfig describes the enterprise identity provider the proxy
// delegates user authentication to.
type IdPConfig interface {
	GetIdPIssuerURL() string
	GetIdPClientID() string
	GetIdPClientSecret() string
	GetIdPScopes() []string
	GetIdPJWKSURL() string
	GetOfficerGroupID() string
}

// StoreConfig describes the shared durable store backing the token
// store and the client registry.
type StoreConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

// EdgeConfig describes the trusted edge-authentication layer that may
// inject identity headers for the dashboard surface.
type EdgeConfig interface {
	GetEdgeSharedSecret() string
	GetEdgeTokenHeader() string
}

type mainConfig struct {
	EnvVars
	Cors
	IdP
	Store
	Edge
}

func New() Config {
	return mainConfig{}
}
