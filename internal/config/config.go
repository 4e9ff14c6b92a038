package config

import "os"

type Config struct {
	DB_USERNAME string
	DB_PASSWORD string
	DB_HOST     string
	DB_PORT     string
	DB_NAME     string
	DISABLE_TLS string

	APP_PORT     string
	SUPER_SECRET string

	// Analyzer (Postgres text search configuration) used by the
	// full-text search indexes, e.g. "simple", "english".
	SEARCH_ANALYZER string

	// OAuth login provider (authorization-code flow).
	OAUTH_CLIENT_ID     string
	OAUTH_CLIENT_SECRET string
	OAUTH_AUTH_URL      string
	OAUTH_TOKEN_URL     string
	OAUTH_USERINFO_URL  string
	OAUTH_CALLBACK_URL  string

	// Optional OIDC issuer for verifying externally issued tokens.
	OIDC_ISSUER   string
	OIDC_AUDIENCE string

	// Optional Redis for session token revocation.
	REDIS_ADDR     string
	REDIS_PASSWORD string

	OTEL_EXPORTER_OTLP_ENDPOINT string
}

func ReadConfig() *Config {
	return &Config{
		DB_USERNAME: os.Getenv("DB_USERNAME"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     GetEnvOrDefault("DB_PORT", "5432"),
		DB_NAME:     GetEnvOrDefault("DB_NAME", "wishdoc"),
		DISABLE_TLS: os.Getenv("DISABLE_TLS"),

		APP_PORT:     GetEnvOrDefault("APP_PORT", "3000"),
		SUPER_SECRET: GetEnvOrDefault("SUPER_SECRET", "ThisIsMyWish"),

		SEARCH_ANALYZER: GetEnvOrDefault("SEARCH_ANALYZER", "simple"),

		OAUTH_CLIENT_ID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAUTH_CLIENT_SECRET: os.Getenv("OAUTH_CLIENT_SECRET"),
		OAUTH_AUTH_URL:      os.Getenv("OAUTH_AUTH_URL"),
		OAUTH_TOKEN_URL:     os.Getenv("OAUTH_TOKEN_URL"),
		OAUTH_USERINFO_URL:  os.Getenv("OAUTH_USERINFO_URL"),
		OAUTH_CALLBACK_URL:  os.Getenv("OAUTH_CALLBACK_URL"),

		OIDC_ISSUER:   os.Getenv("OIDC_ISSUER"),
		OIDC_AUDIENCE: GetEnvOrDefault("OIDC_AUDIENCE", "wishdoc-api"),

		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),

		OTEL_EXPORTER_OTLP_ENDPOINT: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
