package utils

import (
	"os"
	"strconv"
	"time"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("POSTCARDHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("POSTCARDHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "postcardhub"
	}

	duration := 24 * time.Hour
	if ttl := os.Getenv("POSTCARDHUB_JWT_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			duration = time.Duration(hours) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: duration,
	}
}

type ServerConfig struct {
	HTTPAddr string
	TCPAddr  string
}

func LoadServerConfig() ServerConfig {
	httpAddr := os.Getenv("POSTCARDHUB_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	tcpAddr := os.Getenv("POSTCARDHUB_TCP_ADDR")
	if tcpAddr == "" {
		tcpAddr = ":7070"
	}
	return ServerConfig{HTTPAddr: httpAddr, TCPAddr: tcpAddr}
}
