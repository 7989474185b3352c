package directory

import (
	"fmt"

	"dirauth/pkg/config"
)

// Settings holds the backend parameters shared by every pooled connection.
// The pool replaces them wholesale during a reconfigure.
type Settings struct {
	Host         string
	Port         int
	FallbackHost string
	FallbackPort int
	UseSSL       bool
	UseTLS       bool
	CAPath       string
	BindDN       string
	BindPassword string
}

// FromConfig converts the YAML directory section into Settings.
func FromConfig(cfg config.DirectoryConfig) Settings {
	return Settings{
		Host:         cfg.Host,
		Port:         cfg.Port,
		FallbackHost: cfg.FallbackHost,
		FallbackPort: cfg.FallbackPort,
		UseSSL:       cfg.UseSSL,
		UseTLS:       cfg.UseTLS,
		CAPath:       cfg.CAPath,
		BindDN:       cfg.BindDN,
		BindPassword: cfg.BindPassword,
	}
}

// URL returns the dial URL for the primary backend.
func (s Settings) URL() string {
	return buildURL(s.Host, s.Port, s.UseSSL)
}

// FallbackURL returns the dial URL for the fallback backend, or "" when no
// fallback host is configured.
func (s Settings) FallbackURL() string {
	if s.FallbackHost == "" {
		return ""
	}
	return buildURL(s.FallbackHost, s.FallbackPort, s.UseSSL)
}

func buildURL(host string, port int, ssl bool) string {
	scheme := "ldap"
	if ssl {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
