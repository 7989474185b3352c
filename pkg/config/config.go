package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address     string          `yaml:"address"`
	AdminToken  string          `yaml:"admin_token"`
	TLS         TLSConfig       `yaml:"tls"`
	Directory   DirectoryConfig `yaml:"directory"`
	Pool        PoolConfig      `yaml:"pool"`
	RoleMapping string          `yaml:"role_mapping"`
	Audit       AuditConfig     `yaml:"audit"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// TLSConfig represents TLS settings for the HTTP listener
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DirectoryConfig represents directory backend settings
type DirectoryConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	FallbackHost   string `yaml:"fallback_host"`
	FallbackPort   int    `yaml:"fallback_port"`
	UseSSL         bool   `yaml:"use_ssl"`
	UseTLS         bool   `yaml:"use_tls"`
	CAPath         string `yaml:"ca_path"`
	BindDN         string `yaml:"bind_dn"`
	BindPassword   string `yaml:"bind_password"`
	BaseDN         string `yaml:"base_dn"`
	UserFilter     string `yaml:"user_filter"`
	GroupAttribute string `yaml:"group_attribute"`
}

// PoolConfig represents connection pool sizing
type PoolConfig struct {
	WarmStart int `yaml:"warm_start"`
	MaxSize   int `yaml:"max_size"`
}

// AuditConfig represents audit store settings
type AuditConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	Path string `yaml:"path"` // file path for sqlite, DSN for mysql
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address:    ":8389",
		AdminToken: "",
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		Directory: DirectoryConfig{
			Host:           "localhost",
			Port:           389,
			FallbackHost:   "",
			FallbackPort:   389,
			UseSSL:         false,
			UseTLS:         false,
			CAPath:         "",
			BindDN:         "",
			BindPassword:   "",
			BaseDN:         "",
			UserFilter:     "(uid=%s)",
			GroupAttribute: "memberOf",
		},
		Pool: PoolConfig{
			WarmStart: 2,
			MaxSize:   10,
		},
		RoleMapping: "",
		Audit: AuditConfig{
			Type: "sqlite",
			Path: "./dirauth_audit.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}

	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		config.AdminToken = token
	}

	if host := os.Getenv("DIRECTORY_HOST"); host != "" {
		config.Directory.Host = host
	}

	if bindDN := os.Getenv("BIND_DN"); bindDN != "" {
		config.Directory.BindDN = bindDN
	}

	if bindPwd := os.Getenv("BIND_PASSWORD"); bindPwd != "" {
		config.Directory.BindPassword = bindPwd
	}

	if auditPath := os.Getenv("AUDIT_DB_PATH"); auditPath != "" {
		config.Audit.Path = auditPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}

	if maxSize := os.Getenv("POOL_MAX_SIZE"); maxSize != "" {
		if val, err := strconv.Atoi(maxSize); err == nil {
			config.Pool.MaxSize = val
		}
	}

	if warmStart := os.Getenv("POOL_WARM_START"); warmStart != "" {
		if val, err := strconv.Atoi(warmStart); err == nil {
			config.Pool.WarmStart = val
		}
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.Directory.Host == "" {
		return fmt.Errorf("directory host cannot be empty")
	}

	if c.Directory.Port <= 0 || c.Directory.Port > 65535 {
		return fmt.Errorf("directory port out of range: %d", c.Directory.Port)
	}

	if c.Pool.MaxSize <= 0 {
		return fmt.Errorf("pool max_size must be positive")
	}

	if c.Pool.WarmStart < 0 || c.Pool.WarmStart > c.Pool.MaxSize {
		return fmt.Errorf("pool warm_start must be between 0 and max_size (%d)", c.Pool.MaxSize)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	switch c.Audit.Type {
	case "", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported audit store type: %s", c.Audit.Type)
	}

	return nil
}

// String returns a printable summary with credentials redacted
func (c *ServerConfig) String() string {
	return fmt.Sprintf("addr=%s directory=%s:%d fallback=%s:%d ssl=%t tls=%t pool=%d/%d audit=%s",
		c.Address,
		c.Directory.Host, c.Directory.Port,
		c.Directory.FallbackHost, c.Directory.FallbackPort,
		c.Directory.UseSSL, c.Directory.UseTLS,
		c.Pool.WarmStart, c.Pool.MaxSize,
		c.Audit.Type)
}
