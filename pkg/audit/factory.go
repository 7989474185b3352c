package audit

import (
	"fmt"

	"dirauth/pkg/config"
)

// NewStore returns a concrete Store based on audit configuration
func NewStore(cfg config.AuditConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "mysql":
		return NewMySQLStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported audit store type: %s", cfg.Type)
	}
}
