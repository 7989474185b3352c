package audit

import "time"

// AuthRecord is one authentication attempt.
type AuthRecord struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	DN         string    `json:"dn,omitempty"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// PoolEvent is one pool lifecycle event (exhaustion, reconfigure, sweep).
type PoolEvent struct {
	ID        int64     `json:"id"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for persistent audit operations
type Store interface {
	// RecordAuth saves one authentication attempt
	RecordAuth(rec *AuthRecord) error
	// RecentAuths returns the newest authentication attempts, newest first
	RecentAuths(limit int) ([]*AuthRecord, error)
	// AuthStats returns attempt counters
	AuthStats() (total, succeeded, failed int, err error)
	// RecordPoolEvent saves one pool lifecycle event
	RecordPoolEvent(event, detail string) error
	// RecentPoolEvents returns the newest pool events, newest first
	RecentPoolEvents(limit int) ([]*PoolEvent, error)
	// Close releases the underlying database handle
	Close() error
}
