package audit

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using a MySQL backend
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store. The DSN should include
// parseTime=true so created_at columns scan into time.Time.
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	store := &MySQLStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *MySQLStore) initDB() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS auth_attempts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			dn VARCHAR(1024),
			success TINYINT(1) NOT NULL,
			detail TEXT,
			source_ip VARCHAR(64),
			duration_ms BIGINT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_auth_created (created_at),
			INDEX idx_auth_username (username)
		)`,
		`CREATE TABLE IF NOT EXISTS pool_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			event VARCHAR(64) NOT NULL,
			detail TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_pool_created (created_at)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordAuth saves one authentication attempt
func (s *MySQLStore) RecordAuth(rec *AuthRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO auth_attempts (username, dn, success, detail, source_ip, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Username, rec.DN, rec.Success, rec.Detail, rec.SourceIP, rec.DurationMs, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// RecentAuths returns the newest authentication attempts, newest first
func (s *MySQLStore) RecentAuths(limit int) ([]*AuthRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, username, dn, success, detail, source_ip, duration_ms, created_at
		FROM auth_attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AuthRecord
	for rows.Next() {
		rec := &AuthRecord{}
		var dn, detail, sourceIP sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Username, &dn, &rec.Success, &detail, &sourceIP, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.DN = dn.String
		rec.Detail = detail.String
		rec.SourceIP = sourceIP.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AuthStats returns attempt counters
func (s *MySQLStore) AuthStats() (total, succeeded, failed int, err error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0)
		FROM auth_attempts`)
	if err = row.Scan(&total, &succeeded); err != nil {
		return 0, 0, 0, err
	}
	return total, succeeded, total - succeeded, nil
}

// RecordPoolEvent saves one pool lifecycle event
func (s *MySQLStore) RecordPoolEvent(event, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO pool_events (event, detail, created_at) VALUES (?, ?, ?)`,
		event, detail, time.Now().UTC(),
	)
	return err
}

// RecentPoolEvents returns the newest pool events, newest first
func (s *MySQLStore) RecentPoolEvents(limit int) ([]*PoolEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, event, detail, created_at
		FROM pool_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*PoolEvent
	for rows.Next() {
		ev := &PoolEvent{}
		var detail sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Event, &detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Detail = detail.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the underlying database handle
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
