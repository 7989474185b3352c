package audit

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auth_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		dn TEXT,
		success INTEGER NOT NULL,
		detail TEXT,
		source_ip TEXT,
		duration_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_auth_created ON auth_attempts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_auth_username ON auth_attempts(username);

	CREATE TABLE IF NOT EXISTS pool_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pool_created ON pool_events(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordAuth saves one authentication attempt
func (s *SQLiteStore) RecordAuth(rec *AuthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
func (s *SQLiteStore) RecentAuths(limit int) ([]*AuthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) AuthStats() (total, succeeded, failed int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) RecordPoolEvent(event, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO pool_events (event, detail, created_at) VALUES (?, ?, ?)`,
		event, detail, time.Now().UTC(),
	)
	return err
}

// RecentPoolEvents returns the newest pool events, newest first
func (s *SQLiteStore) RecentPoolEvents(limit int) ([]*PoolEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
