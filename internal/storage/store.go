package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/product-evaluator/internal/evaluation"
	_ "modernc.org/sqlite"
)

// StoredEvaluation is a completed evaluation kept for history and reuse.
type StoredEvaluation struct {
	ID         string
	TelegramID int64
	ImageHash  string // Hex SHA-256 of the image bytes
	Niche      string
	CostHint   float64
	Record     evaluation.Record
	CreatedAt  time.Time
}

// AllowedUser represents a user in the whitelist.
type AllowedUser struct {
	TelegramID int64
	AddedAt    time.Time
	AddedBy    int64
}

// EvaluationStore persists evaluation records and the user whitelist.
type EvaluationStore interface {
	SaveEvaluation(e *StoredEvaluation) error
	GetEvaluation(id string) (*StoredEvaluation, error)
	ListEvaluations(telegramID int64, limit int) ([]StoredEvaluation, error)
	// FindCached returns the newest evaluation of the same image with the
	// same niche and cost hint, or nil.
	FindCached(imageHash, niche string, costHint float64, maxAge time.Duration) (*StoredEvaluation, error)
	Close() error

	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]AllowedUser, error)
}

// SQLiteStore implements EvaluationStore on SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Records may contain supplier costs; keep the file private.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to set database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	evaluationsQuery := `
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		telegram_id INTEGER NOT NULL,
		image_hash TEXT NOT NULL,
		niche TEXT NOT NULL,
		cost_hint REAL NOT NULL,
		record_json TEXT NOT NULL,
		strategy INTEGER NOT NULL,
		degraded INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS evaluations_user_idx ON evaluations (telegram_id, created_at);
	CREATE INDEX IF NOT EXISTS evaluations_image_idx ON evaluations (image_hash, created_at);
	`
	if _, err := s.db.Exec(evaluationsQuery); err != nil {
		return fmt.Errorf("failed to create evaluations table: %w", err)
	}

	allowedUsersQuery := `
	CREATE TABLE IF NOT EXISTS allowed_users (
		telegram_id INTEGER PRIMARY KEY,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		added_by INTEGER
	);
	`
	if _, err := s.db.Exec(allowedUsersQuery); err != nil {
		return fmt.Errorf("failed to create allowed_users table: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveEvaluation inserts e, assigning an ID and timestamp when missing.
func (s *SQLiteStore) SaveEvaluation(e *StoredEvaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	recordJSON, err := json.Marshal(e.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO evaluations (id, telegram_id, image_hash, niche, cost_hint, record_json, strategy, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TelegramID, e.ImageHash, e.Niche, e.CostHint, string(recordJSON),
		e.Record.Quality.Strategy, e.Record.Quality.Degraded, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}

const selectEvaluation = `SELECT id, telegram_id, image_hash, niche, cost_hint, record_json, created_at FROM evaluations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*StoredEvaluation, error) {
	var e StoredEvaluation
	var recordJSON string
	if err := row.Scan(&e.ID, &e.TelegramID, &e.ImageHash, &e.Niche, &e.CostHint, &recordJSON, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(recordJSON), &e.Record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", e.ID, err)
	}
	return &e, nil
}

// GetEvaluation returns the evaluation with id, or nil if there is none.
func (s *SQLiteStore) GetEvaluation(id string) (*StoredEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := scanEvaluation(s.db.QueryRow(selectEvaluation+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation: %w", err)
	}
	return e, nil
}

// ListEvaluations returns a user's evaluations, newest first.
func (s *SQLiteStore) ListEvaluations(telegramID int64, limit int) ([]StoredEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectEvaluation+" WHERE telegram_id = ? ORDER BY created_at DESC LIMIT ?", telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var out []StoredEvaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindCached looks up a recent, non-degraded evaluation of the same input.
func (s *SQLiteStore) FindCached(imageHash, niche string, costHint float64, maxAge time.Duration) (*StoredEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().UTC().Add(-maxAge)
	e, err := scanEvaluation(s.db.QueryRow(selectEvaluation+`
		WHERE image_hash = ? AND niche = ? AND cost_hint = ? AND degraded = 0 AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`, imageHash, niche, costHint, since))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cached evaluation: %w", err)
	}
	return e, nil
}

// IsUserAllowed checks if a user is in the whitelist.
func (s *SQLiteStore) IsUserAllowed(telegramID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM allowed_users WHERE telegram_id = ?",
		telegramID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check allowed user: %w", err)
	}
	return count > 0, nil
}

// AddAllowedUser adds a user to the whitelist.
func (s *SQLiteStore) AddAllowedUser(telegramID, addedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO allowed_users (telegram_id, added_by)
		VALUES (?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			added_by = excluded.added_by,
			added_at = CURRENT_TIMESTAMP
	`, telegramID, addedBy)
	if err != nil {
		return fmt.Errorf("failed to add allowed user: %w", err)
	}
	return nil
}

// RemoveAllowedUser removes a user from the whitelist.
func (s *SQLiteStore) RemoveAllowedUser(telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM allowed_users WHERE telegram_id = ?", telegramID); err != nil {
		return fmt.Errorf("failed to remove allowed user: %w", err)
	}
	return nil
}

// GetAllowedUsers returns all users in the whitelist.
func (s *SQLiteStore) GetAllowedUsers() ([]AllowedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT telegram_id, added_at, added_by FROM allowed_users ORDER BY added_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed users: %w", err)
	}
	defer rows.Close()

	var users []AllowedUser
	for rows.Next() {
		var user AllowedUser
		if err := rows.Scan(&user.TelegramID, &user.AddedAt, &user.AddedBy); err != nil {
			return nil, fmt.Errorf("failed to scan allowed user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
