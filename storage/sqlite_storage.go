package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iabalyuk/farewizard/flightplan"
)

// SQLiteStorage represents a persistent configuration store using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		dbPath = "farewizard.db" // Default database file
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS configurations (
			id TEXT PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			draft TEXT NOT NULL,
			window_end TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create configurations table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			chat_id INTEGER PRIMARY KEY,
			tier TEXT NOT NULL DEFAULT 'free',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_configurations_chat ON configurations(chat_id)`)
	if err != nil {
		return fmt.Errorf("failed to create chat index: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_configurations_window_end ON configurations(window_end)`)
	if err != nil {
		// Log warning but continue, the chat index is the important one
		log.Printf("Warning: failed to create window_end index: %v", err)
	}

	return nil
}

// migrateSchema checks for and applies necessary schema changes
func migrateSchema(db *sql.DB) error {
	// window_end was added after the first release; older databases
	// need the column backfilled from the draft payload's window.
	exists, err := columnExists(db, "configurations", "window_end")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	log.Println("Schema migration: adding 'window_end' column to 'configurations' table...")
	if _, err := db.Exec(`ALTER TABLE configurations ADD COLUMN window_end TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("failed to add window_end column: %w", err)
	}

	rows, err := db.Query(`SELECT id, draft FROM configurations`)
	if err != nil {
		return fmt.Errorf("failed to read configurations for backfill: %w", err)
	}
	defer rows.Close()

	backfill := make(map[string]string)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return fmt.Errorf("failed to scan configuration row: %w", err)
		}
		var draft flightplan.Draft
		if err := json.Unmarshal([]byte(payload), &draft); err != nil {
			log.Printf("Warning: skipping backfill for %s: %v", id, err)
			continue
		}
		backfill[id] = draft.Window.End.Format("2006-01-02")
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating configuration rows: %w", err)
	}

	for id, end := range backfill {
		if _, err := db.Exec(`UPDATE configurations SET window_end = ? WHERE id = ?`, end, id); err != nil {
			return fmt.Errorf("failed to backfill window_end for %s: %w", id, err)
		}
	}
	log.Printf("Schema migration: 'window_end' backfilled for %d configurations.", len(backfill))
	return nil
}

// columnExists reports whether a table already has the named column
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to query table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var typeName string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &typeName, &notnull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveConfiguration persists a completed draft as one unit and returns
// its id. The insert runs inside a transaction so a failure leaves no
// partial row behind.
func (s *SQLiteStorage) SaveConfiguration(chatID int64, draft flightplan.Draft) (string, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO configurations (id, chat_id, kind, draft, window_end) VALUES (?, ?, ?, ?, ?)`,
		id, chatID, KindOf(draft), string(payload), draft.Window.End.Format("2006-01-02"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert configuration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit configuration: %w", err)
	}
	return id, nil
}

// LoadUserConfigurations returns the user's configurations, oldest first
func (s *SQLiteStorage) LoadUserConfigurations(chatID int64) ([]SavedConfiguration, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, kind, draft, created_at FROM configurations WHERE chat_id = ? ORDER BY created_at, id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()
	return scanConfigurations(rows)
}

// ListConfigurations returns every stored configuration
func (s *SQLiteStorage) ListConfigurations() ([]SavedConfiguration, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, kind, draft, created_at FROM configurations ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()
	return scanConfigurations(rows)
}

// scanConfigurations converts query rows into SavedConfiguration values
func scanConfigurations(rows *sql.Rows) ([]SavedConfiguration, error) {
	var out []SavedConfiguration
	for rows.Next() {
		var c SavedConfiguration
		var payload string
		if err := rows.Scan(&c.ID, &c.ChatID, &c.Kind, &payload, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan configuration row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &c.Draft); err != nil {
			// A corrupt payload should not take /list down with it.
			log.Printf("Warning: skipping configuration %s with bad payload: %v", c.ID, err)
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadUserCounts returns how many fixed and flexible configurations
// the user currently has
func (s *SQLiteStorage) LoadUserCounts(chatID int64) (flightplan.UsageCounts, error) {
	rows, err := s.db.Query(
		`SELECT kind, COUNT(*) FROM configurations WHERE chat_id = ? GROUP BY kind`,
		chatID,
	)
	if err != nil {
		return flightplan.UsageCounts{}, fmt.Errorf("failed to query usage counts: %w", err)
	}
	defer rows.Close()

	var counts flightplan.UsageCounts
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return flightplan.UsageCounts{}, fmt.Errorf("failed to scan usage count row: %w", err)
		}
		switch kind {
		case KindFixed:
			counts.Fixed = n
		case KindFlexible:
			counts.Flexible = n
		}
	}
	return counts, rows.Err()
}

// DeleteConfiguration removes one configuration owned by chatID
func (s *SQLiteStorage) DeleteConfiguration(chatID int64, id string) error {
	res, err := s.db.Exec(`DELETE FROM configurations WHERE chat_id = ? AND id = ?`, chatID, id)
	if err != nil {
		return fmt.Errorf("failed to delete configuration %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("configuration %s not found", id)
	}
	return nil
}

// GetQuota returns the quota for the user's subscription tier
func (s *SQLiteStorage) GetQuota(chatID int64) (flightplan.Quota, error) {
	var tier string
	err := s.db.QueryRow(`SELECT tier FROM users WHERE chat_id = ?`, chatID).Scan(&tier)
	if err == sql.ErrNoRows {
		return QuotaForTier(TierFree), nil
	}
	if err != nil {
		return flightplan.Quota{}, fmt.Errorf("failed to query user tier: %w", err)
	}
	return QuotaForTier(tier), nil
}

// SetUserTier records the user's subscription tier
func (s *SQLiteStorage) SetUserTier(chatID int64, tier string) error {
	if _, ok := tierQuotas[tier]; !ok {
		return fmt.Errorf("unknown tier %q", tier)
	}
	_, err := s.db.Exec(
		`INSERT INTO users (chat_id, tier) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET tier = excluded.tier`,
		chatID, tier,
	)
	if err != nil {
		return fmt.Errorf("failed to set tier for %d: %w", chatID, err)
	}
	return nil
}

// DeleteExpired removes configurations whose departure window ends
// before cutoff and returns them so their owners can be notified. The
// select and delete run in one transaction, and only the rows that
// were returned are deleted: a row inserted mid-sweep is never removed
// unreported.
func (s *SQLiteStorage) DeleteExpired(cutoff time.Time) ([]SavedConfiguration, error) {
	cut := cutoff.Format("2006-01-02")

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, chat_id, kind, draft, created_at FROM configurations WHERE window_end < ?`,
		cut,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired configurations: %w", err)
	}
	expired, err := scanConfigurations(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	for _, cfg := range expired {
		if _, err := tx.Exec(`DELETE FROM configurations WHERE id = ?`, cfg.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired configuration %s: %w", cfg.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expiry sweep: %w", err)
	}
	return expired, nil
}
