// Package journal persists served predictions to SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // register driver

	"github.com/kailas-cloud/mushi/internal/domain/prediction"
)

const schema = `CREATE TABLE IF NOT EXISTS predictions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at     INTEGER NOT NULL,
	image_sha256   TEXT    NOT NULL,
	top_label      TEXT    NOT NULL,
	top_confidence REAL    NOT NULL,
	k              INTEGER NOT NULL,
	ranking_json   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);`

// Entry is one served prediction.
type Entry struct {
	ID          int64
	CreatedAt   time.Time
	ImageSHA256 string
	K           int
	Ranking     []prediction.Prediction
}

type rankedJSON struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Journal is an append-only prediction log.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// single writer keeps SQLite out of SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends an entry. Empty rankings are rejected.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	top, ok := prediction.Top(e.Ranking)
	if !ok {
		return fmt.Errorf("journal: empty ranking")
	}

	ranked := make([]rankedJSON, len(e.Ranking))
	for i, p := range e.Ranking {
		ranked[i] = rankedJSON{Label: p.Label(), Confidence: p.Confidence()}
	}
	data, err := json.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("journal: encode ranking: %w", err)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO predictions (created_at, image_sha256, top_label, top_confidence, k, ranking_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		createdAt.UnixMilli(), e.ImageSHA256, top.Label(), top.Confidence(), e.K, string(data),
	)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, image_sha256, k, ranking_json
		 FROM predictions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
			raw       string
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.ImageSHA256, &e.K, &raw); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		var ranked []rankedJSON
		if err := json.Unmarshal([]byte(raw), &ranked); err != nil {
			return nil, fmt.Errorf("journal: decode ranking %d: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(createdAt)
		e.Ranking = make([]prediction.Prediction, len(ranked))
		for i, r := range ranked {
			e.Ranking[i] = prediction.New(r.Label, r.Confidence)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
