package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/IshaanNene/xmarks/internal/config"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id          TEXT PRIMARY KEY,
	author      TEXT NOT NULL,
	handle      TEXT NOT NULL,
	text        TEXT NOT NULL,
	url         TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	quote_text  TEXT,
	quote_url   TEXT,
	exported_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS media (
	post_id  TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	type     TEXT NOT NULL,
	url      TEXT NOT NULL,
	PRIMARY KEY (post_id, position)
);`

const upsertPostSQL = `
INSERT INTO posts (id, author, handle, text, url, timestamp, quote_text, quote_url, exported_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	author = excluded.author,
	handle = excluded.handle,
	text = excluded.text,
	url = excluded.url,
	timestamp = excluded.timestamp,
	quote_text = excluded.quote_text,
	quote_url = excluded.quote_url,
	exported_at = excluded.exported_at`

// SQLiteSink upserts exported posts into a local SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	count  int
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) the database at cfg.Path.
func NewSQLiteSink(ctx context.Context, cfg config.SQLiteConfig, logger *slog.Logger) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single connection keeps pragmas and writes on one handle.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteSink{
		db:     db,
		path:   cfg.Path,
		now:    time.Now,
		logger: logger.With("component", "sqlite_sink"),
	}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Store upserts every post and replaces its media rows in one transaction.
func (s *SQLiteSink) Store(ctx context.Context, batch Batch) (string, error) {
	if len(batch.Posts) == 0 {
		return s.path, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	exportedAt := s.now().UTC().Format(time.RFC3339)
	for i := range batch.Posts {
		p := &batch.Posts[i]

		var quoteText, quoteURL sql.NullString
		if p.QuoteTweet != nil {
			quoteText = sql.NullString{String: p.QuoteTweet.Text, Valid: true}
			quoteURL = sql.NullString{String: p.QuoteTweet.URL, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, upsertPostSQL,
			p.ID, p.Author, p.Handle, p.Text, p.URL, p.Timestamp, quoteText, quoteURL, exportedAt,
		); err != nil {
			return "", fmt.Errorf("sqlite upsert post %s: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE post_id = ?`, p.ID); err != nil {
			return "", fmt.Errorf("sqlite clear media %s: %w", p.ID, err)
		}
		for pos, m := range p.Media {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO media (post_id, position, type, url) VALUES (?, ?, ?, ?)`,
				p.ID, pos, string(m.Kind), m.URL,
			); err != nil {
				return "", fmt.Errorf("sqlite insert media %s: %w", p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite commit: %w", err)
	}

	s.count += len(batch.Posts)
	s.logger.Info("posts upserted", "path", s.path, "posts", len(batch.Posts), "total", s.count)
	return s.path, nil
}

func (s *SQLiteSink) Close(ctx context.Context) error {
	s.logger.Info("sqlite sink closing", "total_posts", s.count)
	return s.db.Close()
}
