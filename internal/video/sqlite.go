package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository stores videos in a SQLite database file.
type SQLiteRepository struct {
	*sqlRepository
}

var sqliteDialect = sqlDialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			video_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_user_id ON videos(user_id, created_at DESC)`,
	},
	insert: `INSERT INTO videos
		(id, user_id, title, description, thumbnail_url, video_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	selectByID: `SELECT id, user_id, title, description, thumbnail_url, video_url, created_at, updated_at
		FROM videos WHERE id = ?`,
	update: `UPDATE videos SET
		user_id = ?, title = ?, description = ?, thumbnail_url = ?, video_url = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
	selectByUser: `SELECT id, user_id, title, description, thumbnail_url, video_url, created_at, updated_at
		FROM videos WHERE user_id = ? ORDER BY created_at DESC, id ASC`,
	isUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
	},
}

// NewSQLiteRepository opens (or creates) the database at dbPath and ensures
// the schema exists.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	repo, err := newSQLRepository(context.Background(), db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepository{sqlRepository: repo}, nil
}
