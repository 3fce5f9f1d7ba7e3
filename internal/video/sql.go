package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqlDialect holds the statements that differ between SQL engines.
type sqlDialect struct {
	schema            []string
	insert            string
	selectByID        string
	update            string
	selectByUser      string
	isUniqueViolation func(error) bool
}

// sqlRepository implements Repository on database/sql.
type sqlRepository struct {
	db      *sql.DB
	dialect sqlDialect
}

func newSQLRepository(ctx context.Context, db *sql.DB, dialect sqlDialect) (*sqlRepository, error) {
	for _, stmt := range dialect.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &sqlRepository{db: db, dialect: dialect}, nil
}

// Close closes the underlying database handle.
func (r *sqlRepository) Close() error {
	return r.db.Close()
}

func (r *sqlRepository) Create(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, r.dialect.insert,
		v.ID, v.UserID, v.Title, v.Description, v.ThumbnailURL, v.VideoURL,
		v.CreatedAt.UTC(), v.UpdatedAt.UTC(),
	)
	if err != nil {
		if r.dialect.isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *sqlRepository) FindByID(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.selectByID, id)

	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select video: %w", err)
	}
	return v, nil
}

func (r *sqlRepository) Save(ctx context.Context, v *Video) error {
	res, err := r.db.ExecContext(ctx, r.dialect.update,
		v.UserID, v.Title, v.Description, v.ThumbnailURL, v.VideoURL,
		v.CreatedAt.UTC(), v.UpdatedAt.UTC(), v.ID,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlRepository) ListByUser(ctx context.Context, userID string) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.selectByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return result, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&v.ID, &v.UserID, &v.Title, &v.Description, &v.ThumbnailURL, &v.VideoURL,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	v.CreatedAt = createdAt.UTC()
	v.UpdatedAt = updatedAt.UTC()
	return &v, nil
}
