// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"imagehub/internal/models"
)

var ErrNotFound = errors.New("image not found")

// Store is the persistence boundary for image records. Mutation of a given
// record happens through Update, an atomic read-modify-write.
type Store interface {
	Create(ctx context.Context, img *models.Image) error
	Get(ctx context.Context, id int64) (*models.Image, error)
	Update(ctx context.Context, id int64, mutate func(*models.Image)) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]models.Image, error)
	Close()
}

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

const imageColumns = `id, original_name, stored_path, status, metadata, thumbnails, caption, error_message, created_at, processed_at`

func (s *Storage) Create(ctx context.Context, img *models.Image) error {
	const op = "storage.Create"

	err := s.pool.QueryRow(ctx,
		`INSERT INTO images (original_name, stored_path, status)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		img.OriginalName, img.StoredPath, string(img.Status)).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id int64) (*models.Image, error) {
	const op = "storage.Get"

	img, err := scanImage(s.pool.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return img, nil
}

// Update applies mutate inside a transaction with the row locked, so no
// other writer can interleave between the read and the write.
func (s *Storage) Update(ctx context.Context, id int64, mutate func(*models.Image)) error {
	const op = "storage.Update"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	defer tx.Rollback(ctx)

	img, err := scanImage(tx.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %v", op, err)
	}

	mutate(img)

	meta, thumbs, err := marshalArtifacts(img)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE images SET status = $2, metadata = $3, thumbnails = $4,
		 caption = $5, error_message = $6, processed_at = $7 WHERE id = $1`,
		img.ID, string(img.Status), meta, thumbs, img.Caption, img.ErrorMessage, img.ProcessedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	const op = "storage.Delete"
	_, err := s.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) ListAll(ctx context.Context) ([]models.Image, error) {
	const op = "storage.ListAll"

	rows, err := s.pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return images, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*models.Image, error) {
	var img models.Image
	var status string
	var meta, thumbs []byte

	err := row.Scan(&img.ID, &img.OriginalName, &img.StoredPath, &status,
		&meta, &thumbs, &img.Caption, &img.ErrorMessage, &img.CreatedAt, &img.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	img.Status = models.Status(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &img.Metadata); err != nil {
			return nil, err
		}
	}
	if len(thumbs) > 0 {
		if err := json.Unmarshal(thumbs, &img.Thumbnails); err != nil {
			return nil, err
		}
	}
	return &img, nil
}

func marshalArtifacts(img *models.Image) ([]byte, []byte, error) {
	var meta, thumbs []byte
	var err error
	if img.Metadata != nil {
		if meta, err = json.Marshal(img.Metadata); err != nil {
			return nil, nil, err
		}
	}
	if img.Thumbnails != nil {
		if thumbs, err = json.Marshal(img.Thumbnails); err != nil {
			return nil, nil, err
		}
	}
	return meta, thumbs, nil
}
