package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/tamrstore/storefront/pkg/errors"
	"github.com/tamrstore/storefront/pkg/database"
)

const (
	selectRecordSQL = `SELECT value FROM cart_records WHERE key = $1`
	upsertRecordSQL = `
		INSERT INTO cart_records (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	deleteRecordSQL = `DELETE FROM cart_records WHERE key = $1`
)

// Store keeps cart records in the cart_records table.
type Store struct {
	db database.DBTX
}

// New returns a Postgres-backed Store. The table is created by the embedded
// migrations.
func New(db database.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) (value []byte, err error) {
	ctx, end := database.TraceQuery(ctx, "GetCartRecord", selectRecordSQL)
	defer func() {
		// A missing record is an ordinary outcome, not a failed query.
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	if err = s.db.QueryRow(ctx, selectRecordSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("cart record", key)
		}
		return nil, fmt.Errorf("select cart record: %w", err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, end := database.TraceQuery(ctx, "SetCartRecord", upsertRecordSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, upsertRecordSQL, key, value); err != nil {
		return fmt.Errorf("upsert cart record: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteCartRecord", deleteRecordSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, deleteRecordSQL, key); err != nil {
		return fmt.Errorf("delete cart record: %w", err)
	}
	return nil
}
