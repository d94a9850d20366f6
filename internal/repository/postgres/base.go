package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/loleg/couchers/internal/repository"
)

// BaseRepository provides common functionality for all repositories.
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository.
func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{db: db}
}

// Querier returns the non-transactional querier.
func (r *BaseRepository) Querier() repository.Querier {
	return r.db
}

// WithTx executes a function within a transaction.
func (r *BaseRepository) WithTx(ctx context.Context, fn func(q repository.Querier) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
