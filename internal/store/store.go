package store

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

// Store wraps the shared database handle. All queries go through it so the
// engines can depend on narrow interfaces it satisfies.
type Store struct {
	DB *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{DB: db}
}
