package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrDetailNotFound  = errors.New("lead detail not found")
	ErrMessageNotFound = errors.New("outbound message not found")
	ErrRunNotFound     = errors.New("dispatch run not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
