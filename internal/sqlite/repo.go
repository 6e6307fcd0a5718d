// Package sqlite persists feed cache snapshots.
package sqlite

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("resource not found")

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
