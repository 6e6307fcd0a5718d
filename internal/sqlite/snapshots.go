package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// StoredSnapshot is a persisted blob and when it was last written.
type StoredSnapshot struct {
	Name      string
	Data      []byte
	UpdatedAt time.Time
}

type snapshotRow struct {
	Name      string `db:"name"`
	Data      string `db:"data"`
	UpdatedAt int64  `db:"updated_at"`
}

// SaveSnapshot writes the blob under name, replacing what was there.
func (r Repo) SaveSnapshot(ctx context.Context, name string, data []byte) error {
	query, args, err := sq.Insert("snapshots").
		Columns("name", "data", "updated_at").
		Values(name, string(data), time.Now().Unix()).
		Suffix("ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error saving snapshot %s: %s", name, err)
	}

	return nil
}

// Snapshot reads the blob stored under name.
func (r Repo) Snapshot(ctx context.Context, name string) (StoredSnapshot, error) {
	const q = `SELECT name, data, updated_at FROM snapshots WHERE name = ?;`

	var row snapshotRow
	err := r.db.GetContext(ctx, &row, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSnapshot{}, ErrNotFound
	}
	if err != nil {
		return StoredSnapshot{}, fmt.Errorf("error fetching snapshot %s: %s", name, err)
	}

	return StoredSnapshot{
		Name:      row.Name,
		Data:      []byte(row.Data),
		UpdatedAt: time.Unix(row.UpdatedAt, 0),
	}, nil
}
