package runstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

//go:embed schema.sql
var schemaSQL string

type sqliteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite-backed RunStore at path. Runs are
// stored as JSON blobs with the columns needed for listing alongside.
func NewSQLite(path string) (interfaces.RunStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema")
	}
	return &sqliteStore{db: db}, nil
}

func (x *sqliteStore) Put(ctx context.Context, run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return goerr.Wrap(err, "failed to encode run", goerr.V("id", run.ID))
	}

	_, err = x.db.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline, status, started_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			data = excluded.data`,
		run.ID.String(), run.Pipeline, string(run.Status), run.StartedAt.UnixNano(), data,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to store run", goerr.V("id", run.ID))
	}
	return nil
}

func (x *sqliteStore) Get(ctx context.Context, id types.RunID) (*model.Run, error) {
	var data []byte
	row := x.db.QueryRowContext(ctx, "SELECT data FROM runs WHERE id = ?", id.String())
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(types.ErrRunNotFound, "no such run", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to query run", goerr.V("id", id))
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run", goerr.V("id", id))
	}
	return &run, nil
}

func (x *sqliteStore) List(ctx context.Context, limit int) ([]*model.Run, error) {
	query := "SELECT data FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query runs")
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []*model.Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan run row")
		}
		var run model.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, goerr.Wrap(err, "failed to decode run")
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate runs")
	}
	return runs, nil
}

func (x *sqliteStore) Close() error {
	return x.db.Close()
}
