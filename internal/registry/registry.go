// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/storeforge/storeforge/internal/tenant"

	// Database drivers; selection happens via the driver name.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Registry is the persistent record store for tenant records. It is the
// single source of truth for lifecycle state; every write is a single
// atomic statement covering state plus its associated fields.
type Registry struct {
	db     *sqlx.DB
	driver string
}

// New opens the database and runs pending migrations. Supported drivers
// are "sqlite3" and "postgres".
func New(driver, dsn string) (*Registry, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Registry{db: db, driver: driver}, nil
}

// Close closes the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection, for health checks.
func (r *Registry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// recordRow is the table shape; credentials are stored as a JSON text
// column and mapped to the record's string map on the way in and out.
type recordRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Kind            string    `db:"kind"`
	State           string    `db:"state"`
	Namespace       string    `db:"namespace"`
	StoreURL        string    `db:"store_url"`
	AdminURL        string    `db:"admin_url"`
	ErrorDetail     string    `db:"error_detail"`
	CredentialsJSON string    `db:"credentials"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (row *recordRow) toRecord() (*tenant.Record, error) {
	rec := &tenant.Record{
		ID:          row.ID,
		Name:        row.Name,
		Kind:        tenant.Kind(row.Kind),
		State:       tenant.State(row.State),
		Namespace:   row.Namespace,
		StoreURL:    row.StoreURL,
		AdminURL:    row.AdminURL,
		ErrorDetail: row.ErrorDetail,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.CredentialsJSON != "" {
		if err := json.Unmarshal([]byte(row.CredentialsJSON), &rec.Credentials); err != nil {
			return nil, fmt.Errorf("decoding credentials for record %s: %w", row.ID, err)
		}
	}
	return rec, nil
}

func marshalCredentials(creds map[string]string) (string, error) {
	if len(creds) == 0 {
		return "", nil
	}
	b, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encoding credentials: %w", err)
	}
	return string(b), nil
}

const selectColumns = `id, name, kind, state, namespace, store_url, admin_url, error_detail, credentials, created_at, updated_at`

// Create inserts a new record. Zero timestamps are set to the current
// time. A unique-constraint violation on name or namespace maps to
// tenant.ErrAlreadyExists.
func (r *Registry) Create(ctx context.Context, rec *tenant.Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	creds, err := marshalCredentials(rec.Credentials)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, kind, state, namespace, store_url, admin_url, error_detail, credentials, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Name, string(rec.Kind), string(rec.State), rec.Namespace,
		rec.StoreURL, rec.AdminURL, rec.ErrorDetail, creds, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", tenant.ErrAlreadyExists, rec.Name)
		}
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// Get returns the record with the given id.
func (r *Registry) Get(ctx context.Context, id string) (*tenant.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM stores WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return row.toRecord()
}

// GetByName returns the record with the given store name. Deleted
// records are removed outright, so any row found is live.
func (r *Registry) GetByName(ctx context.Context, name string) (*tenant.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM stores WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("getting record by name: %w", err)
	}
	return row.toRecord()
}

// List returns all records, newest first.
func (r *Registry) List(ctx context.Context) ([]*tenant.Record, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+selectColumns+` FROM stores ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return toRecords(rows)
}

// Count returns the total number of records, for capacity guardrails.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM stores`); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// CountByState returns the number of records per state, for metrics.
func (r *Registry) CountByState(ctx context.Context) (map[tenant.State]int, error) {
	var rows []struct {
		State string `db:"state"`
		N     int    `db:"n"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT state, COUNT(*) AS n FROM stores GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("counting records by state: %w", err)
	}
	out := make(map[tenant.State]int, len(rows))
	for _, row := range rows {
		out[tenant.State(row.State)] = row.N
	}
	return out, nil
}

// MarkDeleting transitions a record into the deleting state. The update
// is guarded so a record already deleting is not touched; callers decide
// between not-found and already-deleting by reading the record first.
func (r *Registry) MarkDeleting(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stores SET state = $1, updated_at = $2 WHERE id = $3 AND state != $1`,
		string(tenant.StateDeleting), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking record deleting: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

// SetReady completes a provision: state, access URLs, and credential
// references are written in one statement, guarded on the record still
// being in the provisioning state so a concurrent delete is never
// overwritten.
func (r *Registry) SetReady(ctx context.Context, id, storeURL, adminURL string, creds map[string]string) error {
	credsJSON, err := marshalCredentials(creds)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE stores SET state = $1, store_url = $2, admin_url = $3, credentials = $4, error_detail = '', updated_at = $5
		WHERE id = $6 AND state = $7`,
		string(tenant.StateReady), storeURL, adminURL, credsJSON, time.Now().UTC(),
		id, string(tenant.StateProvisioning))
	if err != nil {
		return fmt.Errorf("marking record ready: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

// SetFailed records a failure with its human-readable cause. The guard
// on the expected prior state keeps a late writer from clobbering a
// record that has since moved on.
func (r *Registry) SetFailed(ctx context.Context, id string, from tenant.State, detail string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stores SET state = $1, error_detail = $2, updated_at = $3 WHERE id = $4 AND state = $5`,
		string(tenant.StateFailed), detail, time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("marking record failed: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

// Delete removes a record outright. Only called after a teardown's
// namespace deletion succeeded; the name becomes available again.
func (r *Registry) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if n == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

// ListStale returns records sitting in a transient state since before
// the cutoff. The recovery sweep uses this to find operations orphaned
// by a crash.
func (r *Registry) ListStale(ctx context.Context, cutoff time.Time) ([]*tenant.Record, error) {
	var states []string
	for _, s := range tenant.States {
		if s.Transient() {
			states = append(states, string(s))
		}
	}
	query, args, err := sqlx.In(`SELECT `+selectColumns+` FROM stores WHERE state IN (?) AND updated_at < ?`, states, cutoff)
	if err != nil {
		return nil, fmt.Errorf("building stale query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing stale records: %w", err)
	}
	return toRecords(rows)
}

// checkAffected maps a zero-row guarded update to the right sentinel:
// the record is either gone or its state was superseded by another
// writer.
func (r *Registry) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); errors.Is(err, tenant.ErrNotFound) {
		return tenant.ErrNotFound
	}
	return tenant.ErrSuperseded
}

func toRecords(rows []recordRow) ([]*tenant.Record, error) {
	records := make([]*tenant.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// isUniqueViolation detects unique-constraint errors from both
// supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
