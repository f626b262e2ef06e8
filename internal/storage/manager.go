package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
)

// TimestampLayout is how created_time/updated_time are stored.
const TimestampLayout = time.RFC3339Nano

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ScanFunc reads one entity from a row selected with Schema.ColumnNames.
type ScanFunc[T any] func(rowScanner) (T, error)

// DeriveFunc computes derived columns before a write. creating is false
// for updates, where values only holds the fields being changed.
type DeriveFunc func(values map[string]any, creating bool, now time.Time) error

// Manager implements create/get/update/delete/query for one entity kind.
type Manager[T any] struct {
	db      *sql.DB
	schema  core.Schema
	scan    ScanFunc[T]
	derive  DeriveFunc
	now     func() time.Time
	newCode func() string
	logger  *applog.Logger
}

func newManager[T any](db *sql.DB, schema core.Schema, scan ScanFunc[T], logger *applog.Logger) *Manager[T] {
	return &Manager[T]{
		db:      db,
		schema:  schema,
		scan:    scan,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: uuid.NewString,
		logger:  logger.With("kind", string(schema.Kind)),
	}
}

// Schema returns the field schema of the managed kind.
func (m *Manager[T]) Schema() core.Schema { return m.schema }

// Create inserts a new entity and returns it with its generated identity.
func (m *Manager[T]) Create(ctx context.Context, fields core.Fields) (T, error) {
	return m.CreateIn(ctx, nil, fields)
}

// CreateIn is Create inside tx. A nil tx gets a transaction of its own.
func (m *Manager[T]) CreateIn(ctx context.Context, tx *Tx, fields core.Fields) (T, error) {
	var zero T
	n, err := m.schema.Normalize(fields)
	if err != nil {
		return zero, err
	}
	m.warnSkipped(ctx, applog.OpCreate, n.Skipped)

	values := n.Values
	for _, c := range m.schema.Columns {
		if !c.Generated {
			continue
		}
		if v, ok := values[c.Name]; !ok || v == nil {
			values[c.Name] = m.newCode()
		}
	}

	now := m.now()
	if m.derive != nil {
		if err := m.derive(values, true, now); err != nil {
			return zero, err
		}
	}
	if err := m.schema.CheckRequired(values); err != nil {
		return zero, err
	}

	cols := []string{core.FieldCreatedTime, core.FieldUpdatedTime}
	args := []any{now.Format(TimestampLayout), now.Format(TimestampLayout)}
	for _, c := range m.schema.Columns {
		if v, ok := values[c.Name]; ok {
			cols = append(cols, c.Name)
			args = append(args, v)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(m.schema.Table()), joinIdents(cols), placeholders(len(cols)))

	var out T
	err = m.inTx(ctx, tx, func(tx *sql.Tx) error {
		if err := m.checkRefs(ctx, tx, values); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return m.mapErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		created, err := m.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if created == nil {
			return fmt.Errorf("%s id=%d vanished after insert", m.schema.Kind, id)
		}
		out = *created
		return nil
	})
	if err != nil {
		return zero, err
	}

	m.logger.DebugContext(ctx, "Entity created", applog.FieldOperation, applog.OpCreate)
	return out, nil
}

// Get returns the entity with the given id, or nil when there is none.
func (m *Manager[T]) Get(ctx context.Context, id int64) (*T, error) {
	row := m.db.QueryRowContext(ctx, m.selectSQL()+" WHERE id = ?", id)
	v, err := m.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s id=%d: %w", m.schema.Kind, id, err)
	}
	return &v, nil
}

// Update overwrites the mutable fields present in fields.
func (m *Manager[T]) Update(ctx context.Context, id int64, fields core.Fields) (T, error) {
	return m.UpdateIn(ctx, nil, id, fields)
}

// UpdateIn is Update inside tx. A nil tx gets a transaction of its own.
func (m *Manager[T]) UpdateIn(ctx context.Context, tx *Tx, id int64, fields core.Fields) (T, error) {
	var zero T
	n, err := m.schema.Normalize(fields)
	if err != nil {
		return zero, err
	}
	m.warnSkipped(ctx, applog.OpUpdate, n.Skipped)

	values := n.Values
	now := m.now()
	if m.derive != nil {
		if err := m.derive(values, false, now); err != nil {
			return zero, err
		}
	}

	sets := []string{quoteIdent(core.FieldUpdatedTime) + " = ?"}
	args := []any{now.Format(TimestampLayout)}
	for _, c := range m.schema.Columns {
		if v, ok := values[c.Name]; ok {
			sets = append(sets, quoteIdent(c.Name)+" = ?")
			args = append(args, v)
		}
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		quoteIdent(m.schema.Table()), strings.Join(sets, ", "))

	var out T
	err = m.inTx(ctx, tx, func(tx *sql.Tx) error {
		existing, err := m.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return core.NotFoundID(m.schema.Kind, id)
		}
		if err := m.checkRefs(ctx, tx, values); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return m.mapErr(err)
		}
		updated, err := m.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out = *updated
		return nil
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

// Delete removes the entity and returns its last state.
func (m *Manager[T]) Delete(ctx context.Context, id int64) (T, error) {
	var out T
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := m.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return core.NotFoundID(m.schema.Kind, id)
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(m.schema.Table()))
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return m.mapErr(err)
		}
		out = *existing
		return nil
	})
	return out, err
}

// Query returns entities matching every filter, in insertion order.
func (m *Manager[T]) Query(ctx context.Context, q core.Query) ([]T, error) {
	return m.QueryIn(ctx, nil, q)
}

// QueryIn is Query inside tx. A nil tx reads outside any transaction.
func (m *Manager[T]) QueryIn(ctx context.Context, tx *Tx, q core.Query) ([]T, error) {
	filters, err := m.schema.NormalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	for _, name := range core.Fields(filters).Keys() {
		v := filters[name]
		if v == nil {
			where = append(where, quoteIdent(name)+" IS NULL")
			continue
		}
		where = append(where, quoteIdent(name)+" = ?")
		args = append(args, v)
	}

	query := m.selectSQL()
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = core.DefaultQueryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var db queryer = m.db
	if tx != nil {
		db = tx.tx
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", m.schema.Kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := m.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.schema.Kind, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindOne returns the first entity matching filters, or nil.
func (m *Manager[T]) FindOne(ctx context.Context, filters core.Fields) (*T, error) {
	return m.FindOneIn(ctx, nil, filters)
}

// FindOneIn is FindOne inside tx.
func (m *Manager[T]) FindOneIn(ctx context.Context, tx *Tx, filters core.Fields) (*T, error) {
	found, err := m.QueryIn(ctx, tx, core.Query{Limit: 1, Filters: filters})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (m *Manager[T]) getTx(ctx context.Context, tx *sql.Tx, id int64) (*T, error) {
	row := tx.QueryRowContext(ctx, m.selectSQL()+" WHERE id = ?", id)
	v, err := m.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s id=%d: %w", m.schema.Kind, id, err)
	}
	return &v, nil
}

// checkRefs turns dangling foreign keys into validation errors before the
// database gets a chance to reject them.
func (m *Manager[T]) checkRefs(ctx context.Context, tx *sql.Tx, values map[string]any) error {
	for _, c := range m.schema.Columns {
		if c.Ref == "" {
			continue
		}
		v, ok := values[c.Name]
		if !ok || v == nil {
			continue
		}
		var one int
		query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", quoteIdent(string(c.Ref)))
		err := tx.QueryRowContext(ctx, query, v).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NewValidationError(m.schema.Kind, c.Name, fmt.Sprintf("references missing %s id=%v", c.Ref, v))
		}
		if err != nil {
			return fmt.Errorf("check %s reference: %w", c.Name, err)
		}
	}
	return nil
}

func (m *Manager[T]) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return m.mapErr(err)
	}
	return nil
}

// inTx runs fn inside tx, or inside a transaction of its own when tx is nil.
func (m *Manager[T]) inTx(ctx context.Context, tx *Tx, fn func(*sql.Tx) error) error {
	if tx != nil {
		return fn(tx.tx)
	}
	return m.withTx(ctx, fn)
}

func (m *Manager[T]) mapErr(err error) error {
	return mapConstraintError(m.schema.Kind, err)
}

func (m *Manager[T]) warnSkipped(ctx context.Context, op string, skipped []string) {
	if len(skipped) == 0 {
		return
	}
	m.logger.WarnContext(ctx, "Ignoring read-only fields",
		applog.FieldOperation, op,
		"fields", skipped)
}

func (m *Manager[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", joinIdents(m.schema.ColumnNames()), quoteIdent(m.schema.Table()))
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
