// Package store is a typed table client over a hosted Postgres store. A Table
// binds a row type to a table name and exposes read, write, and count
// operations; a Driver carries them to PostgREST, Postgres, or memory.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/resourcehub/resourcehub/internal/telemetry"
)

// Metric statuses recorded in store_operations_total.
const (
	statusOK       = "ok"
	statusNotFound = "not_found"
	statusInvalid  = "invalid"
	statusError    = "error"
)

// Table is a typed client for one table. T is the row type and N the insert
// shape (T without the store-assigned columns). Both are mapped through their
// db tags.
type Table[T any, N any] struct {
	driver Driver
	name   string
	schema *Schema
}

// NewTable binds row type T to the named table.
func NewTable[T any, N any](driver Driver, name string) *Table[T, N] {
	return &Table[T, N]{
		driver: driver,
		name:   name,
		schema: SchemaOf[T](),
	}
}

// Name returns the table name.
func (t *Table[T, N]) Name() string {
	return t.name
}

// GetAll returns every row, ordered and windowed by opts.
func (t *Table[T, N]) GetAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	return t.GetWhere(ctx, nil, opts)
}

// GetByID returns the single row with the given id. Zero or several matches
// yield ErrNotFound.
func (t *Table[T, N]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := t.selectRows(ctx, "get", Where(Eq("id", id)), QueryOptions{})
	if err != nil {
		return zero, err
	}
	return t.one("get", rows)
}

// GetWhere returns rows matching every filter.
func (t *Table[T, N]) GetWhere(ctx context.Context, f Filters, opts QueryOptions) ([]T, error) {
	return t.selectRows(ctx, "select", f, opts)
}

// GetByCategory returns rows whose category array contains tag.
func (t *Table[T, N]) GetByCategory(ctx context.Context, tag string) ([]T, error) {
	return t.GetWhere(ctx, Where(Contains("category", tag)), QueryOptions{})
}

// Create inserts one row and returns it as stored.
func (t *Table[T, N]) Create(ctx context.Context, item N) (T, error) {
	var zero T
	rows, err := t.insert(ctx, "create", []N{item})
	if err != nil {
		return zero, err
	}
	return t.one("create", rows)
}

// CreateMany inserts all items in a single request; either every row is
// stored or none is.
func (t *Table[T, N]) CreateMany(ctx context.Context, items ...N) ([]T, error) {
	if len(items) == 0 {
		return []T{}, nil
	}
	return t.insert(ctx, "create_many", items)
}

// Update applies changes to the row with the given id and returns the
// updated row.
func (t *Table[T, N]) Update(ctx context.Context, id string, c Changes) (T, error) {
	var zero T
	rows, err := t.update(ctx, "update", Where(Eq("id", id)), c)
	if err != nil {
		return zero, err
	}
	return t.one("update", rows)
}

// UpdateWhere applies changes to every row matching f and returns them.
func (t *Table[T, N]) UpdateWhere(ctx context.Context, f Filters, c Changes) ([]T, error) {
	return t.update(ctx, "update_where", f, c)
}

// Delete removes the row with the given id and returns it as it was.
func (t *Table[T, N]) Delete(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := t.delete(ctx, "delete", Where(Eq("id", id)))
	if err != nil {
		return zero, err
	}
	return t.one("delete", rows)
}

// DeleteWhere removes every row matching f and returns the removed rows. No
// match yields an empty slice.
func (t *Table[T, N]) DeleteWhere(ctx context.Context, f Filters) ([]T, error) {
	return t.delete(ctx, "delete_where", f)
}

// DeleteAll empties the table. The filter id <> nil-uuid matches every row and
// keeps hosted stores that refuse unfiltered deletes satisfied.
func (t *Table[T, N]) DeleteAll(ctx context.Context) ([]T, error) {
	return t.DeleteWhere(ctx, Where(Neq("id", uuid.Nil.String())))
}

// Count returns the number of rows matching f.
func (t *Table[T, N]) Count(ctx context.Context, f Filters) (int, error) {
	if err := t.schema.checkFilters(f); err != nil {
		return 0, t.invalid("count", err)
	}
	n, err := t.driver.Count(ctx, t.name, f)
	if err != nil {
		return 0, t.failed("count", err)
	}
	t.record("count", statusOK)
	return n, nil
}

func (t *Table[T, N]) selectRows(ctx context.Context, op string, f Filters, opts QueryOptions) ([]T, error) {
	if err := t.schema.checkFilters(f); err != nil {
		return nil, t.invalid(op, err)
	}
	if err := t.schema.checkOptions(opts); err != nil {
		return nil, t.invalid(op, err)
	}
	var rows []T
	if err := t.driver.Select(ctx, Query{Table: t.name, Filters: f, Options: opts}, &rows); err != nil {
		return nil, t.failed(op, err)
	}
	if op == "select" {
		t.record(op, statusOK)
	}
	return nonNil(rows), nil
}

func (t *Table[T, N]) insert(ctx context.Context, op string, items []N) ([]T, error) {
	values := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, err := t.schema.values(item)
		if err != nil {
			return nil, t.invalid(op, err)
		}
		values = append(values, row)
	}
	var rows []T
	if err := t.driver.Insert(ctx, t.name, values, &rows); err != nil {
		return nil, t.failed(op, err)
	}
	if op == "create_many" {
		t.record(op, statusOK)
	}
	return nonNil(rows), nil
}

func (t *Table[T, N]) update(ctx context.Context, op string, f Filters, c Changes) ([]T, error) {
	if err := t.schema.checkFilters(f); err != nil {
		return nil, t.invalid(op, err)
	}
	set, err := t.schema.changes(c)
	if err != nil {
		return nil, t.invalid(op, err)
	}
	if len(set) == 0 {
		return nil, t.invalid(op, errors.New("no writable fields to update"))
	}
	var rows []T
	if err := t.driver.Update(ctx, t.name, f, set, &rows); err != nil {
		return nil, t.failed(op, err)
	}
	if op == "update_where" {
		t.record(op, statusOK)
	}
	return nonNil(rows), nil
}

func (t *Table[T, N]) delete(ctx context.Context, op string, f Filters) ([]T, error) {
	if err := t.schema.checkFilters(f); err != nil {
		return nil, t.invalid(op, err)
	}
	var rows []T
	if err := t.driver.Delete(ctx, t.name, f, &rows); err != nil {
		return nil, t.failed(op, err)
	}
	if op == "delete_where" {
		t.record(op, statusOK)
	}
	return nonNil(rows), nil
}

// one enforces exact-one semantics and records the outcome.
func (t *Table[T, N]) one(op string, rows []T) (T, error) {
	var zero T
	if len(rows) != 1 {
		t.record(op, statusNotFound)
		return zero, fmt.Errorf("store: %s %s: %w", op, t.name, ErrNotFound)
	}
	t.record(op, statusOK)
	return rows[0], nil
}

func (t *Table[T, N]) invalid(op string, err error) error {
	t.record(op, statusInvalid)
	return fmt.Errorf("store: %s %s: %w", op, t.name, err)
}

func (t *Table[T, N]) failed(op string, err error) error {
	t.record(op, statusError)
	return &Error{Op: op, Table: t.name, Err: err}
}

func (t *Table[T, N]) record(op, status string) {
	telemetry.StoreOperationsTotal.WithLabelValues(t.name, op, status).Inc()
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
