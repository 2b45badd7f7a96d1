package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// createdAtLayout keeps a fixed width so timestamps sort lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000Z07:00"

// MemoryDriver keeps tables in process memory. Rows are held in their JSON
// form so filtering behaves the same whatever the Go row type. It assigns id
// and created_at on insert, like the column defaults of the real schema.
type MemoryDriver struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
	now    func() time.Time
	last   time.Time
}

// NewMemoryDriver returns an empty in-memory store.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		tables: map[string][]map[string]any{},
		now:    time.Now,
	}
}

// Select implements Driver.
func (d *MemoryDriver) Select(ctx context.Context, q Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	rows, err := d.matching(q.Table, q.Filters)
	d.mu.RUnlock()
	if err != nil {
		return err
	}

	if q.Options.OrderBy != "" {
		col, desc := q.Options.OrderBy, q.Options.Descending
		sort.SliceStable(rows, func(i, j int) bool {
			return lessValue(rows[i][col], rows[j][col], desc)
		})
	}

	offset, limit := q.Options.window()
	if offset >= len(rows) {
		rows = nil
	} else {
		rows = rows[offset:]
		if limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}
	}
	return decodeRows(rows, dest)
}

// Count implements Driver.
func (d *MemoryDriver) Count(ctx context.Context, table string, f Filters) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows, err := d.matching(table, f)
	return len(rows), err
}

// Insert implements Driver. Either every row is stored or none is.
func (d *MemoryDriver) Insert(ctx context.Context, table string, rows []map[string]any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		norm, err := normalizeRow(row)
		if err != nil {
			return err
		}
		norm["id"] = uuid.NewString()
		norm["created_at"] = d.nextTimestamp().Format(createdAtLayout)
		stored = append(stored, norm)
	}
	d.tables[table] = append(d.tables[table], stored...)
	return decodeRows(stored, dest)
}

// Update implements Driver.
func (d *MemoryDriver) Update(ctx context.Context, table string, f Filters, set map[string]any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	changes, err := normalizeRow(set)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var updated []map[string]any
	for _, row := range d.tables[table] {
		ok, err := matchAll(row, f)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for k, v := range changes {
			row[k] = v
		}
		updated = append(updated, row)
	}
	return decodeRows(updated, dest)
}

// Delete implements Driver.
func (d *MemoryDriver) Delete(ctx context.Context, table string, f Filters, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var kept, removed []map[string]any
	for _, row := range d.tables[table] {
		ok, err := matchAll(row, f)
		if err != nil {
			return err
		}
		if ok {
			removed = append(removed, row)
		} else {
			kept = append(kept, row)
		}
	}
	d.tables[table] = kept
	return decodeRows(removed, dest)
}

// Close implements Driver.
func (d *MemoryDriver) Close() error {
	return nil
}

// nextTimestamp returns a strictly increasing UTC time so newest-first
// ordering is stable for rows created in the same microsecond.
func (d *MemoryDriver) nextTimestamp() time.Time {
	ts := d.now().UTC().Truncate(time.Microsecond)
	if !ts.After(d.last) {
		ts = d.last.Add(time.Microsecond)
	}
	d.last = ts
	return ts
}

// matching returns shallow copies of the rows of table that satisfy f.
// Callers must hold d.mu.
func (d *MemoryDriver) matching(table string, f Filters) ([]map[string]any, error) {
	var out []map[string]any
	for _, row := range d.tables[table] {
		ok, err := matchAll(row, f)
		if err != nil {
			return nil, err
		}
		if ok {
			cp := make(map[string]any, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func matchAll(row map[string]any, f Filters) (bool, error) {
	for _, c := range f {
		ok, err := match(row, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func match(row map[string]any, c Condition) (bool, error) {
	if c.IsGroup() {
		for _, sub := range c.Any {
			ok, err := match(row, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	got := row[c.Field]
	want, err := normalize(c.Value)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case OpEq:
		if want == nil {
			return got == nil, nil
		}
		return got != nil && reflect.DeepEqual(got, want), nil
	case OpNeq:
		// NULL <> x is not true in SQL either.
		if want == nil {
			return got != nil, nil
		}
		return got != nil && !reflect.DeepEqual(got, want), nil
	case OpContains:
		have, _ := got.([]any)
		for _, w := range elements(c.Value) {
			found := false
			for _, h := range have {
				if h == w {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", c.Op)
	}
}

// lessValue orders JSON scalars; nulls always sort last.
func lessValue(a, b any, desc bool) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	var cmp int
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		cmp = strings.Compare(x, y)
	case float64:
		y, _ := b.(float64)
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	case bool:
		y, _ := b.(bool)
		switch {
		case !x && y:
			cmp = -1
		case x && !y:
			cmp = 1
		}
	default:
		cmp = strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
	if desc {
		return cmp > 0
	}
	return cmp < 0
}

// normalize converts a Go value to its JSON-decoded form.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func normalizeRow(row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for k, v := range row {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func decodeRows(rows []map[string]any, dest any) error {
	if rows == nil {
		rows = []map[string]any{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}
