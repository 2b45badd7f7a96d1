package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx/reflectx"
)

var mapper = reflectx.NewMapper("db")

// readOnlyColumns are always assigned by the store and never written by clients.
var readOnlyColumns = map[string]struct{}{
	"id":         {},
	"created_at": {},
	"updated_at": {},
}

// Schema is the set of column names of a row type, taken from its db tags.
type Schema struct {
	name    string
	columns map[string]struct{}
}

// SchemaOf derives the schema of row type T. T must be a struct.
func SchemaOf[T any]() *Schema {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return schemaOfType(t)
}

func schemaOfType(t reflect.Type) *Schema {
	t = reflectx.Deref(t)
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("store: row type %s is not a struct", t))
	}
	s := &Schema{name: t.Name(), columns: map[string]struct{}{}}
	for name := range mapper.TypeMap(t).Names {
		if strings.Contains(name, ".") {
			continue
		}
		s.columns[name] = struct{}{}
	}
	return s
}

// Has reports whether column is part of the schema.
func (s *Schema) Has(column string) bool {
	_, ok := s.columns[column]
	return ok
}

// Columns returns the column names in lexical order.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.columns))
	for c := range s.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func (s *Schema) checkField(field string) error {
	if !s.Has(field) {
		return fmt.Errorf("%w: %s has no column %q", ErrUnknownField, s.name, field)
	}
	return nil
}

func (s *Schema) checkFilters(f Filters) error {
	for _, field := range f.fields() {
		if err := s.checkField(field); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) checkOptions(o QueryOptions) error {
	if o.OrderBy == "" {
		return nil
	}
	return s.checkField(o.OrderBy)
}

// changes validates c and returns it as a column map with read-only columns removed.
func (s *Schema) changes(c Changes) (map[string]any, error) {
	for _, ch := range c {
		if err := s.checkField(ch.Field); err != nil {
			return nil, err
		}
	}
	m := c.Map()
	for col := range readOnlyColumns {
		delete(m, col)
	}
	return m, nil
}

// values reads the db-tagged fields of an insert value into a column map,
// dropping read-only columns and rejecting columns the schema lacks.
func (s *Schema) values(item any) (map[string]any, error) {
	v := reflect.Indirect(reflect.ValueOf(item))
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("store: insert value %T is not a struct", item)
	}
	row := map[string]any{}
	// FieldMap would allocate nil pointers, turning a NULL into a zero value.
	for name, fi := range mapper.TypeMap(v.Type()).Names {
		if strings.Contains(name, ".") {
			continue
		}
		if _, ro := readOnlyColumns[name]; ro {
			continue
		}
		if err := s.checkField(name); err != nil {
			return nil, err
		}
		row[name] = reflectx.FieldByIndexesReadOnly(v, fi.Index).Interface()
	}
	return row, nil
}
