package store

import "context"

// Driver executes table operations against one concrete store. dest is always a
// pointer to a slice of the row type; drivers fill it with the affected rows.
//
// Drivers do not validate field names; Table does that before calling them.
type Driver interface {
	Select(ctx context.Context, q Query, dest any) error
	Count(ctx context.Context, table string, f Filters) (int, error)
	Insert(ctx context.Context, table string, rows []map[string]any, dest any) error
	Update(ctx context.Context, table string, f Filters, set map[string]any, dest any) error
	Delete(ctx context.Context, table string, f Filters, dest any) error
	Close() error
}
