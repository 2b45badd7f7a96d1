package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"

	"github.com/resourcehub/resourcehub/internal/safego"
)

// PostgRESTDriver talks to a hosted Supabase project through its REST gateway.
type PostgRESTDriver struct {
	client  *supabase.Client
	timeout time.Duration
}

// NewPostgRESTDriver connects to the project at url with the anonymous key.
// timeout bounds every request; zero means only the caller's context applies.
func NewPostgRESTDriver(url, anonKey, schema string, timeout time.Duration) (*PostgRESTDriver, error) {
	client, err := supabase.NewClient(url, anonKey, &supabase.ClientOptions{Schema: schema})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &PostgRESTDriver{client: client, timeout: timeout}, nil
}

type restResponse struct {
	body  []byte
	count int64
}

// execute runs a built request. postgrest-go has no context support, so the
// request is awaited in a goroutine; on cancellation the caller returns
// immediately while the request finishes in the background.
func (d *PostgRESTDriver) execute(ctx context.Context, fb *postgrest.FilterBuilder) (restResponse, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return safego.Await(ctx, func() (restResponse, error) {
		body, count, err := fb.Execute()
		return restResponse{body: body, count: count}, err
	})
}

func (d *PostgRESTDriver) executeInto(ctx context.Context, fb *postgrest.FilterBuilder, dest any) error {
	resp, err := d.execute(ctx, fb)
	if err != nil {
		return err
	}
	if len(resp.body) == 0 {
		return decodeRows(nil, dest)
	}
	if err := json.Unmarshal(resp.body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Select implements Driver.
func (d *PostgRESTDriver) Select(ctx context.Context, q Query, dest any) error {
	fb := applyFilters(d.client.From(q.Table).Select("*", "", false), q.Filters)
	if q.Options.OrderBy != "" {
		fb = fb.Order(q.Options.OrderBy, &postgrest.OrderOpts{Ascending: !q.Options.Descending})
	}
	offset, limit := q.Options.window()
	switch {
	case offset > 0:
		fb = fb.Range(offset, offset+limit-1, "")
	case limit > 0:
		fb = fb.Limit(limit, "")
	}
	return d.executeInto(ctx, fb, dest)
}

// Count implements Driver with a HEAD request and an exact count.
func (d *PostgRESTDriver) Count(ctx context.Context, table string, f Filters) (int, error) {
	fb := applyFilters(d.client.From(table).Select("*", "exact", true), f)
	resp, err := d.execute(ctx, fb)
	if err != nil {
		return 0, err
	}
	return int(resp.count), nil
}

// Insert implements Driver. All rows go in one request, which PostgREST runs
// in a single transaction.
func (d *PostgRESTDriver) Insert(ctx context.Context, table string, rows []map[string]any, dest any) error {
	fb := d.client.From(table).Insert(rows, false, "", "representation", "")
	return d.executeInto(ctx, fb, dest)
}

// Update implements Driver.
func (d *PostgRESTDriver) Update(ctx context.Context, table string, f Filters, set map[string]any, dest any) error {
	fb := applyFilters(d.client.From(table).Update(set, "representation", ""), f)
	return d.executeInto(ctx, fb, dest)
}

// Delete implements Driver.
func (d *PostgRESTDriver) Delete(ctx context.Context, table string, f Filters, dest any) error {
	fb := applyFilters(d.client.From(table).Delete("representation", ""), f)
	return d.executeInto(ctx, fb, dest)
}

// Close implements Driver.
func (d *PostgRESTDriver) Close() error {
	return nil
}

// applyFilters adds f to the request. The client keys filters by column, so a
// second condition on the same column (or a second Or group) is moved into an
// and=(...) expression instead of overwriting the first.
func applyFilters(fb *postgrest.FilterBuilder, f Filters) *postgrest.FilterBuilder {
	seen := map[string]bool{}
	var extra []string
	for _, c := range f {
		if c.IsGroup() {
			if seen["or"] {
				extra = append(extra, logicExpr(c))
				continue
			}
			seen["or"] = true
			fb = fb.Or(joinExprs(c.Any), "")
			continue
		}
		if seen[c.Field] {
			extra = append(extra, logicExpr(c))
			continue
		}
		seen[c.Field] = true
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				fb = fb.Is(c.Field, "null")
			} else {
				fb = fb.Eq(c.Field, formatValue(c.Value))
			}
		case OpNeq:
			if c.Value == nil {
				fb = fb.Not(c.Field, "is", "null")
			} else {
				fb = fb.Neq(c.Field, formatValue(c.Value))
			}
		case OpContains:
			fb = fb.Contains(c.Field, elements(c.Value))
		}
	}
	if len(extra) > 0 {
		fb = fb.And(strings.Join(extra, ","), "")
	}
	return fb
}

// logicExpr renders c in PostgREST logic-tree syntax (column.op.value).
func logicExpr(c Condition) string {
	if c.IsGroup() {
		return "or(" + joinExprs(c.Any) + ")"
	}
	switch c.Op {
	case OpEq:
		if c.Value == nil {
			return c.Field + ".is.null"
		}
		return c.Field + ".eq." + quoteReserved(formatValue(c.Value))
	case OpNeq:
		if c.Value == nil {
			return c.Field + ".not.is.null"
		}
		return c.Field + ".neq." + quoteReserved(formatValue(c.Value))
	case OpContains:
		return c.Field + ".cs." + arrayLiteral(elements(c.Value))
	default:
		return c.Field + "." + string(c.Op) + "." + quoteReserved(formatValue(c.Value))
	}
}

func joinExprs(conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = logicExpr(c)
	}
	return strings.Join(parts, ",")
}
