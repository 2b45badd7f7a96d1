package store

import (
	"context"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresDriver talks to Postgres directly. It is used when the schema is
// self-hosted rather than behind the Supabase gateway.
type PostgresDriver struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewPostgresDriver wraps an open connection pool.
func NewPostgresDriver(db *sqlx.DB) *PostgresDriver {
	return &PostgresDriver{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// DB exposes the pool for migrations and pool metrics.
func (d *PostgresDriver) DB() *sqlx.DB {
	return d.db
}

// Select implements Driver.
func (d *PostgresDriver) Select(ctx context.Context, q Query, dest any) error {
	qb := d.sb.Select("*").From(pq.QuoteIdentifier(q.Table))
	if len(q.Filters) > 0 {
		qb = qb.Where(toSqlizer(q.Filters))
	}
	if q.Options.OrderBy != "" {
		dir := "ASC"
		if q.Options.Descending {
			dir = "DESC"
		}
		qb = qb.OrderBy(pq.QuoteIdentifier(q.Options.OrderBy) + " " + dir + " NULLS LAST")
	}
	offset, limit := q.Options.window()
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	if offset > 0 {
		qb = qb.Offset(uint64(offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	return d.db.SelectContext(ctx, dest, query, args...)
}

// Count implements Driver.
func (d *PostgresDriver) Count(ctx context.Context, table string, f Filters) (int, error) {
	qb := d.sb.Select("COUNT(*)").From(pq.QuoteIdentifier(table))
	if len(f) > 0 {
		qb = qb.Where(toSqlizer(f))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := d.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// Insert implements Driver. All rows go into one INSERT statement, so they are
// stored atomically. Columns absent from a row take their DEFAULT.
func (d *PostgresDriver) Insert(ctx context.Context, table string, rows []map[string]any, dest any) error {
	colSet := map[string]struct{}{}
	for _, row := range rows {
		for col := range row {
			colSet[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
	}

	ib := d.sb.Insert(pq.QuoteIdentifier(table)).Columns(quoted...)
	for _, row := range rows {
		vals := make([]any, len(cols))
		for i, col := range cols {
			v, ok := row[col]
			if !ok {
				vals[i] = sq.Expr("DEFAULT")
				continue
			}
			vals[i] = sqlValue(v)
		}
		ib = ib.Values(vals...)
	}

	query, args, err := ib.Suffix("RETURNING *").ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return d.db.SelectContext(ctx, dest, query, args...)
}

// Update implements Driver.
func (d *PostgresDriver) Update(ctx context.Context, table string, f Filters, set map[string]any, dest any) error {
	clauses := make(map[string]any, len(set))
	for col, v := range set {
		clauses[pq.QuoteIdentifier(col)] = sqlValue(v)
	}
	ub := d.sb.Update(pq.QuoteIdentifier(table)).SetMap(clauses)
	if len(f) > 0 {
		ub = ub.Where(toSqlizer(f))
	}
	query, args, err := ub.Suffix("RETURNING *").ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return d.db.SelectContext(ctx, dest, query, args...)
}

// Delete implements Driver.
func (d *PostgresDriver) Delete(ctx context.Context, table string, f Filters, dest any) error {
	db := d.sb.Delete(pq.QuoteIdentifier(table))
	if len(f) > 0 {
		db = db.Where(toSqlizer(f))
	}
	query, args, err := db.Suffix("RETURNING *").ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return d.db.SelectContext(ctx, dest, query, args...)
}

// Close implements Driver.
func (d *PostgresDriver) Close() error {
	return d.db.Close()
}

func toSqlizer(f Filters) sq.Sqlizer {
	and := make(sq.And, 0, len(f))
	for _, c := range f {
		and = append(and, condSqlizer(c))
	}
	return and
}

func condSqlizer(c Condition) sq.Sqlizer {
	if c.IsGroup() {
		or := make(sq.Or, 0, len(c.Any))
		for _, sub := range c.Any {
			or = append(or, condSqlizer(sub))
		}
		return or
	}
	col := pq.QuoteIdentifier(c.Field)
	switch c.Op {
	case OpNeq:
		return sq.NotEq{col: sqlValue(c.Value)}
	case OpContains:
		return sq.Expr(col+" @> ?", pq.Array(elements(c.Value)))
	default:
		return sq.Eq{col: sqlValue(c.Value)}
	}
}

// sqlValue keeps string slices from being expanded into IN lists.
func sqlValue(v any) any {
	if s, ok := v.([]string); ok {
		return pq.Array(s)
	}
	return v
}
