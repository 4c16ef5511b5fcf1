// Package postgres stores documents as JSONB rows, one table per collection:
// (id uuid primary key, doc jsonb, created_at timestamptz).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	"github.com/ploop3/Natours/pkg/database"
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextFormat = "22P02"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Collection is a store.Collection backed by a PostgreSQL table.
type Collection[T store.Document] struct {
	db    database.DBTX
	table string
}

// New creates a collection over table. It panics on an invalid table name.
func New[T store.Document](db database.DBTX, table string) *Collection[T] {
	if !tableName.MatchString(table) {
		panic(fmt.Sprintf("postgres: invalid table name %q", table))
	}
	return &Collection[T]{db: db, table: table}
}

// Find runs q and returns the projected documents.
func (c *Collection[T]) Find(ctx context.Context, q *query.Query) (_ []store.Record, err error) {
	var b compiler
	proj := b.projection(q.Projection)
	where, err := b.where(q.Filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s ORDER BY %s", proj, c.table, where, b.orderBy(q.Sort))
	if q.Skip > 0 {
		fmt.Fprintf(&sb, " OFFSET %s", b.arg(q.Skip))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", b.arg(q.Limit))
	}
	stmt := sb.String()

	ctx, end := database.TraceQuery(ctx, c.table+".find", stmt)
	defer func() { end(err) }()

	rows, err := c.db.Query(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.table, err)
	}
	defer rows.Close()

	out := []store.Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.table, err)
		}
		var rec store.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.table, err)
	}
	return out, nil
}

// FindOne returns the first document matching f.
func (c *Collection[T]) FindOne(ctx context.Context, f query.Filter) (_ *T, err error) {
	var b compiler
	where, err := b.where(f)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT doc FROM %s WHERE %s LIMIT 1", c.table, where)

	ctx, end := database.TraceQuery(ctx, c.table+".find_one", stmt)
	defer func() { end(err) }()

	var raw []byte
	if err := c.db.QueryRow(ctx, stmt, b.args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find one %s: %w", c.table, err)
	}
	return decode[T](raw)
}

// Insert stores doc with revision 0.
func (c *Collection[T]) Insert(ctx context.Context, doc *T) (err error) {
	rec, err := store.ToRecord(doc)
	if err != nil {
		return err
	}
	rec[query.VersionField] = 0
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.table, err)
	}

	createdAt := time.Now().UTC()
	if s, ok := rec["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil && !t.IsZero() {
			createdAt = t
		}
	}

	stmt := fmt.Sprintf("INSERT INTO %s (id, doc, created_at) VALUES ($1, $2, $3)", c.table)
	ctx, end := database.TraceQuery(ctx, c.table+".insert", stmt)
	defer func() { end(err) }()

	if _, err := c.db.Exec(ctx, stmt, (*doc).GetID(), raw, createdAt); err != nil {
		return c.mapError("insert", err)
	}
	return nil
}

// UpdateOne merges p into the first document matching f and bumps its
// revision.
func (c *Collection[T]) UpdateOne(ctx context.Context, f query.Filter, p store.Patch) (_ *T, err error) {
	set := make(map[string]any, len(p))
	removed := []string{}
	for k, v := range p {
		switch {
		case k == "id":
		case v == nil:
			removed = append(removed, k)
		default:
			set[k] = v
		}
	}
	patch, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}

	b := compiler{args: []any{patch, removed}}
	where, err := b.where(f)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(`UPDATE %[1]s
		SET doc = jsonb_set((doc || $1::jsonb) - $2::text[], '{__v}', to_jsonb(COALESCE((doc->>'__v')::int, 0) + 1))
		WHERE id = (SELECT id FROM %[1]s WHERE %[2]s LIMIT 1)
		RETURNING doc`, c.table, where)

	ctx, end := database.TraceQuery(ctx, c.table+".update_one", stmt)
	defer func() { end(err) }()

	var raw []byte
	if err := c.db.QueryRow(ctx, stmt, b.args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, c.mapError("update", err)
	}
	return decode[T](raw)
}

// DeleteOne removes the first document matching f.
func (c *Collection[T]) DeleteOne(ctx context.Context, f query.Filter) (int64, error) {
	var b compiler
	where, err := b.where(f)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("DELETE FROM %[1]s WHERE id = (SELECT id FROM %[1]s WHERE %[2]s LIMIT 1)", c.table, where)
	return c.exec(ctx, "delete_one", stmt, b.args)
}

// DeleteMany removes every document matching f.
func (c *Collection[T]) DeleteMany(ctx context.Context, f query.Filter) (int64, error) {
	var b compiler
	where, err := b.where(f)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", c.table, where)
	return c.exec(ctx, "delete_many", stmt, b.args)
}

func (c *Collection[T]) exec(ctx context.Context, op, stmt string, args []any) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, c.table+"."+op, stmt)
	defer func() { end(err) }()

	tag, err := c.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, c.mapError(op, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of documents matching f.
func (c *Collection[T]) Count(ctx context.Context, f query.Filter) (_ int64, err error) {
	var b compiler
	where, err := b.where(f)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", c.table, where)

	ctx, end := database.TraceQuery(ctx, c.table+".count", stmt)
	defer func() { end(err) }()

	var n int64
	if err := c.db.QueryRow(ctx, stmt, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	return n, nil
}

// Aggregate groups matching documents by g.By with one GROUP BY query.
// Accumulators ignore non-numeric values.
func (c *Collection[T]) Aggregate(ctx context.Context, g query.Group) (_ []query.GroupResult, err error) {
	var b compiler

	keyExpr := "NULL::jsonb"
	if g.By != "" {
		keyExpr = "doc->" + b.key(g.By)
	}
	cols := []string{keyExpr, "count(*)"}

	type accumulator struct {
		fn     string
		fields []string
	}
	accs := []accumulator{{"avg", g.Avg}, {"sum", g.Sum}, {"min", g.Min}, {"max", g.Max}}
	for _, a := range accs {
		for _, f := range a.fields {
			k := b.key(f)
			cols = append(cols, fmt.Sprintf(
				"%s(CASE WHEN jsonb_typeof(doc->%s) = 'number' THEN (doc->>%s)::numeric END)::float8", a.fn, k, k))
		}
	}

	where, err := b.where(g.Match)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s GROUP BY 1", strings.Join(cols, ", "), c.table, where)

	ctx, end := database.TraceQuery(ctx, c.table+".aggregate", stmt)
	defer func() { end(err) }()

	rows, err := c.db.Query(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", c.table, err)
	}
	defer rows.Close()

	var out []query.GroupResult
	for rows.Next() {
		var (
			rawKey []byte
			count  int64
		)
		values := make([]pgtype.Float8, len(cols)-2)
		dest := []any{&rawKey, &count}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan aggregate %s: %w", c.table, err)
		}

		r := query.GroupResult{Count: count}
		if rawKey != nil {
			if err := json.Unmarshal(rawKey, &r.Key); err != nil {
				return nil, fmt.Errorf("decode group key: %w", err)
			}
		}

		i := 0
		for _, a := range accs {
			if len(a.fields) == 0 {
				continue
			}
			m := make(map[string]float64, len(a.fields))
			for _, f := range a.fields {
				if values[i].Valid {
					m[f] = values[i].Float64
				}
				i++
			}
			switch a.fn {
			case "avg":
				r.Avg = m
			case "sum":
				r.Sum = m
			case "min":
				r.Min = m
			case "max":
				r.Max = m
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate %s: %w", c.table, err)
	}
	return out, nil
}

func (c *Collection[T]) mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s %s (%s): %w", op, c.table, pgErr.ConstraintName, store.ErrConflict)
		case pgInvalidTextFormat:
			return fmt.Errorf("%s %s: %w", op, c.table, store.ErrNotFound)
		}
	}
	return fmt.Errorf("%s %s: %w", op, c.table, err)
}

func decode[T any](raw []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}
