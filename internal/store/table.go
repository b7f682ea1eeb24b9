package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// SchemaError reports every unknown field referenced in a single call, not
// just the first one, so a bad write surfaces its full shape at once.
type SchemaError struct {
	Table  string
	Fields []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unknown fields for table %s: %s", e.Table, strings.Join(e.Fields, ", "))
}

// Table is a typed field registry for one entity plus the statement builder
// on top of it. All INSERT/UPDATE/UPSERT statements the engine issues go
// through a Table; no other component constructs write statements.
type Table struct {
	Name string
	PK   string

	fields map[string]struct{}
}

// NewTable declares a table with its allowed field names. The registry is
// built once at startup and queried by exact key.
func NewTable(name, pk string, fields ...string) *Table {
	t := &Table{
		Name:   name,
		PK:     pk,
		fields: make(map[string]struct{}, len(fields)),
	}
	for _, f := range fields {
		t.fields[f] = struct{}{}
	}
	return t
}

// Fields verifies requested is a subset of the declared fields and returns
// it sorted. The sort keeps generated column lists deterministic, which the
// upsert relies on: both halves must emit the identical list.
func (t *Table) Fields(requested []string) ([]string, error) {
	var unknown []string
	for _, f := range requested {
		if _, ok := t.fields[f]; !ok {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &SchemaError{Table: t.Name, Fields: unknown}
	}
	out := append([]string(nil), requested...)
	sort.Strings(out)
	return out, nil
}

func recordFields(rec map[string]any) []string {
	fields := make([]string, 0, len(rec))
	for f := range rec {
		fields = append(fields, f)
	}
	return fields
}

func quoteFields(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// Params accumulates positional arguments and hands out $n placeholders.
type Params struct {
	args []any
}

// Add registers a value and returns its placeholder.
func (p *Params) Add(v any) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

// Args returns the accumulated argument list.
func (p *Params) Args() []any {
	return p.args
}

// Bind replaces each ? in expr with the next placeholder, registering the
// corresponding value. Predicates are written with ? so callers don't have
// to know how many parameters precede them in the final statement.
func (p *Params) Bind(expr string, values []any) string {
	var b strings.Builder
	n := 0
	for _, r := range expr {
		if r == '?' && n < len(values) {
			b.WriteString(p.Add(values[n]))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Values builds the multi-row VALUES clause for records. The field list is
// derived once, from the first record, and reused for every record in the
// batch: all records in one call must share the same field set. One
// statement carries the whole batch, keeping a bulk insert to a single
// round trip.
func (t *Table) Values(recs []map[string]any, p *Params) (fieldList string, valuesList string, err error) {
	if len(recs) == 0 {
		return "", "", fmt.Errorf("table %s: no records", t.Name)
	}
	fields, err := t.Fields(recordFields(recs[0]))
	if err != nil {
		return "", "", err
	}

	rows := make([]string, len(recs))
	for i, rec := range recs {
		if len(rec) != len(fields) {
			return "", "", fmt.Errorf("table %s: record %d has a different field set", t.Name, i)
		}
		row := make([]string, len(fields))
		for j, f := range fields {
			v, ok := rec[f]
			if !ok {
				return "", "", fmt.Errorf("table %s: record %d is missing field %q", t.Name, i, f)
			}
			row[j] = p.Add(v)
		}
		rows[i] = "(" + strings.Join(row, ", ") + ")"
	}

	return quoteFields(fields), strings.Join(rows, ","), nil
}

// Insert writes records in one statement and returns the generated ids.
func (t *Table) Insert(ctx context.Context, q Querier, recs []map[string]any) ([]int64, error) {
	p := &Params{}
	fields, values, err := t.Values(recs, p)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s %s VALUES %s RETURNING %s",
		t.Name, fields, values, t.PK,
	)
	rows, err := q.Query(ctx, sql, p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", t.Name, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s ids: %w", t.Name, err)
	}
	return ids, nil
}

// setClause builds "f1" = $i, "f2" = $j assignments for values.
func (t *Table) setClause(values map[string]any, p *Params) (string, error) {
	fields, err := t.Fields(recordFields(values))
	if err != nil {
		return "", err
	}
	assigns := make([]string, len(fields))
	for i, f := range fields {
		assigns[i] = fmt.Sprintf(`"%s" = %s`, f, p.Add(values[f]))
	}
	return strings.Join(assigns, ", "), nil
}

// Update applies values to every row matching the where predicate (written
// with ? placeholders) and returns the affected ids.
func (t *Table) Update(ctx context.Context, q Querier, values map[string]any, where string, whereArgs ...any) ([]int64, error) {
	p := &Params{}
	set, err := t.setClause(values, p)
	if err != nil {
		return nil, err
	}
	cond := p.Bind(where, whereArgs)

	sql := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s RETURNING %s",
		t.Name, set, cond, t.PK,
	)
	rows, err := q.Query(ctx, sql, p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", t.Name, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", t.Name, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s ids: %w", t.Name, err)
	}
	return ids, nil
}

// UpsertSQL renders the two statements of an upsert: an UPDATE, then an
// INSERT whose selected values pass a WHERE NOT EXISTS check against the
// same predicate. Both halves derive their column list from the same sorted
// field set; if the lists ever diverged the statements would silently write
// different shapes, so the derivation happens exactly once per half from
// identical input.
func (t *Table) UpsertSQL(values map[string]any, where string, whereArgs []any) (updateSQL string, updateArgs []any, insertSQL string, insertArgs []any, err error) {
	up := &Params{}
	set, err := t.setClause(values, up)
	if err != nil {
		return "", nil, "", nil, err
	}
	upWhere := up.Bind(where, whereArgs)
	updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE %s", t.Name, set, upWhere)
	updateArgs = up.Args()

	ins := &Params{}
	fieldList, valuesList, err := t.Values([]map[string]any{values}, ins)
	if err != nil {
		return "", nil, "", nil, err
	}
	// Strip the surrounding parens: SELECT takes a bare expression list.
	selectList := valuesList[1 : len(valuesList)-1]
	insWhere := ins.Bind(where, whereArgs)
	insertSQL = fmt.Sprintf(
		"INSERT INTO %s %s SELECT %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)",
		t.Name, fieldList, selectList, t.Name, insWhere,
	)
	insertArgs = ins.Args()
	return updateSQL, updateArgs, insertSQL, insertArgs, nil
}

// Upsert performs update-then-insert-if-absent as a single two-statement
// batch, trading strict atomicity across isolation levels for one round
// trip. Two concurrent upserts on the same predicate can race; last write
// wins (documented limitation).
func (t *Table) Upsert(ctx context.Context, q Querier, values map[string]any, where string, whereArgs ...any) error {
	updateSQL, updateArgs, insertSQL, insertArgs, err := t.UpsertSQL(values, where, whereArgs)
	if err != nil {
		return err
	}

	b := &pgx.Batch{}
	b.Queue(updateSQL, updateArgs...)
	b.Queue(insertSQL, insertArgs...)

	br := q.SendBatch(ctx, b)
	defer br.Close()
	for i := 0; i < 2; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert %s: %w", t.Name, err)
		}
	}
	return nil
}
