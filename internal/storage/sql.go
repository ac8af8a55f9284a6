package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/vitrine/internal/transport"
)

// Rows are rendered with to_jsonb so both transports hand callers the same
// JSON shape. Typed comparisons go through jsonb_populate_record, which casts
// each JSON value to the column's own type server-side (uuid, timestamptz,
// text[], ...), so callers can pass plain JSON values without knowing the schema.

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func checkTable(table string) error {
	if !transport.ValidIdentifier(table) {
		return fmt.Errorf("storage: invalid table %q", table)
	}
	return nil
}

// typedRef renders `(jsonb_populate_record(NULL::table, $n::jsonb)).column`.
func typedRef(table, column string, n int) string {
	return fmt.Sprintf("(jsonb_populate_record(NULL::%s, $%d::jsonb)).%s", quoteIdent(table), n, quoteIdent(column))
}

func buildSelect(table string, q transport.Query) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("to_jsonb(t)")
	} else {
		b.WriteString("jsonb_build_object(")
		for i, c := range q.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "'%s', t.%s", c, quoteIdent(c))
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, " FROM %s AS t", quoteIdent(table))

	var args []any
	if len(q.Filters) > 0 {
		filterObj := make(map[string]any, len(q.Filters))
		conds := make([]string, 0, len(q.Filters))
		for _, f := range q.Filters {
			filterObj[f.Column] = f.Value
			conds = append(conds, fmt.Sprintf("t.%s = %s", quoteIdent(f.Column), typedRef(table, f.Column, 1)))
		}
		raw, err := json.Marshal(filterObj)
		if err != nil {
			return "", nil, fmt.Errorf("storage: encode filters: %w", err)
		}
		args = append(args, string(raw))
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if len(q.Order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.Order {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("t." + quoteIdent(o.Column))
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String(), args, nil
}

// objectColumns returns the sorted keys of a JSON object, skipping any in omit.
func objectColumns(row json.RawMessage, omit ...string) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(row, &obj); err != nil {
		return nil, fmt.Errorf("storage: row is not a JSON object: %w", err)
	}
	cols := make([]string, 0, len(obj))
	for k := range obj {
		if contains(omit, k) {
			continue
		}
		if !transport.ValidIdentifier(k) {
			return nil, fmt.Errorf("storage: invalid column %q", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func buildInsert(table string, row json.RawMessage) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	cols, err := objectColumns(row)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s AS t DEFAULT VALUES RETURNING to_jsonb(t)", quoteIdent(table)), nil, nil
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	list := strings.Join(quoted, ", ")
	return fmt.Sprintf(
		"INSERT INTO %s AS t (%s) SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) RETURNING to_jsonb(t)",
		quoteIdent(table), list, list, quoteIdent(table),
	), []any{string(row)}, nil
}

func idParam(id string) (string, error) {
	raw, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return "", fmt.Errorf("storage: encode id: %w", err)
	}
	return string(raw), nil
}

func buildUpdate(table, id string, patch json.RawMessage) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	cols, err := objectColumns(patch, "id")
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("storage: update %s: empty patch", table)
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = r.%s", quoteIdent(c), quoteIdent(c))
	}
	idArg, err := idParam(id)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) AS r WHERE t.%s = %s RETURNING to_jsonb(t)",
		quoteIdent(table), strings.Join(sets, ", "), quoteIdent(table), quoteIdent("id"), typedRef(table, "id", 2),
	), []any{string(patch), idArg}, nil
}

func buildDelete(table, id string) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	idArg, err := idParam(id)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s AS t WHERE t.%s = %s",
		quoteIdent(table), quoteIdent("id"), typedRef(table, "id", 1),
	), []any{idArg}, nil
}
