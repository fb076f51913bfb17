package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term. Field is the logical name known to the
// ProjectionMap.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses "name,-createdAt" into sort fields. A leading "-"
// sorts descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// binder numbers positional parameters as they are bound.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// predicate renders one WHERE term, binding its arguments.
type predicate func(b *binder) string

// Builder assembles SELECT statements over a ProjectionMap. Conditions whose
// value is nil are skipped, so optional filters chain without branching.
type Builder struct {
	projection  *ProjectionMap
	predicates  []predicate
	sort        []SortField
	defaultSort []SortField
	lock        string
}

// NewBuilder creates a Builder for projection, ordered by defaultSort unless
// OrderByFields overrides it.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, defaultSort: defaultSort}
}

// ForUpdate locks the selected rows of the base table until the enclosing
// transaction ends. Ignored by count and page queries.
func (b *Builder) ForUpdate() *Builder {
	b.lock = " FOR UPDATE OF " + b.projection.Alias()
	return b
}

// OrderByFields replaces the default sort.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// WhereEquals adds field = value. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.Column(field)
	return b.add(func(p *binder) string {
		return col + " = " + p.bind(value)
	})
}

// WhereNull adds field IS NULL, or IS NOT NULL when null is false.
func (b *Builder) WhereNull(field string, null bool) *Builder {
	clause := b.projection.Column(field) + " IS NULL"
	if !null {
		clause = b.projection.Column(field) + " IS NOT NULL"
	}
	return b.add(func(*binder) string { return clause })
}

// WhereSearch matches search case-insensitively against any of fields.
// No-op for a nil or empty search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.Column(f)
	}
	return b.add(func(p *binder) string {
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = col + " ILIKE " + p.bind(pattern)
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
}

// Where adds a raw condition. Each "$%d" in clause is replaced, in order,
// by the placeholder of the matching arg.
func (b *Builder) Where(clause string, args ...any) *Builder {
	return b.add(func(p *binder) string {
		out := clause
		for _, arg := range args {
			out = strings.Replace(out, "$%d", p.bind(arg), 1)
		}
		return out
	})
}

func (b *Builder) add(p predicate) *Builder {
	b.predicates = append(b.predicates, p)
	return b
}

// Build returns the SELECT with conditions, ordering and any lock.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return b.selectFrom() + where + b.orderBy() + b.lock, args
}

// BuildCount returns a COUNT(*) over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage returns one page of the ordered SELECT. page is 1-based.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	where, args := b.where()
	sql := fmt.Sprintf("%s%s%s LIMIT %d OFFSET %d",
		b.selectFrom(), where, b.orderBy(), pageSize, (page-1)*pageSize)
	return sql, args
}

// BuildSingle selects the row whose idField equals id. Other conditions
// are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return b.selectFrom() + " WHERE " + b.projection.Column(idField) + " = $1" + b.lock, []any{id}
}

// BuildSingleOrNull selects at most one row matching the conditions.
func (b *Builder) BuildSingleOrNull() (string, []any) {
	where, args := b.where()
	return b.selectFrom() + where + " LIMIT 1" + b.lock, args
}

func (b *Builder) selectFrom() string {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From()
}

func (b *Builder) where() (string, []any) {
	if len(b.predicates) == 0 {
		return "", nil
	}
	var p binder
	terms := make([]string, len(b.predicates))
	for i, pred := range b.predicates {
		terms[i] = pred(&p)
	}
	return " WHERE " + strings.Join(terms, " AND "), p.args
}

func (b *Builder) orderBy() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, len(fields))
	for i, f := range fields {
		dir := " ASC"
		if f.Descending {
			dir = " DESC"
		}
		terms[i] = b.projection.Column(f.Field) + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
