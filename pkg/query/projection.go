// Package query builds parameterized SELECT statements from a mapping of
// logical field names to qualified columns.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps logical field names to alias-qualified columns of a base
// table and its joins.
type ProjectionMap struct {
	schema     string
	table      string
	alias      string
	joins      []join
	columns    map[string]string
	columnList []string
	current    string
}

type join struct {
	kind  string
	table string
	on    string
}

// NewProjectionMap creates a ProjectionMap for the given schema, table, and alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:     schema,
		table:      table,
		alias:      alias,
		columns:    make(map[string]string),
		columnList: make([]string, 0),
		current:    alias,
	}
}

// Project adds a column mapping from database column to view property name.
// Columns are qualified with the alias of the most recent Join, or the base
// table alias when no join has been added.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := fmt.Sprintf("%s.%s", p.current, column)
	p.columns[viewName] = qualified
	p.columnList = append(p.columnList, qualified)
	return p
}

// Join adds a joined table. Columns projected after Join are qualified with alias.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.joins = append(p.joins, join{
		kind:  kind,
		table: fmt.Sprintf("%s.%s %s", schema, table, alias),
		on:    on,
	})
	p.current = alias
	return p
}

// Filter maps viewName to an already qualified column without selecting it.
func (p *ProjectionMap) Filter(column, viewName string) *ProjectionMap {
	p.columns[viewName] = column
	return p
}

// Alias returns the table alias.
func (p *ProjectionMap) Alias() string {
	return p.alias
}

// From returns the FROM clause body: the base table followed by its joins.
func (p *ProjectionMap) From() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s %s", p.schema, p.table, p.alias)
	for _, j := range p.joins {
		fmt.Fprintf(&b, " %s %s ON %s", j.kind, j.table, j.on)
	}
	return b.String()
}

// Column returns the qualified column for a view property name, or the input if not mapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

// Has reports whether viewName is mapped.
func (p *ProjectionMap) Has(viewName string) bool {
	_, ok := p.columns[viewName]
	return ok
}

// Columns returns all mapped columns as a comma-separated string.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columnList, ", ")
}
