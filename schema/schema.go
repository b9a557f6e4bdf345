package schema

import (
	"fmt"
)

// DataType is the portable column type tag. Dialect-specific rendering is
// out of scope here; the mapping engine only needs the tag for value
// coercion and diagnostics.
type DataType string

const (
	Bool   DataType = "bool"
	Int    DataType = "int"
	Uint   DataType = "uint"
	Float  DataType = "float"
	String DataType = "string"
	Time   DataType = "time"
	Bytes  DataType = "bytes"
)

// Column is one column of a table. Columns are created once, attached to
// exactly one table, and shared by reference afterwards; mapper code
// compares columns by pointer identity.
type Column struct {
	Name          string
	Table         *Table
	DataType      DataType
	PrimaryKey    bool
	AutoIncrement bool
	HasDefault    bool // server-side default present
	NotNull       bool
	Comment       string
}

func (c *Column) String() string {
	if c.Table != nil {
		return c.Table.Name + "." + c.Name
	}
	return c.Name
}

// ForeignKey is a single (possibly composite) foreign key constraint.
// Columns and RefColumns are positionally paired.
type ForeignKey struct {
	Name       string
	Columns    []*Column
	RefColumns []*Column
}

// RefTable returns the table the constraint points at, nil when the
// constraint is empty.
func (fk ForeignKey) RefTable() *Table {
	if len(fk.RefColumns) == 0 {
		return nil
	}
	return fk.RefColumns[0].Table
}

// Selectable is anything columns can be selected from: a table or a join.
// The mapping engine consumes this interface, it never builds schema
// objects of its own.
type Selectable interface {
	SelectableName() string
	Columns() []*Column
	// PrimaryKey returns the recorded primary key columns in declared
	// order. For joins this is the concatenation of both sides; callers
	// reduce it through the equated pairs.
	PrimaryKey() []*Column
	Contains(*Column) bool
	// Tables returns every base table reachable through this selectable.
	Tables() []*Table
}

// Table is an immutable base table.
type Table struct {
	Name        string
	ColumnList  []*Column
	ForeignKeys []ForeignKey

	colSet map[*Column]struct{}
}

// NewTable builds a table and wires the column back-references. Column
// order is preserved; the primary key order is the declared column order.
func NewTable(name string, columns ...*Column) *Table {
	t := &Table{Name: name, ColumnList: columns, colSet: make(map[*Column]struct{}, len(columns))}
	for _, c := range columns {
		if c.Table != nil {
			panic(fmt.Sprintf("column %s already belongs to table %s", c.Name, c.Table.Name))
		}
		c.Table = t
		t.colSet[c] = struct{}{}
	}
	return t
}

// AddForeignKey records a constraint from cols on this table to refCols.
func (t *Table) AddForeignKey(name string, cols []*Column, refCols []*Column) *Table {
	if len(cols) != len(refCols) || len(cols) == 0 {
		panic("foreign key requires equal, non-empty column lists")
	}
	t.ForeignKeys = append(t.ForeignKeys, ForeignKey{Name: name, Columns: cols, RefColumns: refCols})
	return t
}

// C looks a column up by name, nil when absent.
func (t *Table) C(name string) *Column {
	for _, c := range t.ColumnList {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (t *Table) SelectableName() string { return t.Name }

func (t *Table) Columns() []*Column { return t.ColumnList }

func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.ColumnList {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

func (t *Table) Contains(c *Column) bool {
	_, ok := t.colSet[c]
	return ok
}

func (t *Table) Tables() []*Table { return []*Table{t} }
