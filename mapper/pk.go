package mapper

import (
	"fmt"

	"github.com/ormkit/ormkit/schema"
)

// configurePrimaryKey computes the canonical, order-stable primary key
// column list used for identity-key construction.
func (m *Mapper) configurePrimaryKey(opts Options) error {
	// partition mapped columns by table; a table whose declared primary
	// key is fully covered by mapped columns records that intersection
	mappedByTable := map[*schema.Table]map[*schema.Column]bool{}
	for col := range m.columnToProperty {
		if col.Table == nil {
			continue
		}
		if mappedByTable[col.Table] == nil {
			mappedByTable[col.Table] = map[*schema.Column]bool{}
		}
		mappedByTable[col.Table][col] = true
	}

	recorded := map[*schema.Table][]*schema.Column{}
	for table, mapped := range mappedByTable {
		covered := true
		for _, pk := range table.PrimaryKey() {
			if !mapped[pk] {
				covered = false
				break
			}
		}
		if covered {
			recorded[table] = table.PrimaryKey()
		}
	}

	switch {
	case len(opts.PrimaryKey) > 0:
		for _, col := range opts.PrimaryKey {
			if !m.Selectable.Contains(col) {
				return fmt.Errorf("%w: primary key column %s is not part of the mapped selectable %s",
					ErrArgument, col, m.Selectable.SelectableName())
			}
		}
		m.PrimaryKey = append([]*schema.Column{}, opts.PrimaryKey...)

	case m.Inherits != nil && !m.Concrete:
		// reuse the parent's already-reduced key, no re-derivation
		m.PrimaryKey = m.Inherits.PrimaryKey

	default:
		var candidate []*schema.Column
		for _, col := range m.Selectable.PrimaryKey() {
			if _, mapped := m.columnToProperty[col]; mapped {
				if col.Table == nil || recorded[col.Table] != nil {
					candidate = append(candidate, col)
				}
			}
		}
		if len(candidate) == 0 {
			return fmt.Errorf("%w: could not assemble any primary key columns for mapped selectable %s",
				ErrArgument, m.Selectable.SelectableName())
		}
		m.PrimaryKey = m.reduceColumns(candidate)
	}

	// mapped columns outside every table of the persist selectable are
	// read-only: refreshed after writes, never sourced from memory
	selTables := map[*schema.Table]bool{}
	for _, t := range m.Selectable.Tables() {
		selTables[t] = true
	}
	for col := range m.columnToProperty {
		if col.Table == nil || !selTables[col.Table] {
			m.readOnly[col] = true
		}
	}

	return nil
}

// reduceColumns eliminates columns functionally determined by earlier
// ones through known equivalence, e.g. both sides of a joined-inheritance
// 1:1 condition, preserving order.
func (m *Mapper) reduceColumns(cols []*schema.Column) []*schema.Column {
	equiv := m.equivalentColumns()
	var reduced []*schema.Column
	for _, col := range cols {
		redundant := false
		for _, kept := range reduced {
			if equiv.same(kept, col) {
				redundant = true
				break
			}
		}
		if !redundant {
			reduced = append(reduced, col)
		}
	}
	return reduced
}

// columnsEquivalent reports whether two columns are equated through the
// persist selectable's join conditions.
func (m *Mapper) columnsEquivalent(a, b *schema.Column) bool {
	if a == b {
		return true
	}
	return m.equivalentColumns().same(a, b)
}

// columnSets is a union-find over the equated pairs of the persist
// selectable, memoized per generation.
type columnSets struct {
	parent map[*schema.Column]*schema.Column
}

func (s columnSets) find(c *schema.Column) *schema.Column {
	for {
		p, ok := s.parent[c]
		if !ok || p == c {
			return c
		}
		c = p
	}
}

func (s columnSets) union(a, b *schema.Column) {
	ra, rb := s.find(a), s.find(b)
	if ra != rb {
		s.parent[ra] = rb
	}
}

func (s columnSets) same(a, b *schema.Column) bool {
	return s.find(a) == s.find(b)
}

func (m *Mapper) equivalentColumns() columnSets {
	if m.equivMemo != nil && m.memoGen == m.generation {
		return columnSets{parent: m.equivMemo}
	}
	sets := columnSets{parent: map[*schema.Column]*schema.Column{}}
	if join, ok := m.Selectable.(*schema.Join); ok {
		for _, pair := range join.EquatedPairs() {
			sets.union(pair.Left, pair.Right)
		}
	}
	m.equivMemo = sets.parent
	m.memoGen = m.generation
	return sets
}
