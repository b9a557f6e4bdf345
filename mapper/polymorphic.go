package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ormkit/ormkit/schema"
)

// SelfAndDescendants returns this mapper and every inheriting mapper,
// parents before children, stable within one level in registration order.
func (m *Mapper) SelfAndDescendants() []*Mapper {
	result := []*Mapper{m}
	for _, sub := range m.inherited {
		result = append(result, sub.SelfAndDescendants()...)
	}
	return result
}

// PolymorphicMap returns the identity-to-mapper map shared by the whole
// inheritance chain. Callers must treat it as read-only.
func (m *Mapper) PolymorphicMap() map[interface{}]*Mapper {
	return m.polymorphicMap
}

// PolymorphicFilter returns the discriminator column and the identity
// values of this mapper and all of its descendants, the IN-predicate
// operands single-table polymorphic loading filters on. The column is nil
// when the chain has no discriminator.
func (m *Mapper) PolymorphicFilter() (*schema.Column, []interface{}) {
	if m.PolymorphicOn == nil {
		return nil, nil
	}
	var identities []interface{}
	for _, sub := range m.SelfAndDescendants() {
		if sub.PolymorphicIdentity != nil {
			identities = append(identities, sub.PolymorphicIdentity)
		}
	}
	return m.PolymorphicOn, identities
}

// SelectablePolymorphic computes the selectable needed to SELECT the
// columns of all requested subtypes at once: the minimal chain of outer
// joins, or the explicit selectable when one is supplied. A nil subtype
// list means the wildcard, every descendant. Derived results are memoized
// per generation.
func (m *Mapper) SelectablePolymorphic(subtypes []*Mapper, explicit schema.Selectable) (schema.Selectable, error) {
	if err := m.checkConfigure(); err != nil {
		return nil, err
	}
	if explicit != nil {
		for _, sub := range m.expandSubtypes(subtypes) {
			for _, col := range sub.localOrSelectable().Columns() {
				if !explicit.Contains(col) {
					return nil, fmt.Errorf("%w: supplied selectable %s does not cover column %s of subtype mapper %s",
						ErrInvalidRequest, explicit.SelectableName(), col, sub)
				}
			}
		}
		return explicit, nil
	}

	requested := m.expandSubtypes(subtypes)
	key := m.polymorphicCacheKey(requested)
	if sel, ok := m.polyCache.Get(key); ok {
		return sel, nil
	}

	sel := m.Selectable
	for _, sub := range requested {
		if sub == m {
			continue
		}
		if sub.Concrete {
			return nil, fmt.Errorf("%w: concrete subtype mapper %s requires an explicit selectable; no implicit outer join spans disjoint tables",
				ErrInvalidRequest, sub)
		}
		if sub.Single || sub.LocalTable == nil {
			// single table subtypes contribute no additional join
			continue
		}
		join, err := schema.OuterJoin(sel, sub.LocalTable, sub.inheritCondition)
		if err != nil {
			return nil, err
		}
		sel = join
	}

	m.polyCache.Add(key, sel)
	return sel, nil
}

// WithPolymorphicSelectable resolves the mapper's declared default
// polymorphic scope, nil when none was configured.
func (m *Mapper) WithPolymorphicSelectable() (schema.Selectable, error) {
	if m.withPolymorphic == nil {
		return nil, nil
	}
	if m.withPolymorphic.Wildcard {
		return m.SelectablePolymorphic(nil, m.withPolymorphic.Selectable)
	}
	subtypes := make([]*Mapper, 0, len(m.withPolymorphic.Classes))
	for _, class := range m.withPolymorphic.Classes {
		t, err := classType(class)
		if err != nil {
			return nil, fmt.Errorf("%w: with_polymorphic: %v", ErrArgument, err)
		}
		sub := m.registry.lookupAcross(t)
		if sub == nil || !sub.IsaMapper(m) {
			return nil, fmt.Errorf("%w: with_polymorphic class %s is not a mapped descendant of %s",
				ErrArgument, t, m)
		}
		subtypes = append(subtypes, sub)
	}
	return m.SelectablePolymorphic(subtypes, m.withPolymorphic.Selectable)
}

// expandSubtypes normalizes a requested subtype set: nil means every
// descendant; ancestors of requested subtypes are included so join
// conditions compose in chain order.
func (m *Mapper) expandSubtypes(subtypes []*Mapper) []*Mapper {
	if subtypes == nil {
		return m.SelfAndDescendants()
	}
	want := map[*Mapper]bool{m: true}
	for _, sub := range subtypes {
		for a := sub; a != nil && a != m; a = a.Inherits {
			want[a] = true
		}
	}
	var ordered []*Mapper
	for _, sub := range m.SelfAndDescendants() {
		if want[sub] {
			ordered = append(ordered, sub)
		}
	}
	return ordered
}

func (m *Mapper) polymorphicCacheKey(subtypes []*Mapper) string {
	names := make([]string, 0, len(subtypes)+1)
	for _, sub := range subtypes {
		names = append(names, sub.ClassName)
	}
	sort.Strings(names)
	return fmt.Sprintf("g%d|%s", m.generation, strings.Join(names, ","))
}

// addWithPolymorphicSubclass widens a non-wildcard with_polymorphic scope
// as new subtypes register, mirroring the shared-map propagation.
func (m *Mapper) addWithPolymorphicSubclass(sub *Mapper) {
	if m.withPolymorphic == nil || m.withPolymorphic.Wildcard {
		return
	}
	m.withPolymorphic.Classes = append(m.withPolymorphic.Classes, sub.Class)
	m.expireMemos()
}
