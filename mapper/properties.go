package mapper

import (
	"fmt"

	"github.com/ormkit/ormkit/schema"
)

// configureProperties merges the three property sources into one ordered
// name-to-property map: explicitly supplied properties, inherited
// properties not locally excluded, and one implicit column property per
// unclaimed column of the persist selectable.
func (m *Mapper) configureProperties(opts Options) error {
	for _, p := range opts.Properties {
		if p.PropertyName() == "" {
			return fmt.Errorf("%w: supplied property of type %T has no name", ErrArgument, p)
		}
		if err := m.configureProperty(p.PropertyName(), p); err != nil {
			return err
		}
	}

	if m.Inherits != nil {
		for _, name := range m.Inherits.propertyOrder {
			if _, ok := m.properties[name]; ok {
				continue
			}
			if m.excludedName(name) {
				continue
			}
			inherited := m.Inherits.properties[name]
			if m.Concrete {
				if m.locallyPersisted(inherited) {
					// the implicit column pass maps the local same-named
					// columns instead
					continue
				}
				if err := m.configureProperty(name, newConcreteInherited(name, inherited)); err != nil {
					return err
				}
				continue
			}
			m.attachInherited(name, inherited)
		}
	}

	for _, col := range m.Selectable.Columns() {
		if _, claimed := m.columnToProperty[col]; claimed {
			continue
		}
		name := m.registry.namer().PropertyName(col.Name)
		if m.excludedColumn(col, name) {
			continue
		}
		if existing, ok := m.properties[name]; ok {
			if err := m.combineColumn(name, col, existing); err != nil {
				return err
			}
			continue
		}
		if err := m.configureProperty(name, NewColumnProperty(name, col)); err != nil {
			return err
		}
	}

	return nil
}

// locallyPersisted reports whether a concrete subclass's own table carries
// same-named columns for an inherited column-backed property, so the
// implicit pass re-maps it locally instead of a placeholder.
func (m *Mapper) locallyPersisted(p Property) bool {
	cols := p.Columns()
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		found := false
		for _, own := range m.Selectable.Columns() {
			if own.Name == c.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// combineColumn folds an unclaimed column into an existing same-named
// property. Equated or version columns combine silently; otherwise an
// ancestor-owned property combines with a warning and a locally owned one
// is a configuration error, guarding against accidental column aliasing.
func (m *Mapper) combineColumn(name string, col *schema.Column, existing Property) error {
	cp, ok := existing.(*ColumnProperty)
	if !ok {
		m.logInfo("not mapping column %s implicitly; attribute %q on mapper %s is already mapped by a %T",
			col, name, m, existing)
		return nil
	}

	compatible := col == m.Version
	for _, ec := range cp.ColumnList {
		if compatible {
			break
		}
		compatible = ec == col || ec == m.Version || m.columnsEquivalent(ec, col) ||
			(ec.Table == col.Table && ec.Name == col.Name)
	}
	if !compatible {
		if cp.Parent() != m {
			m.logWarn("implicitly combining column %s with column %s under attribute %q. Please configure one or more attributes for these same-named columns explicitly.",
				cp.ColumnList[0], col, name)
		} else {
			return fmt.Errorf("%w: columns %s and %s conflict under attribute name %q on mapper %s; map them under distinct names or supply an explicit property",
				ErrInvalidRequest, cp.ColumnList[0], col, name, m)
		}
	}

	combined := NewColumnProperty(name, append(append([]*schema.Column{}, cp.ColumnList...), col)...)
	combined.discriminator = cp.discriminator
	combined.StrategyKey = cp.StrategyKey
	return m.configureProperty(name, combined)
}

// configureProperty attaches a property this mapper owns, superseding any
// prior same-named one. Replacement with a different property kind is
// logged; the old property's columns move to the superseded map so
// reverse lookups stay diagnosable.
func (m *Mapper) configureProperty(name string, p Property) error {
	if existing, ok := m.properties[name]; ok {
		_, oldIsCol := existing.(*ColumnProperty)
		_, newIsCol := p.(*ColumnProperty)
		if !(oldIsCol && newIsCol) {
			m.logWarn("property %q on mapper %s being replaced with new property %T; the previous property will be disregarded",
				name, m, p)
		}
		for _, c := range existing.Columns() {
			if m.columnToProperty[c] == existing {
				delete(m.columnToProperty, c)
				m.superseded[c] = existing
			}
		}
	} else {
		m.propertyOrder = append(m.propertyOrder, name)
	}

	if err := p.setParent(m); err != nil {
		return err
	}
	m.properties[name] = p
	for _, c := range p.Columns() {
		delete(m.superseded, c)
		m.columnToProperty[c] = p
	}
	if idx, ok := classField(m.Class, name); ok {
		m.fields[name] = idx
	}
	m.expireMemos()
	return nil
}

// attachInherited shares a parent-owned property by reference; the parent
// stays the property's owner.
func (m *Mapper) attachInherited(name string, p Property) {
	if _, ok := m.properties[name]; !ok {
		m.propertyOrder = append(m.propertyOrder, name)
	}
	m.properties[name] = p
	for _, c := range p.Columns() {
		delete(m.superseded, c)
		m.columnToProperty[c] = p
	}
	if idx, ok := classField(m.Class, name); ok {
		m.fields[name] = idx
	}
	m.expireMemos()
}

// AddProperty attaches a property after construction. The addition is
// append-only and propagates by reference to descendant mappers that do
// not locally override the name. When the mapper is already configured
// the property is initialized immediately.
func (m *Mapper) AddProperty(p Property) error {
	unlock := lockConfigure()
	defer unlock()

	if m.failed != nil {
		return &ConfigureFailedError{Mapper: m, Cause: m.failed}
	}
	name := p.PropertyName()
	if name == "" {
		return fmt.Errorf("%w: property of type %T has no name", ErrArgument, p)
	}
	if err := m.configureProperty(name, p); err != nil {
		return err
	}
	if m.configured {
		if err := p.finishInit(); err != nil {
			m.failed = err
			return &ConfigureFailedError{Mapper: m, Cause: err}
		}
	}
	for _, sub := range m.inherited {
		sub.adaptInheritedProperty(name, p)
	}
	return nil
}

func (m *Mapper) adaptInheritedProperty(name string, p Property) {
	if existing, ok := m.properties[name]; ok && existing.Parent() == m {
		return
	}
	if m.Concrete {
		if !m.locallyPersisted(p) {
			placeholder := newConcreteInherited(name, p)
			placeholder.parent = m
			m.attachOwn(name, placeholder)
		}
	} else {
		m.attachInherited(name, p)
	}
	for _, sub := range m.inherited {
		sub.adaptInheritedProperty(name, p)
	}
}

// attachOwn records a property without the replacement bookkeeping, used
// for placeholder attachment during propagation.
func (m *Mapper) attachOwn(name string, p Property) {
	if _, ok := m.properties[name]; !ok {
		m.propertyOrder = append(m.propertyOrder, name)
	}
	m.properties[name] = p
	m.expireMemos()
}

func (m *Mapper) excludedName(name string) bool {
	if fieldTag(m.Class, name) == "-" {
		return true
	}
	for _, n := range m.excludeProps {
		if n == name {
			return true
		}
	}
	if len(m.includeProps) > 0 {
		for _, n := range m.includeProps {
			if n == name {
				return false
			}
		}
		return true
	}
	return false
}

// excludedColumn decides implicit-column exclusion; include and exclude
// lists may name either the attribute or the column.
func (m *Mapper) excludedColumn(col *schema.Column, name string) bool {
	if fieldTag(m.Class, name) == "-" {
		return true
	}
	for _, n := range m.excludeProps {
		if n == col.Name || n == name {
			return true
		}
	}
	if len(m.includeProps) > 0 {
		for _, n := range m.includeProps {
			if n == col.Name || n == name {
				return false
			}
		}
		return true
	}
	return false
}
