package mapper

import (
	"fmt"
	"reflect"

	"github.com/ormkit/ormkit/schema"
)

// Property is one mapped attribute's persistence strategy. The variant set
// is closed: ColumnProperty, RelationshipProperty, SynonymProperty,
// CompositeProperty and ConcreteInheritedProperty. A property belongs to
// exactly one mapper as its parent; descendant mappers attach inherited
// properties by reference, never by copy.
type Property interface {
	PropertyName() string
	Parent() *Mapper
	Columns() []*schema.Column

	// setParent binds the owning mapper exactly once.
	setParent(m *Mapper) error
	// finishInit is the deferred second phase, run by the configuration
	// coordinator exactly once per property.
	finishInit() error
	// property marks the closed variant set.
	property()
}

type propertyBase struct {
	Name string
	// StrategyKey is an opaque token handed to the loading subsystem; the
	// mapping engine only stores it.
	StrategyKey string

	parent      *Mapper
	initialized bool
}

func (p *propertyBase) PropertyName() string { return p.Name }

func (p *propertyBase) Parent() *Mapper { return p.parent }

func (p *propertyBase) property() {}

func (p *propertyBase) setParent(m *Mapper) error {
	if p.parent != nil && p.parent != m {
		return fmt.Errorf("%w: property %q already belongs to mapper %s", ErrInvalidRequest, p.Name, p.parent)
	}
	p.parent = m
	return nil
}

// ColumnProperty maps one attribute onto one or more columns of the
// persist selectable. Multiple columns arise when a joined-inheritance
// child column is combined with its equated parent column under one name.
type ColumnProperty struct {
	propertyBase
	ColumnList []*schema.Column

	// discriminator is set when one of the columns is the chain's
	// polymorphic discriminator, compared by identity. Polymorphic SELECT
	// rendering uses it to exclude the column cheaply.
	discriminator bool
}

// NewColumnProperty builds a column-backed property.
func NewColumnProperty(name string, columns ...*schema.Column) *ColumnProperty {
	return &ColumnProperty{propertyBase: propertyBase{Name: name}, ColumnList: columns}
}

func (p *ColumnProperty) Columns() []*schema.Column { return p.ColumnList }

// IsDiscriminator reports whether this property carries the polymorphic
// discriminator column.
func (p *ColumnProperty) IsDiscriminator() bool { return p.discriminator }

func (p *ColumnProperty) finishInit() error {
	p.initialized = true
	return nil
}

// RelationshipKind distinguishes the relationship shapes the cascade and
// orphan machinery needs to understand.
type RelationshipKind string

const (
	HasOne    RelationshipKind = "has_one"
	HasMany   RelationshipKind = "has_many"
	BelongsTo RelationshipKind = "belongs_to"
)

// RelationshipProperty links an attribute to another mapped class. Its
// heavy initialization (target mapper resolution) is deferred to the
// configuration coordinator because the target class may not be mapped
// yet when the property is declared.
type RelationshipProperty struct {
	propertyBase
	Kind        RelationshipKind
	TargetClass interface{}
	Cascade     Cascade
	// BackRef names the attribute on the target holding the reverse
	// reference; orphan detection reads it.
	BackRef string

	target *Mapper
}

// NewRelationship declares a relationship to targetClass with a cascade
// rule string (see ParseCascade). The rule string is validated eagerly;
// target resolution waits for phase two.
func NewRelationship(name string, targetClass interface{}, kind RelationshipKind, cascadeRule string) (*RelationshipProperty, error) {
	cascade, err := ParseCascade(cascadeRule)
	if err != nil {
		return nil, err
	}
	return &RelationshipProperty{
		propertyBase: propertyBase{Name: name},
		Kind:         kind,
		TargetClass:  targetClass,
		Cascade:      cascade,
	}, nil
}

// MustRelationship is NewRelationship panicking on a bad cascade rule,
// for declaration sites with literal rules.
func MustRelationship(name string, targetClass interface{}, kind RelationshipKind, cascadeRule string) *RelationshipProperty {
	rel, err := NewRelationship(name, targetClass, kind, cascadeRule)
	if err != nil {
		panic(err)
	}
	return rel
}

func (p *RelationshipProperty) Columns() []*schema.Column { return nil }

// Target returns the resolved target mapper, nil before phase two.
func (p *RelationshipProperty) Target() *Mapper { return p.target }

func (p *RelationshipProperty) finishInit() error {
	if p.initialized {
		return nil
	}
	targetType, err := classType(p.TargetClass)
	if err != nil {
		return fmt.Errorf("%w: relationship %q: %v", ErrArgument, p.Name, err)
	}
	target := p.parent.registry.lookupAcross(targetType)
	if target == nil {
		return fmt.Errorf("%w: relationship %q of mapper %s references unmapped class %s",
			ErrInvalidRequest, p.Name, p.parent, targetType)
	}
	if target.registry != p.parent.registry {
		p.parent.registry.addDependencyLocked(target.registry)
	}
	p.target = target
	if p.Cascade.DeleteOrphan && p.BackRef != "" {
		target.orphanParents = append(target.orphanParents, p)
	}
	p.initialized = true
	return nil
}

// SynonymProperty aliases another property of the same mapper under a
// second name.
type SynonymProperty struct {
	propertyBase
	TargetName string
}

func NewSynonym(name, targetName string) *SynonymProperty {
	return &SynonymProperty{propertyBase: propertyBase{Name: name}, TargetName: targetName}
}

func (p *SynonymProperty) Columns() []*schema.Column { return nil }

func (p *SynonymProperty) finishInit() error {
	if p.initialized {
		return nil
	}
	if _, ok := p.parent.properties[p.TargetName]; !ok {
		return fmt.Errorf("%w: synonym %q references unknown property %q on mapper %s",
			ErrInvalidRequest, p.Name, p.TargetName, p.parent)
	}
	p.initialized = true
	return nil
}

// CompositeProperty maps a group of columns onto one value-type attribute.
type CompositeProperty struct {
	propertyBase
	CompositeType reflect.Type
	ColumnList    []*schema.Column
}

func NewComposite(name string, compositeType interface{}, columns ...*schema.Column) *CompositeProperty {
	t := reflect.TypeOf(compositeType)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return &CompositeProperty{
		propertyBase:  propertyBase{Name: name},
		CompositeType: t,
		ColumnList:    columns,
	}
}

func (p *CompositeProperty) Columns() []*schema.Column { return p.ColumnList }

func (p *CompositeProperty) finishInit() error {
	if p.initialized {
		return nil
	}
	if p.CompositeType == nil || p.CompositeType.Kind() != reflect.Struct {
		return fmt.Errorf("%w: composite %q requires a struct value type", ErrArgument, p.Name)
	}
	if p.CompositeType.NumField() < len(p.ColumnList) {
		return fmt.Errorf("%w: composite %q maps %d columns onto %d fields of %s",
			ErrArgument, p.Name, len(p.ColumnList), p.CompositeType.NumField(), p.CompositeType)
	}
	p.initialized = true
	return nil
}

// ConcreteInheritedProperty is the placeholder a concrete-inheriting
// mapper attaches for an ancestor property that is not locally persisted:
// the attribute resolves on the class, but this mapper's own table carries
// no storage for it.
type ConcreteInheritedProperty struct {
	propertyBase
	Inherited Property
}

func newConcreteInherited(name string, inherited Property) *ConcreteInheritedProperty {
	return &ConcreteInheritedProperty{propertyBase: propertyBase{Name: name}, Inherited: inherited}
}

func (p *ConcreteInheritedProperty) Columns() []*schema.Column { return nil }

func (p *ConcreteInheritedProperty) finishInit() error {
	p.initialized = true
	return nil
}
