package mapper

import (
	"github.com/ormkit/ormkit/schema"
)

// Options configures a single Mapper construction. The zero value maps a
// root class against its selectable with implicit column properties only.
type Options struct {
	// Registry scopes the mapper; DefaultRegistry when nil.
	Registry *Registry

	// Inherits links this mapper under a storage parent. The bound class
	// must embed the parent's bound class.
	Inherits *Mapper
	// Concrete marks concrete table inheritance: the local selectable
	// alone is written to, nothing is joined to the parent.
	Concrete bool
	// InheritCondition overrides the foreign-key-inferred join condition
	// for joined table inheritance.
	InheritCondition []schema.ColumnPair

	// NonPrimary declares a secondary mapper over an already mapped
	// class; the class keeps its primary mapper.
	NonPrimary bool

	// Properties are explicitly supplied properties, kept in slice order.
	Properties []Property
	// IncludeProperties, when set, restricts mapping to the named
	// properties or columns.
	IncludeProperties []string
	// ExcludeProperties drops the named properties or columns.
	ExcludeProperties []string

	// PrimaryKey overrides primary-key derivation column by column.
	PrimaryKey []*schema.Column

	// PolymorphicOn names the discriminator column of an inheritance
	// chain; PolymorphicIdentity is this mapper's discriminator value.
	PolymorphicOn       *schema.Column
	PolymorphicIdentity interface{}
	// WithPolymorphic selects which subtypes load eagerly by default.
	WithPolymorphic *WithPolymorphic

	// Version is the optimistic-concurrency column; inherited when nil.
	Version *schema.Column

	// Batch, PassiveUpdates, PassiveDeletes inherit from the parent when
	// nil. Batch defaults to true on root mappers.
	Batch          *bool
	PassiveUpdates *bool
	PassiveDeletes *bool

	// LegacyIsOrphan selects the historic orphan rule: an instance is an
	// orphan as soon as any one delete-orphan parent is gone, instead of
	// requiring all of them gone.
	LegacyIsOrphan bool
}

// WithPolymorphic describes the default polymorphic load scope of a
// mapper: the wildcard (every descendant), an explicit subtype list, and
// an optional user-supplied selectable to draw the columns from.
type WithPolymorphic struct {
	Wildcard   bool
	Classes    []interface{}
	Selectable schema.Selectable
}

func boolOpt(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
