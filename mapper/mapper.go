package mapper

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ormkit/ormkit/internal/lru"
	"github.com/ormkit/ormkit/schema"
)

// Mapper binds one application struct type to one persistent selectable.
// It owns the property set, primary-key derivation and inheritance
// linkage. Construction is synchronous and atomic under the package
// configuration mutex; relationship targets are resolved later by the
// configuration coordinator.
type Mapper struct {
	// Class is the bound struct type.
	Class     reflect.Type
	ClassName string

	// LocalTable is the selectable given at construction; nil for a
	// single-table-inheritance subclass.
	LocalTable schema.Selectable
	// Selectable is the persist selectable, the join or table actually
	// written to. Never nil after construction.
	Selectable schema.Selectable

	// Inherits is the storage parent; base is the root of the chain,
	// self-referential for non-inheriting mappers.
	Inherits *Mapper
	base     *Mapper

	Concrete   bool
	Single     bool
	NonPrimary bool

	// PrimaryKey is the reduced, order-stable primary key column list.
	PrimaryKey []*schema.Column

	PolymorphicOn       *schema.Column
	PolymorphicIdentity interface{}

	Version        *schema.Column
	Batch          bool
	PassiveUpdates bool
	PassiveDeletes bool
	LegacyIsOrphan bool

	// RequiresRowAliasing is set on ancestors carrying a discriminator
	// when a concrete subclass splits the chain: their discriminator
	// column is ambiguous across the split.
	RequiresRowAliasing bool

	registry  *Registry
	primary   *Mapper // for non-primary mappers, the class's primary mapper
	inherited []*Mapper

	// polymorphicMap is shared by every mapper of one inheritance chain.
	// Mutated only under the configuration mutex.
	polymorphicMap map[interface{}]*Mapper

	identityClass reflect.Type

	properties       map[string]Property
	propertyOrder    []string
	columnToProperty map[*schema.Column]Property
	// superseded remembers columns whose property was replaced, for
	// UnmappedColumn diagnostics.
	superseded map[*schema.Column]Property
	readOnly   map[*schema.Column]bool
	// fields resolves property names to struct field index chains on
	// this mapper's own class.
	fields map[string][]int

	withPolymorphic  *WithPolymorphic
	inheritCondition []schema.ColumnPair

	polymorphicSetter  func(m *Mapper, instance reflect.Value)
	discriminatorField []int

	constructHooks []func(interface{})
	loadHooks      []func(interface{})
	orphanParents  []*RelationshipProperty

	includeProps []string
	excludeProps []string

	configured bool
	failed     error

	// generation tags memoized derived views; bumping it invalidates
	// them all at once.
	generation uint64
	memoGen    uint64
	equivMemo  map[*schema.Column]*schema.Column
	polyCache  *lru.LRU[string, schema.Selectable]
}

// New constructs a mapper for class against the local selectable. The
// whole construction runs under the package configuration mutex; on error
// the mapper is poisoned permanently and any later configuration pass
// touching it re-raises the original cause.
func New(class interface{}, local schema.Selectable, opts Options) (*Mapper, error) {
	unlock := lockConfigure()
	defer unlock()

	t, err := classType(class)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	m := &Mapper{
		Class:            t,
		ClassName:        t.Name(),
		LocalTable:       local,
		Inherits:         opts.Inherits,
		Concrete:         opts.Concrete,
		NonPrimary:       opts.NonPrimary,
		LegacyIsOrphan:   opts.LegacyIsOrphan || registry.LegacyIsOrphan,
		registry:         registry,
		properties:       map[string]Property{},
		columnToProperty: map[*schema.Column]Property{},
		superseded:       map[*schema.Column]Property{},
		readOnly:         map[*schema.Column]bool{},
		fields:           map[string][]int{},
		withPolymorphic:  copyWithPolymorphic(opts.WithPolymorphic),
		includeProps:     opts.IncludeProperties,
		excludeProps:     opts.ExcludeProperties,
		polyCache:        lru.NewLRU[string, schema.Selectable](32),
	}

	if err := m.configure(opts); err != nil {
		m.failed = err
		// keep the poisoned mapper visible to the coordinator so
		// dependent configuration attempts re-fail with the cause
		registry.pending[m] = struct{}{}
		return nil, err
	}

	registry.pending[m] = struct{}{}
	m.expireMemos()
	return m, nil
}

func (m *Mapper) String() string {
	if m == nil {
		return "Mapper(nil)"
	}
	sel := "<none>"
	if m.Selectable != nil {
		sel = m.Selectable.SelectableName()
	}
	return fmt.Sprintf("Mapper[%s(%s)]", m.ClassName, sel)
}

func (m *Mapper) configure(opts Options) error {
	if err := m.configureInheritance(opts); err != nil {
		return err
	}
	if err := m.configureClass(); err != nil {
		return err
	}
	if err := m.configureProperties(opts); err != nil {
		return err
	}
	if err := m.configurePolymorphicSetter(opts); err != nil {
		return err
	}
	return m.configurePrimaryKey(opts)
}

func (m *Mapper) configureInheritance(opts Options) error {
	if parent := opts.Inherits; parent != nil {
		if parent.failed != nil {
			return &ConfigureFailedError{Mapper: parent, Cause: parent.failed}
		}
		if !classEmbeds(m.Class, parent.Class) {
			return fmt.Errorf("%w: class %s does not embed mapped class %s",
				ErrArgument, m.Class, parent.Class)
		}

		switch {
		case m.LocalTable == nil || sameSelectable(m.LocalTable, parent.Selectable):
			// single table inheritance
			m.LocalTable = nil
			m.Single = true
			m.Selectable = parent.Selectable
		case m.Concrete:
			m.Selectable = m.LocalTable
			// the discriminator of every ancestor is ambiguous across a
			// concrete split
			for a := parent; a != nil; a = a.Inherits {
				if a.PolymorphicOn != nil {
					a.RequiresRowAliasing = true
				}
			}
		default:
			// joined table inheritance
			left := parent.Selectable
			condTarget := parent.localOrSelectable()
			cond := opts.InheritCondition
			if len(cond) == 0 {
				inferred, err := schema.InferCondition(condTarget, m.LocalTable)
				if err != nil {
					return err
				}
				cond = inferred
			}
			join, err := schema.NewJoin(left, m.LocalTable, cond)
			if err != nil {
				return err
			}
			m.inheritCondition = cond
			m.Selectable = join
		}

		m.base = parent.base
		m.identityClass = parent.identityClass
		m.polymorphicMap = parent.polymorphicMap

		if opts.PolymorphicOn != nil {
			m.PolymorphicOn = opts.PolymorphicOn
		} else if !m.Concrete {
			// a concrete split shares no storage, so the ancestor's
			// discriminator column cannot be inherited
			m.PolymorphicOn = parent.PolymorphicOn
		}

		m.Batch = boolOpt(opts.Batch, parent.Batch)
		m.PassiveUpdates = boolOpt(opts.PassiveUpdates, parent.PassiveUpdates)
		// a parent relying on ON DELETE cascade forces passive deletes on
		// every descendant
		m.PassiveDeletes = parent.PassiveDeletes || boolOpt(opts.PassiveDeletes, false)

		if opts.Version != nil {
			if parent.Version != nil && opts.Version != parent.Version {
				m.logWarn("inheriting version column %s of mapper %s does not match locally declared version column %s on %s",
					parent.Version, parent, opts.Version, m)
			}
			m.Version = opts.Version
		} else {
			m.Version = parent.Version
		}

		parent.inherited = append(parent.inherited, m)
		parent.addWithPolymorphicSubclass(m)
		parent.expireMemos()
	} else {
		if m.LocalTable == nil {
			return fmt.Errorf("%w: mapper for class %s requires a selectable to map against", ErrArgument, m.Class)
		}
		if opts.Concrete {
			return fmt.Errorf("%w: concrete flag requires an inheriting mapper", ErrArgument)
		}
		m.Selectable = m.LocalTable
		m.base = m
		m.identityClass = m.Class
		m.polymorphicMap = map[interface{}]*Mapper{}
		m.PolymorphicOn = opts.PolymorphicOn
		m.Batch = boolOpt(opts.Batch, true)
		m.PassiveUpdates = boolOpt(opts.PassiveUpdates, false)
		m.PassiveDeletes = boolOpt(opts.PassiveDeletes, false)
		m.Version = opts.Version
	}

	if m.PolymorphicOn != nil && !m.Selectable.Contains(m.PolymorphicOn) {
		return fmt.Errorf("%w: could not map polymorphic_on column %s to the mapped selectable %s",
			ErrInvalidRequest, m.PolymorphicOn, m.Selectable.SelectableName())
	}

	if opts.PolymorphicIdentity != nil {
		m.PolymorphicIdentity = opts.PolymorphicIdentity
		if existing, ok := m.polymorphicMap[m.PolymorphicIdentity]; ok && existing != m {
			m.logWarn("reassigning polymorphic association for identity %v from %s to %s",
				m.PolymorphicIdentity, existing, m)
		}
		m.polymorphicMap[m.PolymorphicIdentity] = m
	}

	return nil
}

// copyWithPolymorphic detaches the stored scope from the caller's options
// value; the subclass list grows as subtypes register and must not write
// through to the caller.
func copyWithPolymorphic(wp *WithPolymorphic) *WithPolymorphic {
	if wp == nil {
		return nil
	}
	copied := *wp
	copied.Classes = append([]interface{}(nil), wp.Classes...)
	return &copied
}

func (m *Mapper) localOrSelectable() schema.Selectable {
	if m.LocalTable != nil {
		return m.LocalTable
	}
	return m.Selectable
}

func sameSelectable(a, b schema.Selectable) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, aok := a.(*schema.Table)
	tb, bok := b.(*schema.Table)
	if aok && bok {
		return ta == tb
	}
	return a == b
}

func (m *Mapper) configureClass() error {
	if m.NonPrimary {
		primary := m.registry.mappers[m.Class]
		if primary == nil {
			return fmt.Errorf("%w: class %s has no primary mapper configured; configure a primary mapper first before defining a non-primary mapper",
				ErrInvalidRequest, m.Class)
		}
		m.primary = primary
		return nil
	}
	if existing := m.registry.mappers[m.Class]; existing != nil {
		return fmt.Errorf("%w: class %s already has a primary mapper defined", ErrArgument, m.Class)
	}
	m.registry.mappers[m.Class] = m
	return nil
}

func (m *Mapper) configurePolymorphicSetter(opts Options) error {
	if m.PolymorphicOn == nil {
		return nil
	}
	prop, ok := m.columnToProperty[m.PolymorphicOn]
	if !ok {
		return fmt.Errorf("%w: polymorphic_on column %s is excluded from mapping on %s",
			ErrInvalidRequest, m.PolymorphicOn, m)
	}
	if cp, ok := prop.(*ColumnProperty); ok {
		cp.discriminator = true
	}
	if idx, ok := classField(m.Class, prop.PropertyName()); ok {
		m.discriminatorField = idx
	}

	if opts.PolymorphicOn != nil || m.Inherits == nil {
		m.polymorphicSetter = writePolymorphicIdentity
	} else {
		// no discriminator declared locally, keep the ancestor's setter
		// by reference
		m.polymorphicSetter = m.Inherits.polymorphicSetter
	}
	return nil
}

// writePolymorphicIdentity stamps the owning mapper's identity value into
// the discriminator attribute of a freshly constructed instance.
func writePolymorphicIdentity(m *Mapper, instance reflect.Value) {
	if m.PolymorphicIdentity == nil || len(m.discriminatorField) == 0 {
		return
	}
	field := instance.FieldByIndex(m.discriminatorField)
	val := reflect.ValueOf(m.PolymorphicIdentity)
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
	}
}

// NewInstance allocates an instance of the bound class, stamps its
// polymorphic identity and runs construction hooks.
func (m *Mapper) NewInstance() interface{} {
	ptr := reflect.New(m.Class)
	if m.polymorphicSetter != nil {
		m.polymorphicSetter(m, ptr.Elem())
	}
	inst := ptr.Interface()
	for _, hook := range m.constructHooks {
		hook(inst)
	}
	return inst
}

// OnConstruct registers a hook run on every NewInstance call.
func (m *Mapper) OnConstruct(fn func(interface{})) {
	m.constructHooks = append(m.constructHooks, fn)
}

// OnLoad registers a hook run when an instance is populated from storage.
func (m *Mapper) OnLoad(fn func(interface{})) {
	m.loadHooks = append(m.loadHooks, fn)
}

// RunLoadHooks fires the load hooks of this mapper and its ancestors for
// an instance sourced from a row.
func (m *Mapper) RunLoadHooks(instance interface{}) {
	if m.Inherits != nil {
		m.Inherits.RunLoadHooks(instance)
	}
	for _, hook := range m.loadHooks {
		hook(instance)
	}
}

// Registry returns the registry scoping this mapper.
func (m *Mapper) Registry() *Registry { return m.registry }

// Base returns the root mapper of the inheritance chain; m itself for a
// non-inheriting mapper.
func (m *Mapper) Base() *Mapper { return m.base }

// IsaMapper reports whether other is m or one of m's ancestors.
func (m *Mapper) IsaMapper(other *Mapper) bool {
	for a := m; a != nil; a = a.Inherits {
		if a == other {
			return true
		}
	}
	return false
}

// CommonParent reports whether the two mappers share a chain ancestor.
func (m *Mapper) CommonParent(other *Mapper) bool {
	return m.base == other.base
}

// Configured reports whether phase-two initialization completed.
func (m *Mapper) Configured() bool { return m.configured }

// GetProperty returns the named property, running a configuration check
// first so deferred initialization is complete.
func (m *Mapper) GetProperty(name string) (Property, error) {
	if err := m.checkConfigure(); err != nil {
		return nil, err
	}
	p, ok := m.properties[name]
	if !ok {
		return nil, fmt.Errorf("%w: mapper %s has no property %q", ErrInvalidRequest, m, name)
	}
	return p, nil
}

// GetPropertyByColumn resolves a column back to the property mapping it.
// The error distinguishes a column belonging to a superseded property from
// an entirely unknown column.
func (m *Mapper) GetPropertyByColumn(col *schema.Column) (Property, error) {
	if err := m.checkConfigure(); err != nil {
		return nil, err
	}
	if p, ok := m.columnToProperty[col]; ok {
		return p, nil
	}
	if old, ok := m.superseded[col]; ok {
		return nil, fmt.Errorf("%w: column %s is no longer directly mapped on %s; its property %q was superseded",
			ErrUnmappedColumn, col, m, old.PropertyName())
	}
	return nil, fmt.Errorf("%w: no property on %s maps column %s", ErrUnmappedColumn, m, col)
}

// Properties returns the resolved property list in insertion order.
func (m *Mapper) Properties() ([]Property, error) {
	if err := m.checkConfigure(); err != nil {
		return nil, err
	}
	props := make([]Property, 0, len(m.propertyOrder))
	for _, name := range m.propertyOrder {
		props = append(props, m.properties[name])
	}
	return props, nil
}

// ReadOnlyColumns returns mapped columns that are refreshed from the
// database after a write and never sourced from in-memory state.
func (m *Mapper) ReadOnlyColumns() []*schema.Column {
	var cols []*schema.Column
	for _, col := range m.Selectable.Columns() {
		if m.readOnly[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// checkConfigure finishes any pending configuration before read access to
// derived state. A poisoned mapper deterministically re-fails.
func (m *Mapper) checkConfigure() error {
	if m.failed != nil {
		return &ConfigureFailedError{Mapper: m, Cause: m.failed}
	}
	if m.configured {
		return nil
	}
	return Configure(m.registry)
}

func (m *Mapper) expireMemos() {
	m.generation++
}

func (m *Mapper) logWarn(msg string, data ...interface{}) {
	m.registry.logger().Warn(context.Background(), msg, data...)
}

func (m *Mapper) logInfo(msg string, data ...interface{}) {
	m.registry.logger().Info(context.Background(), msg, data...)
}
