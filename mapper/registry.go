package mapper

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/ormkit/ormkit/logger"
	"github.com/ormkit/ormkit/schema"
)

// Registry is a named collection of mappers sharing one configuration
// scope. It tracks unconfigured mappers and its dependencies on other
// registries, which relationship resolution records as it crosses scope
// boundaries.
type Registry struct {
	Name string
	// Token is the identity token of every identity key minted through
	// this registry's mappers.
	Token string
	// Namer derives implicit property names from column names.
	Namer schema.Namer
	// Logger receives configuration warnings; logger.Default when nil.
	Logger logger.Interface
	// LegacyIsOrphan applies the historic orphan rule to every mapper
	// scoped here, see Options.LegacyIsOrphan.
	LegacyIsOrphan bool

	mappers  map[reflect.Type]*Mapper
	pending  map[*Mapper]struct{}
	deps     map[*Registry]struct{}
	disposed bool
}

// DefaultRegistry scopes mappers constructed without an explicit
// registry.
var DefaultRegistry = NewRegistry("default")

var allRegistries []*Registry

// NewRegistry creates a registry with a fresh identity token and the
// default naming strategy.
func NewRegistry(name string) *Registry {
	unlock := lockConfigure()
	defer unlock()

	r := &Registry{
		Name:    name,
		Token:   uuid.NewString(),
		Namer:   schema.NamingStrategy{},
		mappers: map[reflect.Type]*Mapper{},
		pending: map[*Mapper]struct{}{},
		deps:    map[*Registry]struct{}{},
	}
	allRegistries = append(allRegistries, r)
	return r
}

func (r *Registry) String() string {
	return fmt.Sprintf("Registry(%s)", r.Name)
}

func (r *Registry) namer() schema.Namer {
	if r.Namer == nil {
		return schema.NamingStrategy{}
	}
	return r.Namer
}

func (r *Registry) logger() logger.Interface {
	if r.Logger == nil {
		return logger.Default
	}
	return r.Logger
}

// Lookup returns the primary mapper of a class, nil when unmapped in this
// registry.
func (r *Registry) Lookup(class interface{}) *Mapper {
	t, err := classType(class)
	if err != nil {
		return nil
	}
	return r.mappers[t]
}

// lookupAcross resolves a class in this registry first, then in its
// dependencies and finally across every registry, recording a new
// dependency edge for the configuration order.
func (r *Registry) lookupAcross(t reflect.Type) *Mapper {
	if m, ok := r.mappers[t]; ok {
		return m
	}
	for dep := range r.deps {
		if m, ok := dep.mappers[t]; ok {
			return m
		}
	}
	for _, other := range allRegistries {
		if other == r || other.disposed {
			continue
		}
		if m, ok := other.mappers[t]; ok {
			return m
		}
	}
	return nil
}

// Mappers returns every primary mapper of this registry.
func (r *Registry) Mappers() []*Mapper {
	unlock := lockConfigure()
	defer unlock()

	mappers := make([]*Mapper, 0, len(r.mappers))
	for _, m := range r.mappers {
		mappers = append(mappers, m)
	}
	return mappers
}

// HasPending reports whether any mapper still awaits phase-two
// configuration.
func (r *Registry) HasPending() bool {
	return len(r.pending) > 0
}

// AddDependency declares that this registry's mappers depend on mappings
// of another registry, so the other configures first.
func (r *Registry) AddDependency(other *Registry) {
	unlock := lockConfigure()
	defer unlock()
	r.addDependencyLocked(other)
}

func (r *Registry) addDependencyLocked(other *Registry) {
	if other != nil && other != r {
		r.deps[other] = struct{}{}
	}
}

// Configure runs the configuration coordinator for this registry and its
// dependencies.
func (r *Registry) Configure() error {
	return Configure(r)
}

// Dispose tears the whole registry down, severing the class-to-mapper
// back-references. Mappers of a disposed registry are unusable.
func (r *Registry) Dispose() {
	unlock := lockConfigure()
	defer unlock()

	for t, m := range r.mappers {
		m.dispose()
		delete(r.mappers, t)
	}
	for m := range r.pending {
		delete(r.pending, m)
	}
	r.disposed = true

	for i, reg := range allRegistries {
		if reg == r {
			allRegistries = append(allRegistries[:i], allRegistries[i+1:]...)
			break
		}
	}
}

func (m *Mapper) dispose() {
	m.configured = false
	if m.failed == nil {
		m.failed = fmt.Errorf("%w: mapper %s belongs to a disposed registry", ErrInvalidRequest, m)
	}
	if m.Inherits != nil {
		for i, sub := range m.Inherits.inherited {
			if sub == m {
				m.Inherits.inherited = append(m.Inherits.inherited[:i], m.Inherits.inherited[i+1:]...)
				break
			}
		}
	}
	if m.PolymorphicIdentity != nil && m.polymorphicMap[m.PolymorphicIdentity] == m {
		delete(m.polymorphicMap, m.PolymorphicIdentity)
	}
	m.expireMemos()
}
