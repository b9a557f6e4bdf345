package mapper

import (
	"fmt"
	"reflect"
	"strings"
)

// Cascade rule names accepted by ParseCascade and CascadeIterator.
const (
	CascadeSaveUpdate   = "save-update"
	CascadeDelete       = "delete"
	CascadeDeleteOrphan = "delete-orphan"
	CascadeMerge        = "merge"
	CascadeRefresh      = "refresh-expire"
	CascadeExpunge      = "expunge"
)

// Cascade is the parsed rule set of one relationship.
type Cascade struct {
	SaveUpdate   bool
	Delete       bool
	DeleteOrphan bool
	Merge        bool
	Refresh      bool
	Expunge      bool
}

// ParseCascade parses a comma-separated rule list. "all" is shorthand for
// every rule except delete-orphan.
func ParseCascade(rule string) (Cascade, error) {
	var c Cascade
	if rule == "" {
		c.SaveUpdate, c.Merge = true, true
		return c, nil
	}
	for _, part := range strings.Split(rule, ",") {
		switch strings.TrimSpace(part) {
		case "all":
			c.SaveUpdate, c.Delete, c.Merge, c.Refresh, c.Expunge = true, true, true, true, true
		case CascadeSaveUpdate:
			c.SaveUpdate = true
		case CascadeDelete:
			c.Delete = true
		case CascadeDeleteOrphan:
			c.DeleteOrphan = true
		case CascadeMerge:
			c.Merge = true
		case CascadeRefresh:
			c.Refresh = true
		case CascadeExpunge:
			c.Expunge = true
		case "":
		default:
			return c, fmt.Errorf("%w: unknown cascade rule %q", ErrArgument, strings.TrimSpace(part))
		}
	}
	return c, nil
}

// Has reports whether the named rule is part of the set.
func (c Cascade) Has(rule string) bool {
	switch rule {
	case CascadeSaveUpdate:
		return c.SaveUpdate
	case CascadeDelete:
		return c.Delete
	case CascadeDeleteOrphan:
		return c.DeleteOrphan
	case CascadeMerge:
		return c.Merge
	case CascadeRefresh:
		return c.Refresh
	case CascadeExpunge:
		return c.Expunge
	}
	return false
}

func (c Cascade) String() string {
	var parts []string
	for _, r := range []struct {
		name string
		on   bool
	}{
		{CascadeSaveUpdate, c.SaveUpdate},
		{CascadeDelete, c.Delete},
		{CascadeDeleteOrphan, c.DeleteOrphan},
		{CascadeMerge, c.Merge},
		{CascadeRefresh, c.Refresh},
		{CascadeExpunge, c.Expunge},
	} {
		if r.on {
			parts = append(parts, r.name)
		}
	}
	return strings.Join(parts, ", ")
}

// CascadeIter lazily walks object instances reachable from a root through
// relationships carrying a given cascade rule. The traversal is
// depth-first, cycle-safe, and restartable.
type CascadeIter struct {
	rule    string
	root    reflect.Value
	mapper  *Mapper
	stack   []cascadeFrame
	visited map[uintptr]struct{}
}

type cascadeFrame struct {
	value  reflect.Value // addressable struct
	mapper *Mapper
	rels   []*RelationshipProperty
	rel    int // index into rels
	idx    int // index into the current slice-valued relationship
}

// CascadeIterator returns an iterator over related instances reachable
// from root under the named cascade rule. The root itself is not yielded.
// A configuration check runs first so relationship targets are resolved.
func (m *Mapper) CascadeIterator(rule string, root interface{}) (*CascadeIter, error) {
	switch rule {
	case CascadeSaveUpdate, CascadeDelete, CascadeDeleteOrphan, CascadeMerge, CascadeRefresh, CascadeExpunge:
	default:
		return nil, fmt.Errorf("%w: unknown cascade rule %q", ErrArgument, rule)
	}
	if err := m.checkConfigure(); err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(root)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: cascade root must be a pointer to a mapped struct", ErrArgument)
	}
	it := &CascadeIter{rule: rule, root: rv, mapper: m}
	it.Restart()
	return it, nil
}

// Restart resets the iterator back to the root.
func (it *CascadeIter) Restart() {
	it.stack = it.stack[:0]
	it.visited = map[uintptr]struct{}{it.root.Pointer(): {}}
	it.push(it.root.Elem(), it.mapper)
}

func (it *CascadeIter) push(v reflect.Value, m *Mapper) {
	it.stack = append(it.stack, cascadeFrame{
		value:  v,
		mapper: m,
		rels:   m.relationshipsWithCascade(it.rule),
	})
}

// Next returns the next reachable instance and the mapper it belongs to.
// ok is false once the traversal is exhausted.
func (it *CascadeIter) Next() (interface{}, *Mapper, bool) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.rel >= len(top.rels) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		rel := top.rels[top.rel]
		field := top.value.FieldByIndex(top.mapper.fields[rel.PropertyName()])

		var next reflect.Value
		switch field.Kind() {
		case reflect.Slice:
			if top.idx >= field.Len() {
				top.rel++
				top.idx = 0
				continue
			}
			next = field.Index(top.idx)
			top.idx++
			if next.Kind() != reflect.Ptr {
				next = next.Addr()
			}
		case reflect.Ptr:
			top.rel++
			top.idx = 0
			if field.IsNil() {
				continue
			}
			next = field
		default:
			top.rel++
			top.idx = 0
			continue
		}

		if next.IsNil() {
			continue
		}
		if _, seen := it.visited[next.Pointer()]; seen {
			continue
		}
		it.visited[next.Pointer()] = struct{}{}

		target := rel.Target()
		if target == nil {
			continue
		}
		it.push(next.Elem(), target)
		return next.Interface(), target, true
	}
	return nil, nil, false
}

// relationshipsWithCascade returns this mapper's relationship properties
// carrying the named rule, in property order.
func (m *Mapper) relationshipsWithCascade(rule string) []*RelationshipProperty {
	var rels []*RelationshipProperty
	for _, name := range m.propertyOrder {
		if rel, ok := m.properties[name].(*RelationshipProperty); ok && rel.Cascade.Has(rule) {
			if _, bound := m.fields[name]; bound {
				rels = append(rels, rel)
			}
		}
	}
	return rels
}
