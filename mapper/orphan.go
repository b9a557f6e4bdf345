package mapper

import (
	"fmt"
	"reflect"
)

// IsOrphan reports whether an instance has lost its delete-orphan
// parents. Under the default rule every delete-orphan parent reference
// must be gone; under the legacy rule losing any single one makes the
// instance an orphan. Parent references are read through the BackRef
// attributes registered by relationship initialization.
func (m *Mapper) IsOrphan(instance interface{}) (bool, error) {
	if err := m.checkConfigure(); err != nil {
		return false, err
	}
	if len(m.orphanParents) == 0 {
		return false, nil
	}

	rv := reflect.ValueOf(instance)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return false, fmt.Errorf("%w: orphan check requires a mapped struct instance", ErrArgument)
	}

	considered, gone := 0, 0
	for _, rel := range m.orphanParents {
		idx, ok := classField(rv.Type(), rel.BackRef)
		if !ok {
			continue
		}
		considered++
		if rv.FieldByIndex(idx).IsZero() {
			gone++
			if m.LegacyIsOrphan {
				return true, nil
			}
		}
	}
	return considered > 0 && gone == considered, nil
}
