package mapper

import (
	"fmt"
	"reflect"
)

// classType resolves a mapped class argument (a struct value, a pointer to
// one, or a reflect.Type) to the plain struct type.
func classType(class interface{}) (reflect.Type, error) {
	var t reflect.Type
	switch v := class.(type) {
	case reflect.Type:
		t = v
	case nil:
		return nil, fmt.Errorf("class is nil")
	default:
		t = reflect.TypeOf(class)
	}
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("unsupported class type %v, expected a struct", t)
	}
	return t, nil
}

// classEmbeds reports whether child embeds parent, directly or through a
// chain of anonymous struct fields. This is the engine's notion of "true
// subtype".
func classEmbeds(child, parent reflect.Type) bool {
	if child == parent {
		return false
	}
	return embedsIndex(child, parent) != nil
}

// embedsIndex returns the field index chain of the embedded parent struct
// inside child, nil when parent is not embedded.
func embedsIndex(child, parent reflect.Type) []int {
	if child.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < child.NumField(); i++ {
		f := child.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft == parent {
			return []int{i}
		}
		if sub := embedsIndex(ft, parent); sub != nil {
			return append([]int{i}, sub...)
		}
	}
	return nil
}

// classField resolves an attribute name to a struct field index chain,
// including fields promoted from embedded structs. ok is false when the
// class has no such attribute.
func classField(t reflect.Type, name string) ([]int, bool) {
	f, ok := t.FieldByName(name)
	if !ok {
		return nil, false
	}
	return f.Index, true
}

// fieldTag reads the `mapper` struct tag of a named attribute, "" when
// the attribute or tag is absent.
func fieldTag(t reflect.Type, name string) string {
	if f, ok := t.FieldByName(name); ok {
		return f.Tag.Get("mapper")
	}
	return ""
}
