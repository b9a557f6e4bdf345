package mapper

import (
	"fmt"
	"reflect"

	"github.com/jinzhu/now"

	"github.com/ormkit/ormkit/schema"
)

// Row is a column-keyed value set sourced from storage.
type Row map[*schema.Column]interface{}

// IdentityKey is the canonical object identity consumed by the session
// identity map: the chain's identity class, the ordered primary key
// values, and the registry identity token. It is computed on demand,
// never stored.
type IdentityKey struct {
	Class  reflect.Type
	Values []interface{}
	Token  string
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("IdentityKey(%s, %v, %s)", k.Class, k.Values, k.Token)
}

// Equal reports whether two identity keys denote the same object.
func (k IdentityKey) Equal(other IdentityKey) bool {
	if k.Class != other.Class || k.Token != other.Token || len(k.Values) != len(other.Values) {
		return false
	}
	for i, v := range k.Values {
		if !reflect.DeepEqual(v, other.Values[i]) {
			return false
		}
	}
	return true
}

// IdentityKeyFromRow derives the identity key from a row-sourced value
// set. String values of time-typed key columns are parsed, matching how
// row scanning coerces them elsewhere.
func (m *Mapper) IdentityKeyFromRow(row Row) (IdentityKey, error) {
	if err := m.checkConfigure(); err != nil {
		return IdentityKey{}, err
	}
	values := make([]interface{}, len(m.PrimaryKey))
	for i, col := range m.PrimaryKey {
		v, ok := row[col]
		if !ok {
			// an equated column of the same key may carry the value
			for rc := range row {
				if m.columnsEquivalent(col, rc) {
					v, ok = row[rc], true
					break
				}
			}
		}
		if !ok {
			return IdentityKey{}, fmt.Errorf("%w: row has no value for primary key column %s of %s",
				ErrArgument, col, m)
		}
		values[i] = coerceKeyValue(col, v)
	}
	return m.identityKey(values), nil
}

// IdentityKeyFromPrimaryKey derives the identity key from plain primary
// key values in canonical column order.
func (m *Mapper) IdentityKeyFromPrimaryKey(values []interface{}) (IdentityKey, error) {
	if err := m.checkConfigure(); err != nil {
		return IdentityKey{}, err
	}
	if len(values) != len(m.PrimaryKey) {
		return IdentityKey{}, fmt.Errorf("%w: %d primary key values supplied for %s, expected %d",
			ErrArgument, len(values), m, len(m.PrimaryKey))
	}
	coerced := make([]interface{}, len(values))
	for i, v := range values {
		coerced[i] = coerceKeyValue(m.PrimaryKey[i], v)
	}
	return m.identityKey(coerced), nil
}

// IdentityKeyFromInstance derives the identity key from a live instance
// of the bound class.
func (m *Mapper) IdentityKeyFromInstance(instance interface{}) (IdentityKey, error) {
	values, err := m.PrimaryKeyFromInstance(instance)
	if err != nil {
		return IdentityKey{}, err
	}
	return m.identityKey(values), nil
}

// PrimaryKeyFromInstance reads the primary key values off a live
// instance in canonical column order.
func (m *Mapper) PrimaryKeyFromInstance(instance interface{}) ([]interface{}, error) {
	if err := m.checkConfigure(); err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(instance)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || (rv.Type() != m.Class && !classEmbeds(rv.Type(), m.Class)) {
		return nil, fmt.Errorf("%w: instance of %s is not mapped by %s", ErrArgument, rv.Type(), m)
	}

	values := make([]interface{}, len(m.PrimaryKey))
	for i, col := range m.PrimaryKey {
		prop, ok := m.columnToProperty[col]
		if !ok {
			return nil, fmt.Errorf("%w: no property on %s maps primary key column %s", ErrUnmappedColumn, m, col)
		}
		idx, ok := m.fields[prop.PropertyName()]
		if rv.Type() != m.Class {
			// subtype instance handed to an ancestor mapper; resolve the
			// promoted field on the concrete type
			idx, ok = classField(rv.Type(), prop.PropertyName())
		}
		if !ok {
			return nil, fmt.Errorf("%w: class %s has no attribute %q for primary key column %s",
				ErrInvalidRequest, m.Class, prop.PropertyName(), col)
		}
		values[i] = rv.FieldByIndex(idx).Interface()
	}
	return values, nil
}

func (m *Mapper) identityKey(values []interface{}) IdentityKey {
	return IdentityKey{
		Class:  m.identityClass,
		Values: values,
		Token:  m.registry.Token,
	}
}

// coerceKeyValue normalizes a raw row value for key comparison. Time
// columns accept string values from drivers without native time support.
func coerceKeyValue(col *schema.Column, v interface{}) interface{} {
	if col.DataType == schema.Time {
		if s, ok := v.(string); ok {
			if t, err := now.Parse(s); err == nil {
				return t
			}
		}
	}
	return v
}
