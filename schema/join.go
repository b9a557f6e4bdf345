package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoForeignKeys no usable foreign key between the two selectables
	ErrNoForeignKeys = errors.New("no foreign keys between selectables")
	// ErrAmbiguousForeignKeys more than one candidate join condition
	ErrAmbiguousForeignKeys = errors.New("ambiguous foreign keys between selectables")
)

// ColumnPair is one equated column pair of a join condition.
type ColumnPair struct {
	Left, Right *Column
}

// Join composes two selectables over an equality condition. A join is
// itself a Selectable, so joined-table inheritance chains nest joins.
type Join struct {
	Left, Right Selectable
	On          []ColumnPair
	Outer       bool
}

// NewJoin builds a join with an explicit condition. When on is nil the
// condition is inferred from foreign keys; inference failures surface as
// ErrNoForeignKeys / ErrAmbiguousForeignKeys.
func NewJoin(left, right Selectable, on []ColumnPair) (*Join, error) {
	if len(on) == 0 {
		inferred, err := InferCondition(left, right)
		if err != nil {
			return nil, err
		}
		on = inferred
	}
	return &Join{Left: left, Right: right, On: on}, nil
}

// OuterJoin is NewJoin with the outer flag set, used by the polymorphic
// selection helpers.
func OuterJoin(left, right Selectable, on []ColumnPair) (*Join, error) {
	j, err := NewJoin(left, right, on)
	if err != nil {
		return nil, err
	}
	j.Outer = true
	return j, nil
}

func (j *Join) SelectableName() string {
	op := "JOIN"
	if j.Outer {
		op = "LEFT OUTER JOIN"
	}
	return fmt.Sprintf("(%s %s %s ON %s)", j.Left.SelectableName(), op, j.Right.SelectableName(), j.condString())
}

func (j *Join) Columns() []*Column {
	return append(append([]*Column{}, j.Left.Columns()...), j.Right.Columns()...)
}

func (j *Join) PrimaryKey() []*Column {
	return append(append([]*Column{}, j.Left.PrimaryKey()...), j.Right.PrimaryKey()...)
}

func (j *Join) Contains(c *Column) bool {
	return j.Left.Contains(c) || j.Right.Contains(c)
}

func (j *Join) Tables() []*Table {
	return append(append([]*Table{}, j.Left.Tables()...), j.Right.Tables()...)
}

// EquatedPairs collects every column pair equated anywhere in this join
// tree. Primary-key reduction treats equated columns as one key column.
func (j *Join) EquatedPairs() []ColumnPair {
	pairs := append([]ColumnPair{}, j.On...)
	if lj, ok := j.Left.(*Join); ok {
		pairs = append(pairs, lj.EquatedPairs()...)
	}
	if rj, ok := j.Right.(*Join); ok {
		pairs = append(pairs, rj.EquatedPairs()...)
	}
	return pairs
}

func (j *Join) condString() string {
	parts := make([]string, len(j.On))
	for i, p := range j.On {
		parts[i] = p.Left.String() + " = " + p.Right.String()
	}
	return strings.Join(parts, " AND ")
}

// InferCondition derives the join condition between two selectables from
// foreign key constraints. Exactly one constraint in either direction must
// link the two; zero constraints is ErrNoForeignKeys and more than one is
// ErrAmbiguousForeignKeys, the caller then has to pass an explicit
// condition.
func InferCondition(left, right Selectable) ([]ColumnPair, error) {
	var candidates [][]ColumnPair

	// right's tables pointing into left
	for _, t := range right.Tables() {
		for _, fk := range t.ForeignKeys {
			if pairs := fkPairs(fk, left, right); pairs != nil {
				candidates = append(candidates, pairs)
			}
		}
	}
	// left's tables pointing into right
	for _, t := range left.Tables() {
		for _, fk := range t.ForeignKeys {
			if pairs := fkPairs(fk, right, left); pairs != nil {
				// normalize so Left refers to the left selectable
				flipped := make([]ColumnPair, len(pairs))
				for i, p := range pairs {
					flipped[i] = ColumnPair{Left: p.Right, Right: p.Left}
				}
				candidates = append(candidates, flipped)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %s and %s", ErrNoForeignKeys, left.SelectableName(), right.SelectableName())
	case 1:
		return candidates[0], nil
	default:
		return nil, fmt.Errorf("%w: %s and %s have %d candidate conditions, supply one explicitly",
			ErrAmbiguousForeignKeys, left.SelectableName(), right.SelectableName(), len(candidates))
	}
}

// fkPairs returns the condition pairs of fk when it links from owner into
// target, with Left on the target side.
func fkPairs(fk ForeignKey, target, owner Selectable) []ColumnPair {
	pairs := make([]ColumnPair, 0, len(fk.Columns))
	for i, c := range fk.Columns {
		ref := fk.RefColumns[i]
		if !target.Contains(ref) || !owner.Contains(c) {
			return nil
		}
		pairs = append(pairs, ColumnPair{Left: ref, Right: c})
	}
	return pairs
}
