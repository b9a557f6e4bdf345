package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit/schema"
)

func TestNewTableWiresColumns(t *testing.T) {
	id := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	name := &schema.Column{Name: "name", DataType: schema.String}
	table := schema.NewTable("employees", id, name)

	assert.Equal(t, "employees", table.SelectableName())
	assert.Equal(t, table, id.Table)
	assert.Equal(t, table, name.Table)
	assert.True(t, table.Contains(id))
	assert.Equal(t, []*schema.Column{id}, table.PrimaryKey())
	assert.Equal(t, id, table.C("id"))
	assert.Nil(t, table.C("missing"))
	assert.Equal(t, "employees.id", id.String())
}

func TestNewTableRejectsReattachedColumn(t *testing.T) {
	id := &schema.Column{Name: "id"}
	schema.NewTable("a", id)
	assert.Panics(t, func() {
		schema.NewTable("b", id)
	})
}

func TestPrimaryKeyPreservesDeclaredOrder(t *testing.T) {
	b := &schema.Column{Name: "b", PrimaryKey: true}
	a := &schema.Column{Name: "a", PrimaryKey: true}
	table := schema.NewTable("pairs", b, a)

	require.Len(t, table.PrimaryKey(), 2)
	assert.Equal(t, "b", table.PrimaryKey()[0].Name)
	assert.Equal(t, "a", table.PrimaryKey()[1].Name)
}

func TestAddForeignKeyValidation(t *testing.T) {
	id := &schema.Column{Name: "id", PrimaryKey: true}
	parent := schema.NewTable("parents", id)
	childID := &schema.Column{Name: "id", PrimaryKey: true}
	child := schema.NewTable("children", childID)

	assert.Panics(t, func() {
		child.AddForeignKey("fk_bad", []*schema.Column{childID}, nil)
	})

	child.AddForeignKey("fk_children_parents", []*schema.Column{childID}, []*schema.Column{id})
	require.Len(t, child.ForeignKeys, 1)
	assert.Equal(t, parent, child.ForeignKeys[0].RefTable())
}
