package mapper_test

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit/logger"
	"github.com/ormkit/ormkit/mapper"
	"github.com/ormkit/ormkit/schema"
)

type Employee struct {
	ID   int64
	Name string
	Type string
}

type Manager struct {
	Employee
	ManagerName string
}

type Engineer struct {
	Employee
	Engine string
}

type VicePresident struct {
	Manager
	Budget int64
}

// fixture is one isolated inheritance setup: its own registry, recorder
// logger and freshly built tables.
type fixture struct {
	registry *mapper.Registry
	log      *logger.RecorderLogger

	employees *schema.Table
	managers  *schema.Table
	engineers *schema.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry: mapper.NewRegistry(t.Name()),
		log:      &logger.RecorderLogger{LogLevel: logger.Warn},
	}
	f.registry.Logger = f.log
	t.Cleanup(f.registry.Dispose)

	empID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true, AutoIncrement: true}
	empName := &schema.Column{Name: "name", DataType: schema.String}
	empType := &schema.Column{Name: "type", DataType: schema.String}
	f.employees = schema.NewTable("employees", empID, empName, empType)

	mgrID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	mgrName := &schema.Column{Name: "manager_name", DataType: schema.String}
	f.managers = schema.NewTable("managers", mgrID, mgrName)
	f.managers.AddForeignKey("fk_managers_employees",
		[]*schema.Column{mgrID}, []*schema.Column{empID})

	engID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	engEngine := &schema.Column{Name: "engine", DataType: schema.String}
	f.engineers = schema.NewTable("engineers", engID, engEngine)
	f.engineers.AddForeignKey("fk_engineers_employees",
		[]*schema.Column{engID}, []*schema.Column{empID})

	return f
}

// mapEmployee maps the polymorphic chain root.
func (f *fixture) mapEmployee(t *testing.T) *mapper.Mapper {
	t.Helper()
	m, err := mapper.New(Employee{}, f.employees, mapper.Options{
		Registry:            f.registry,
		PolymorphicOn:       f.employees.C("type"),
		PolymorphicIdentity: "employee",
	})
	require.NoError(t, err, "mapping Employee")
	return m
}

func (f *fixture) mapManager(t *testing.T, parent *mapper.Mapper) *mapper.Mapper {
	t.Helper()
	m, err := mapper.New(Manager{}, f.managers, mapper.Options{
		Registry:            f.registry,
		Inherits:            parent,
		PolymorphicIdentity: "manager",
	})
	require.NoError(t, err, "mapping Manager")
	return m
}

// checkProperty asserts a property exists and maps the expected columns,
// dumping the property on mismatch.
func checkProperty(t *testing.T, m *mapper.Mapper, name string, columns ...*schema.Column) mapper.Property {
	t.Helper()
	p, err := m.GetProperty(name)
	require.NoError(t, err, "property %q on %s", name, m)
	require.Equal(t, len(columns), len(p.Columns()),
		"column count of %q on %s: %s", name, m, spew.Sdump(p))
	for i, col := range columns {
		require.Same(t, col, p.Columns()[i],
			"column %d of %q on %s: %s", i, name, m, spew.Sdump(p))
	}
	return p
}
