package mapper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit/mapper"
	"github.com/ormkit/ormkit/schema"
)

func TestRootMapperImplicitProperties(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	checkProperty(t, emp, "ID", f.employees.C("id"))
	checkProperty(t, emp, "Name", f.employees.C("name"))
	typeProp := checkProperty(t, emp, "Type", f.employees.C("type"))

	cp, ok := typeProp.(*mapper.ColumnProperty)
	require.True(t, ok)
	assert.True(t, cp.IsDiscriminator())

	assert.Equal(t, []*schema.Column{f.employees.C("id")}, emp.PrimaryKey)
	assert.Equal(t, f.employees, emp.Selectable)
	assert.Equal(t, emp, emp.Base())
}

func TestJoinedTableInheritance(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)
	mgr := f.mapManager(t, emp)

	// the primary key reduces to the employee side of the join, the
	// persist selectable is the join, and the chain-shared polymorphic
	// map knows the subtype
	assert.Equal(t, []*schema.Column{f.employees.C("id")}, mgr.PrimaryKey)

	join, ok := mgr.Selectable.(*schema.Join)
	require.True(t, ok, "persist selectable of %s should be a join", mgr)
	assert.Equal(t, f.employees, join.Left)
	assert.Equal(t, f.managers, join.Right)

	assert.Same(t, mgr, emp.PolymorphicMap()["manager"])
	assert.Same(t, emp, emp.PolymorphicMap()["employee"])
	assert.Equal(t, emp, mgr.Base())
	assert.True(t, mgr.IsaMapper(emp))
	assert.False(t, emp.IsaMapper(mgr))

	// the id columns of both sides are combined under one attribute
	checkProperty(t, mgr, "ID", f.employees.C("id"), f.managers.C("id"))
	checkProperty(t, mgr, "ManagerName", f.managers.C("manager_name"))
}

func TestSingleTableInheritance(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	mgr, err := mapper.New(Manager{}, nil, mapper.Options{
		Registry:            f.registry,
		Inherits:            emp,
		PolymorphicIdentity: "manager",
	})
	require.NoError(t, err)

	// no table of its own; storage is entirely the parent's
	assert.Nil(t, mgr.LocalTable)
	assert.Equal(t, emp.Selectable, mgr.Selectable)
	assert.True(t, mgr.Single)
	assert.Equal(t, emp.PrimaryKey, mgr.PrimaryKey)
}

func TestDuplicatePrimaryMapper(t *testing.T) {
	f := newFixture(t)
	f.mapEmployee(t)

	_, err := mapper.New(Employee{}, f.employees, mapper.Options{Registry: f.registry})
	require.Error(t, err)
	assert.ErrorIs(t, err, mapper.ErrArgument)
	assert.Contains(t, err.Error(), "already has a primary mapper defined")
}

func TestNonPrimaryMapperRequiresPrimary(t *testing.T) {
	f := newFixture(t)

	_, err := mapper.New(Employee{}, f.employees, mapper.Options{
		Registry:   f.registry,
		NonPrimary: true,
	})
	assert.ErrorIs(t, err, mapper.ErrInvalidRequest)

	f.mapEmployee(t)
	second, err := mapper.New(Employee{}, f.employees, mapper.Options{
		Registry:   f.registry,
		NonPrimary: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestInheritanceRequiresEmbedding(t *testing.T) {
	type Unrelated struct{ ID int64 }

	f := newFixture(t)
	emp := f.mapEmployee(t)

	_, err := mapper.New(Unrelated{}, f.managers, mapper.Options{
		Registry: f.registry,
		Inherits: emp,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, mapper.ErrArgument)
	assert.Contains(t, err.Error(), "does not embed")
}

func TestJoinedInheritanceNoForeignKeys(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	orphanTable := schema.NewTable("floaters",
		&schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true})

	_, err := mapper.New(Manager{}, orphanTable, mapper.Options{
		Registry: f.registry,
		Inherits: emp,
	})
	assert.ErrorIs(t, err, schema.ErrNoForeignKeys)
}

func TestJoinedInheritanceAmbiguousForeignKeys(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	mgrID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	reportsTo := &schema.Column{Name: "reports_to", DataType: schema.Int}
	doubled := schema.NewTable("doubled_managers", mgrID, reportsTo)
	doubled.AddForeignKey("fk_id", []*schema.Column{mgrID}, []*schema.Column{f.employees.C("id")})
	doubled.AddForeignKey("fk_reports", []*schema.Column{reportsTo}, []*schema.Column{f.employees.C("id")})

	_, err := mapper.New(Manager{}, doubled, mapper.Options{
		Registry: f.registry,
		Inherits: emp,
	})
	assert.ErrorIs(t, err, schema.ErrAmbiguousForeignKeys)

	// an explicit condition resolves the ambiguity
	mgr, err := mapper.New(Manager{}, doubled, mapper.Options{
		Registry:         f.registry,
		Inherits:         emp,
		InheritCondition: []schema.ColumnPair{{Left: f.employees.C("id"), Right: mgrID}},
	})
	require.NoError(t, err)
	assert.Equal(t, []*schema.Column{f.employees.C("id")}, mgr.PrimaryKey)
}

func TestPolymorphicIdentityReassignmentWarns(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)
	f.mapManager(t, emp)

	_, err := mapper.New(Engineer{}, f.engineers, mapper.Options{
		Registry:            f.registry,
		Inherits:            emp,
		PolymorphicIdentity: "manager", // reuses the Manager identity
	})
	require.NoError(t, err)

	require.NotEmpty(t, f.log.Warns)
	assert.Contains(t, f.log.Warns[len(f.log.Warns)-1], "reassigning polymorphic association")
	// last write wins
	assert.Equal(t, "Engineer", emp.PolymorphicMap()["manager"].ClassName)
}

func TestVersionColumnInheritedAndMismatchWarns(t *testing.T) {
	f := newFixture(t)

	version := &schema.Column{Name: "version", DataType: schema.Int}
	empID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	employees := schema.NewTable("versioned_employees", empID, version)

	mgrID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	mgrVersion := &schema.Column{Name: "mgr_version", DataType: schema.Int}
	managers := schema.NewTable("versioned_managers", mgrID, mgrVersion)
	managers.AddForeignKey("fk", []*schema.Column{mgrID}, []*schema.Column{empID})

	type VEmployee struct {
		ID      int64
		Version int64
	}
	type VManager struct {
		VEmployee
		MgrVersion int64
	}

	emp, err := mapper.New(VEmployee{}, employees, mapper.Options{
		Registry: f.registry,
		Version:  version,
	})
	require.NoError(t, err)

	inherited, err := mapper.New(VManager{}, managers, mapper.Options{
		Registry: f.registry,
		Inherits: emp,
	})
	require.NoError(t, err)
	assert.Same(t, version, inherited.Version)
	assert.Empty(t, f.log.Warns)

	f.registry.Dispose()
	f2 := newFixture(t)

	empID2 := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	version2 := &schema.Column{Name: "version", DataType: schema.Int}
	employees2 := schema.NewTable("versioned_employees_2", empID2, version2)
	mgrID2 := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	mgrVersion2 := &schema.Column{Name: "mgr_version", DataType: schema.Int}
	managers2 := schema.NewTable("versioned_managers_2", mgrID2, mgrVersion2)
	managers2.AddForeignKey("fk", []*schema.Column{mgrID2}, []*schema.Column{empID2})

	emp2, err := mapper.New(VEmployee{}, employees2, mapper.Options{
		Registry: f2.registry,
		Version:  version2,
	})
	require.NoError(t, err)

	overridden, err := mapper.New(VManager{}, managers2, mapper.Options{
		Registry: f2.registry,
		Inherits: emp2,
		Version:  mgrVersion2,
	})
	require.NoError(t, err)
	assert.Same(t, mgrVersion2, overridden.Version)
	require.NotEmpty(t, f2.log.Warns)
	assert.Contains(t, f2.log.Warns[0], "version column")
}

func TestPassiveDeletesForcedOnDescendants(t *testing.T) {
	f := newFixture(t)

	on := true
	off := false
	emp, err := mapper.New(Employee{}, f.employees, mapper.Options{
		Registry:       f.registry,
		PassiveDeletes: &on,
	})
	require.NoError(t, err)

	mgr, err := mapper.New(Manager{}, f.managers, mapper.Options{
		Registry:       f.registry,
		Inherits:       emp,
		PassiveDeletes: &off, // ignored, the parent forces it
	})
	require.NoError(t, err)
	assert.True(t, mgr.PassiveDeletes)
}

func TestConcreteInheritance(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	// fully independent table, no FK to the parent
	cID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	cName := &schema.Column{Name: "name", DataType: schema.String}
	cEngine := &schema.Column{Name: "engine", DataType: schema.String}
	concreteEngineers := schema.NewTable("concrete_engineers", cID, cName, cEngine)

	eng, err := mapper.New(Engineer{}, concreteEngineers, mapper.Options{
		Registry: f.registry,
		Inherits: emp,
		Concrete: true,
	})
	require.NoError(t, err)

	assert.Equal(t, concreteEngineers, eng.Selectable)
	assert.True(t, eng.Concrete)
	// own primary key, not the parent's
	assert.Equal(t, []*schema.Column{cID}, eng.PrimaryKey)
	// same-named columns re-map locally
	checkProperty(t, eng, "Name", cName)
	checkProperty(t, eng, "Engine", cEngine)
	// the parent-only attribute becomes a placeholder
	p, err := eng.GetProperty("Type")
	require.NoError(t, err)
	_, isPlaceholder := p.(*mapper.ConcreteInheritedProperty)
	assert.True(t, isPlaceholder, "Type on concrete mapper should be a placeholder, got %T", p)

	// the split makes the ancestor discriminator ambiguous
	assert.True(t, emp.RequiresRowAliasing)
}

func TestExcludeAndIncludeProperties(t *testing.T) {
	f := newFixture(t)

	emp, err := mapper.New(Employee{}, f.employees, mapper.Options{
		Registry:          f.registry,
		ExcludeProperties: []string{"Name"},
	})
	require.NoError(t, err)
	_, err = emp.GetProperty("Name")
	assert.ErrorIs(t, err, mapper.ErrInvalidRequest)

	f.registry.Dispose()
	f2 := newFixture(t)
	limited, err := mapper.New(Employee{}, f2.employees, mapper.Options{
		Registry:          f2.registry,
		IncludeProperties: []string{"ID", "type"},
	})
	require.NoError(t, err)
	checkProperty(t, limited, "ID", f2.employees.C("id"))
	checkProperty(t, limited, "Type", f2.employees.C("type"))
	_, err = limited.GetProperty("Name")
	assert.ErrorIs(t, err, mapper.ErrInvalidRequest)
}

func TestNewInstanceStampsPolymorphicIdentity(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)
	mgr := f.mapManager(t, emp)

	inst := mgr.NewInstance()
	m, ok := inst.(*Manager)
	require.True(t, ok)
	assert.Equal(t, "manager", m.Type)

	e, ok := emp.NewInstance().(*Employee)
	require.True(t, ok)
	assert.Equal(t, "employee", e.Type)
}

func TestConstructAndLoadHooks(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)
	mgr := f.mapManager(t, emp)

	var constructed, loaded []string
	emp.OnLoad(func(interface{}) { loaded = append(loaded, "employee") })
	mgr.OnLoad(func(interface{}) { loaded = append(loaded, "manager") })
	mgr.OnConstruct(func(interface{}) { constructed = append(constructed, "manager") })

	inst := mgr.NewInstance()
	assert.Equal(t, []string{"manager"}, constructed)

	mgr.RunLoadHooks(inst)
	// ancestors first
	assert.Equal(t, []string{"employee", "manager"}, loaded)
}

func TestGetPropertyByColumn(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	p, err := emp.GetPropertyByColumn(f.employees.C("name"))
	require.NoError(t, err)
	assert.Equal(t, "Name", p.PropertyName())

	stranger := &schema.Column{Name: "stray"}
	schema.NewTable("strays", stranger)
	_, err = emp.GetPropertyByColumn(stranger)
	assert.ErrorIs(t, err, mapper.ErrUnmappedColumn)
}

func TestPropertiesInsertionOrder(t *testing.T) {
	f := newFixture(t)
	emp := f.mapEmployee(t)

	props, err := emp.Properties()
	require.NoError(t, err)
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.PropertyName()
	}
	assert.Equal(t, []string{"ID", "Name", "Type"}, names)
}

func TestLocalColumnConflictFails(t *testing.T) {
	f := newFixture(t)

	// a root mapper over a join of two unrelated same-named columns must
	// refuse to alias them under one attribute
	aID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	aName := &schema.Column{Name: "name", DataType: schema.String}
	left := schema.NewTable("left_parts", aID, aName)

	bID := &schema.Column{Name: "id", DataType: schema.Int, PrimaryKey: true}
	bName := &schema.Column{Name: "name", DataType: schema.String}
	right := schema.NewTable("right_parts", bID, bName)
	right.AddForeignKey("fk", []*schema.Column{bID}, []*schema.Column{aID})

	join, err := schema.NewJoin(left, right, nil)
	require.NoError(t, err)

	type Part struct {
		ID   int64
		Name string
	}
	_, err = mapper.New(Part{}, join, mapper.Options{Registry: f.registry})
	require.Error(t, err)
	assert.ErrorIs(t, err, mapper.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "conflict under attribute name")
}
