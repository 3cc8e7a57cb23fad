package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/docspec/typeexpr"
)

func buildTestRegistry() *Registry {
	b := &Builder{}
	b.Add(&Symbol{
		Name:   "get_stuff",
		Module: "app.handlers",
		Doc:    "Fetch stuff.\n\nReturns:\n    TaskModel: The task\n",
		Return: "TaskModel",
	})
	b.Add(&Symbol{
		Name:   "_reinit_session_helper",
		Module: "app.daemon",
		Class:  "Daemon",
		Doc: `Reinitialize a session.

Args:
    session_key (str): Key identifying the session
`,
		Params: []Param{{Name: "session_key", Type: "str"}},
		Return: "ReinitModel",
	})
	b.Add(&Symbol{
		Name:   "TaskModel",
		Module: "app.models",
		Model: typeexpr.NewObject("TaskModel", []typeexpr.Field{
			{Name: "id", Type: typeexpr.NewScalar("str")},
		}),
	})
	return b.Build()
}

func TestLookup(t *testing.T) {
	r := buildTestRegistry()

	t.Run("qualified", func(t *testing.T) {
		s, ok := r.Lookup("app.handlers.get_stuff")
		require.True(t, ok)
		assert.Equal(t, "get_stuff", s.Name)
	})

	t.Run("class local", func(t *testing.T) {
		s, ok := r.Lookup("Daemon._reinit_session_helper")
		require.True(t, ok)
		assert.Equal(t, "Daemon", s.Class)
	})

	t.Run("bare", func(t *testing.T) {
		_, ok := r.Lookup("get_stuff")
		assert.True(t, ok)
	})

	t.Run("missing", func(t *testing.T) {
		_, ok := r.Lookup("nope")
		assert.False(t, ok)
	})

	t.Run("modules recorded", func(t *testing.T) {
		assert.True(t, r.HasModule("app.daemon"))
		assert.False(t, r.HasModule("app"))
	})
}

func TestResolve(t *testing.T) {
	r := buildTestRegistry()
	from, ok := r.Lookup("Daemon._reinit_session_helper")
	require.True(t, ok)

	t.Run("direct", func(t *testing.T) {
		s := r.Resolve("app.handlers.get_stuff", nil)
		require.NotNil(t, s)
		assert.Equal(t, "get_stuff", s.Name)
	})

	t.Run("module qualified", func(t *testing.T) {
		b := &Builder{}
		b.Add(&Symbol{Name: "TaskModel", Module: "app.models"})
		b.Add(&Symbol{Name: "handler", Module: "app"})
		reg := b.Build()
		caller, _ := reg.Lookup("handler")
		s := reg.Resolve("models.TaskModel", caller)
		require.NotNil(t, s)
		assert.Equal(t, "TaskModel", s.Name)
	})

	t.Run("dotted module last component", func(t *testing.T) {
		b := &Builder{}
		b.Add(&Symbol{Name: "TaskModel", Module: "app.models"})
		b.Add(&Symbol{Name: "handler", Module: "big.app"})
		reg := b.Build()
		caller, _ := reg.Lookup("handler")
		s := reg.Resolve("models.TaskModel", caller)
		require.NotNil(t, s)
		assert.Equal(t, "app.models", s.Module)
	})

	t.Run("class qualified", func(t *testing.T) {
		b := &Builder{}
		b.Add(&Symbol{Name: "status", Module: "app.daemon", Class: "Daemon"})
		b.Add(&Symbol{Name: "restart", Module: "app.daemon", Class: "Daemon"})
		reg := b.Build()
		caller, _ := reg.Lookup("Daemon.restart")
		// Methods have no bare-name entry, so only the class-qualified
		// strategy can find this.
		s := reg.Resolve("status", caller)
		require.NotNil(t, s)
		assert.Equal(t, "status", s.Name)
	})

	t.Run("dangling returns nil", func(t *testing.T) {
		assert.Nil(t, r.Resolve("ghost", from))
	})

	t.Run("repeatable", func(t *testing.T) {
		a := r.Resolve("get_stuff", from)
		b := r.Resolve("get_stuff", from)
		assert.Same(t, a, b)
	})
}

func TestResolveRef(t *testing.T) {
	r := buildTestRegistry()

	t.Run("bare ref defaults to return", func(t *testing.T) {
		sym, attr, ok := r.ResolveRef("see :func:`get_stuff`", nil)
		require.True(t, ok)
		assert.Equal(t, "get_stuff", sym.Name)
		assert.Equal(t, "return", attr)
	})

	t.Run("ref with attribute", func(t *testing.T) {
		sym, attr, ok := r.ResolveRef(":meth:`Daemon._reinit_session_helper`: params", nil)
		require.True(t, ok)
		assert.Equal(t, "_reinit_session_helper", sym.Name)
		assert.Equal(t, "params", attr)
	})

	t.Run("dangling target", func(t *testing.T) {
		_, _, ok := r.ResolveRef(":func:`ghost`", nil)
		assert.False(t, ok)
	})
}

func TestSymbolDocstring(t *testing.T) {
	r := buildTestRegistry()
	s, _ := r.Lookup("get_stuff")
	d := s.Docstring()
	require.NotNil(t, d)
	assert.Equal(t, "Fetch stuff.", d.Description)
	_, ok := d.Returns()
	assert.True(t, ok)
}

func TestLookupType(t *testing.T) {
	r := buildTestRegistry()

	typ, ok := r.LookupType("TaskModel")
	require.True(t, ok)
	assert.Equal(t, typeexpr.KindObject, typ.Kind)

	_, ok = r.LookupType("get_stuff")
	assert.False(t, ok)

	parsed, err := typeexpr.Parse("Optional[TaskModel]", r)
	require.NoError(t, err)
	assert.True(t, parsed.AllowNone())
}
