package typeexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalars(t *testing.T) {
	for expr, name := range map[string]string{
		"str":   "str",
		"int":   "int",
		"float": "float",
		"bool":  "bool",
		"bytes": "bytes",
		"Path":  "path",
	} {
		t.Run(expr, func(t *testing.T) {
			typ, err := Parse(expr, nil)
			require.NoError(t, err)
			assert.Equal(t, KindScalar, typ.Kind)
			assert.Equal(t, name, typ.Name)
			assert.False(t, typ.AllowNone())
		})
	}
}

func TestParseAnyAndNone(t *testing.T) {
	typ, err := Parse("Any", nil)
	require.NoError(t, err)
	assert.Equal(t, KindAny, typ.Kind)
	assert.False(t, typ.AllowNone())

	typ, err = Parse("None", nil)
	require.NoError(t, err)
	assert.Equal(t, KindAny, typ.Kind)
	assert.True(t, typ.AllowNone())
}

func TestParseOptional(t *testing.T) {
	typ, err := Parse("Optional[int]", nil)
	require.NoError(t, err)
	assert.Equal(t, KindScalar, typ.Kind)
	assert.Equal(t, "int", typ.Name)
	assert.True(t, typ.AllowNone())
}

func TestParseUnion(t *testing.T) {
	t.Run("plain members", func(t *testing.T) {
		typ, err := Parse("Union[int, str]", nil)
		require.NoError(t, err)
		require.Equal(t, KindUnion, typ.Kind)
		require.Len(t, typ.Alts, 2)
		assert.Equal(t, "int", typ.Alts[0].Name)
		assert.Equal(t, "str", typ.Alts[1].Name)
		assert.False(t, typ.AllowNone())
	})

	t.Run("none member lifts nullable", func(t *testing.T) {
		typ, err := Parse("Union[int, str, None]", nil)
		require.NoError(t, err)
		require.Equal(t, KindUnion, typ.Kind)
		require.Len(t, typ.Alts, 2)
		assert.True(t, typ.AllowNone())
	})

	t.Run("single survivor collapses", func(t *testing.T) {
		typ, err := Parse("Union[str, None]", nil)
		require.NoError(t, err)
		assert.Equal(t, KindScalar, typ.Kind)
		assert.Equal(t, "str", typ.Name)
		assert.True(t, typ.AllowNone())
	})

	t.Run("direct optional member lifts nullable", func(t *testing.T) {
		typ, err := Parse("Union[Optional[int], str]", nil)
		require.NoError(t, err)
		require.Equal(t, KindUnion, typ.Kind)
		assert.True(t, typ.AllowNone())
		assert.False(t, typ.Alts[0].AllowNone())
	})

	t.Run("nested optionality stays nested", func(t *testing.T) {
		typ, err := Parse("Union[List[Optional[int]], str]", nil)
		require.NoError(t, err)
		require.Equal(t, KindUnion, typ.Kind)
		assert.False(t, typ.AllowNone())
		assert.True(t, typ.Alts[0].Elem.AllowNone())
	})

	t.Run("nested union flattens", func(t *testing.T) {
		typ, err := Parse("Union[Union[int, str], bool]", nil)
		require.NoError(t, err)
		require.Equal(t, KindUnion, typ.Kind)
		assert.Len(t, typ.Alts, 3)
	})
}

func TestParseContainers(t *testing.T) {
	t.Run("bare dict is an object", func(t *testing.T) {
		typ, err := Parse("Dict", nil)
		require.NoError(t, err)
		assert.Equal(t, KindObject, typ.Kind)
		assert.Empty(t, typ.Fields)
	})

	t.Run("keyed dict is a map", func(t *testing.T) {
		typ, err := Parse("Dict[str, int]", nil)
		require.NoError(t, err)
		require.Equal(t, KindMap, typ.Kind)
		assert.Equal(t, "int", typ.Elem.Name)
	})

	t.Run("list", func(t *testing.T) {
		typ, err := Parse("List[str]", nil)
		require.NoError(t, err)
		require.Equal(t, KindArray, typ.Kind)
		assert.Equal(t, "str", typ.Elem.Name)
	})

	t.Run("bare list has no element type", func(t *testing.T) {
		typ, err := Parse("List", nil)
		require.NoError(t, err)
		assert.Equal(t, KindArray, typ.Kind)
		assert.Nil(t, typ.Elem)
	})

	t.Run("variadic tuple", func(t *testing.T) {
		typ, err := Parse("Tuple[int, ...]", nil)
		require.NoError(t, err)
		require.Equal(t, KindArray, typ.Kind)
		assert.Equal(t, "int", typ.Elem.Name)
	})
}

func TestParseCallable(t *testing.T) {
	t.Run("bare", func(t *testing.T) {
		typ, err := Parse("Callable", nil)
		require.NoError(t, err)
		assert.Equal(t, KindCallable, typ.Kind)
		assert.Equal(t, ArgsAny, typ.ArgStyle)
		require.NotNil(t, typ.Ret)
		assert.True(t, typ.Ret.AllowNone())
	})

	t.Run("empty argument list", func(t *testing.T) {
		typ, err := Parse("Callable[[], None]", nil)
		require.NoError(t, err)
		assert.Equal(t, ArgsOmitted, typ.ArgStyle)
		assert.True(t, typ.Ret.AllowNone())
	})

	t.Run("variadic", func(t *testing.T) {
		typ, err := Parse("Callable[..., int]", nil)
		require.NoError(t, err)
		assert.Equal(t, ArgsAny, typ.ArgStyle)
		assert.Equal(t, "int", typ.Ret.Name)
	})

	t.Run("positional arguments", func(t *testing.T) {
		typ, err := Parse("Callable[[int, str], bool]", nil)
		require.NoError(t, err)
		assert.Equal(t, ArgsList, typ.ArgStyle)
		require.Len(t, typ.Args, 2)
		assert.Equal(t, "int", typ.Args[0].Name)
		assert.Equal(t, "str", typ.Args[1].Name)
		assert.Equal(t, "bool", typ.Ret.Name)
	})
}

func TestParseContext(t *testing.T) {
	model := NewObject("TaskModel", []Field{
		{Name: "id", Type: NewScalar("str")},
	})
	ctx := MapContext{"TaskModel": model}

	t.Run("lookup", func(t *testing.T) {
		typ, err := Parse("TaskModel", ctx)
		require.NoError(t, err)
		assert.Equal(t, "TaskModel", typ.Name)
	})

	t.Run("dotted name falls back to last component", func(t *testing.T) {
		typ, err := Parse("models.TaskModel", ctx)
		require.NoError(t, err)
		assert.Equal(t, "TaskModel", typ.Name)
	})

	t.Run("lookups are isolated clones", func(t *testing.T) {
		a, err := Parse("Optional[TaskModel]", ctx)
		require.NoError(t, err)
		assert.True(t, a.AllowNone())

		b, err := Parse("TaskModel", ctx)
		require.NoError(t, err)
		assert.False(t, b.AllowNone())
		assert.False(t, model.AllowNone())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := Parse("Mystery", ctx)
		assert.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("chained contexts", func(t *testing.T) {
		local := MapContext{"Payload": NewObject("Payload", nil)}
		typ, err := Parse("Payload", Chain{local, ctx})
		require.NoError(t, err)
		assert.Equal(t, "Payload", typ.Name)
	})
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, expr := range []string{"", "Union[", "Dict[str]", "List[int", "Callable[int]", "int]"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr, nil)
			assert.Error(t, err)
		})
	}
}
