package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/docspec/registry"
	"github.com/vitalvas/docspec/schema"
	"github.com/vitalvas/docspec/typeexpr"
)

func buildTestRegistry() *registry.Registry {
	b := &registry.Builder{}

	b.Add(&registry.Symbol{
		Name:   "TaskModel",
		Module: "app.models",
		Model: typeexpr.NewObject("TaskModel", []typeexpr.Field{
			{Name: "id", Type: typeexpr.NewScalar("str")},
		}),
	})
	b.Add(&registry.Symbol{
		Name:   "ModelA",
		Module: "app.models",
		Model: typeexpr.NewObject("ModelA", []typeexpr.Field{
			{Name: "a", Type: typeexpr.NewScalar("str")},
		}),
	})
	b.Add(&registry.Symbol{
		Name:   "ModelB",
		Module: "app.models",
		Model: typeexpr.NewObject("ModelB", []typeexpr.Field{
			{Name: "b", Type: typeexpr.NewScalar("int")},
		}),
	})
	b.Add(&registry.Symbol{
		Name:   "make_a",
		Module: "app.factories",
		Return: "ModelA",
	})
	b.Add(&registry.Symbol{
		Name:   "make_b",
		Module: "app.factories",
		Return: "ModelB",
	})

	b.Add(&registry.Symbol{
		Name:   "get_task",
		Module: "app.handlers",
		Doc: `Fetch the status of a task.

Tags:
    tasks

Requests:
    params:
        offset (int): Start offset
        limit (Optional[int]): Page size

Responses:
    Success: ResponseSchema(200, "Task status", MimeTypes.json, "TaskModel")
    Failure: ResponseSchema(404, "Unknown task", MimeTypes.json)
`,
	})
	b.Add(&registry.Symbol{
		Name:   "create_entry",
		Module: "app.handlers",
		Doc: "Create an entry.\n\nRequests:\n    body:\n        data: Union[:func:`make_a`, :func:`make_b`]\n\nResponses:\n    Created: ResponseSchema(201, \"Created\", MimeTypes.json)\n",
	})
	b.Add(&registry.Symbol{
		Name:   "ping",
		Module: "app.handlers",
		Doc:    "",
	})
	b.Add(&registry.Symbol{
		Name:   "relay",
		Module: "app.handlers",
		Doc:    "Relayed endpoint.\n\nMap:\n    /v1/tasks/<string:task_id>/status\n",
	})
	b.Add(&registry.Symbol{
		Name:   "broken_relay",
		Module: "app.handlers",
		Doc:    "Relay to nowhere.\n\nMap:\n    /v1/ghost\n",
	})
	b.Add(&registry.Symbol{
		Name:   "plain_text",
		Module: "app.handlers",
		Doc:    "Returns plain text.\n\nReturns:\n    str: A literal string\n",
		Return: "str",
	})
	b.Add(&registry.Symbol{
		Name:   "unannotated",
		Module: "app.handlers",
		Doc:    "No annotation anywhere.\n\nTags:\n    broken\n",
	})
	b.Add(&registry.Symbol{
		Name:          "secret",
		Module:        "app.handlers",
		Doc:           "Needs a login.\n\nReturns:\n    TaskModel: The task\n",
		Return:        "TaskModel",
		LoginRequired: true,
	})

	return b.Build()
}

func newTestGenerator(t *testing.T, cfg Config) (*Generator, *registry.Registry) {
	t.Helper()
	reg := buildTestRegistry()
	g, err := NewGenerator(cfg, reg)
	require.NoError(t, err)
	return g, reg
}

func lookupHandler(t *testing.T, reg *registry.Registry, name string) *registry.Symbol {
	t.Helper()
	sym, ok := reg.Lookup(name)
	require.True(t, ok)
	return sym
}

func TestNewGenerator(t *testing.T) {
	reg := buildTestRegistry()

	t.Run("bad template fails at construction", func(t *testing.T) {
		_, err := NewGenerator(Config{OperationIDTemplate: "[[%f]]"}, reg)
		assert.ErrorIs(t, err, ErrBadTemplate)
	})

	t.Run("bad exclude pattern fails at construction", func(t *testing.T) {
		_, err := NewGenerator(Config{Exclude: []string{"("}}, reg)
		assert.Error(t, err)
	})
}

func TestGenerateGetEndpoint(t *testing.T) {
	g, reg := newTestGenerator(t, Config{Title: "svc", OperationIDTemplate: "%f"})
	doc, report := g.Generate([]Route{{
		Path:    "/v1/tasks/<string:task_id>/status",
		Method:  "GET",
		Handler: lookupHandler(t, reg, "get_task"),
	}})
	require.Empty(t, report.Errors)

	assert.Equal(t, "3.0.1", doc.OpenAPI)
	item, ok := doc.Paths["/v1/tasks/{task_id}/status"]
	require.True(t, ok)
	op := item.Get
	require.NotNil(t, op)

	assert.Equal(t, "Fetch the status of a task.", op.Description)
	assert.Equal(t, []string{"tasks"}, op.Tags)
	assert.Equal(t, "get_task", op.OperationID)

	require.Len(t, op.Parameters, 3)
	assert.Equal(t, "task_id", op.Parameters[0].Name)
	assert.Equal(t, "path", op.Parameters[0].In)
	assert.True(t, op.Parameters[0].Required)
	assert.Equal(t, "string", op.Parameters[0].Schema.Type)

	assert.Equal(t, "offset", op.Parameters[1].Name)
	assert.Equal(t, "query", op.Parameters[1].In)
	assert.True(t, op.Parameters[1].Required)
	assert.Equal(t, "integer", op.Parameters[1].Schema.Type)

	assert.Equal(t, "limit", op.Parameters[2].Name)
	assert.False(t, op.Parameters[2].Required)
	assert.True(t, op.Parameters[2].Schema.Nullable)

	// The required flag lives on the parameter, not inside its schema.
	assert.False(t, op.Parameters[1].Schema.Required)
	assert.False(t, op.Parameters[2].Schema.Required)

	require.Contains(t, op.Responses, "200")
	require.Contains(t, op.Responses, "404")
	okResp := op.Responses["200"]
	assert.Equal(t, "Task status", okResp.Description)
	media := okResp.Content["application/json"]
	require.NotNil(t, media)
	assert.Equal(t, "#/components/schemas/TaskModel", media.Schema.Ref)

	require.NotNil(t, doc.Components)
	def, ok := doc.Components.Schemas["TaskModel"]
	require.True(t, ok)
	assert.Equal(t, "TaskModel", def.Title)

	// Unauthenticated endpoint carries an explicit empty security list.
	require.NotNil(t, op.Security)
	assert.Empty(t, *op.Security)
}

func TestGeneratePostBodyUnion(t *testing.T) {
	g, reg := newTestGenerator(t, Config{})
	doc, report := g.Generate([]Route{{
		Path:    "/v1/entries",
		Method:  "POST",
		Handler: lookupHandler(t, reg, "create_entry"),
	}})
	require.Empty(t, report.Errors)

	op := doc.Paths["/v1/entries"].Post
	require.NotNil(t, op)
	require.NotNil(t, op.RequestBody)
	assert.Equal(t, "body", op.XCodegenRequestBodyName)

	body := op.RequestBody.Content["application/json"].Schema
	require.NotNil(t, body)
	assert.Equal(t, "object", body.Type)

	data, ok := body.Property("data")
	require.True(t, ok)
	require.Len(t, data.AnyOf, 2)
	assert.Equal(t, "#/components/schemas/ModelA", data.AnyOf[0].Ref)
	assert.Equal(t, "#/components/schemas/ModelB", data.AnyOf[1].Ref)

	assert.Contains(t, doc.Components.Schemas, "ModelA")
	assert.Contains(t, doc.Components.Schemas, "ModelB")
	require.Contains(t, op.Responses, "201")
}

func TestGenerateEmptyDocstring(t *testing.T) {
	g, reg := newTestGenerator(t, Config{})
	doc, report := g.Generate([]Route{{
		Path:    "/ping",
		Method:  "GET",
		Handler: lookupHandler(t, reg, "ping"),
	}})
	require.Empty(t, report.Errors)

	op := doc.Paths["/ping"].Get
	require.NotNil(t, op)
	assert.Empty(t, op.Description)
	require.Contains(t, op.Responses, "200")
}

func TestGenerateMapRedirect(t *testing.T) {
	g, reg := newTestGenerator(t, Config{})
	routes := []Route{
		{Path: "/v1/tasks/<string:task_id>/status", Method: "GET", Handler: lookupHandler(t, reg, "get_task")},
		{Path: "/v1/relay", Method: "GET", Handler: lookupHandler(t, reg, "relay")},
	}
	doc, report := g.Generate(routes)
	require.Empty(t, report.Errors)

	relayed := doc.Paths["/v1/relay"].Get
	require.NotNil(t, relayed)
	// The relay endpoint speaks with the target handler's docstring.
	assert.Equal(t, "Fetch the status of a task.", relayed.Description)
	require.Contains(t, relayed.Responses, "200")
}

func TestGenerateDeadEndRedirect(t *testing.T) {
	g, reg := newTestGenerator(t, Config{})
	doc, report := g.Generate([]Route{{
		Path:    "/v1/broken",
		Method:  "GET",
		Handler: lookupHandler(t, reg, "broken_relay"),
	}})

	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], ErrDeadEndRedirect)
	assert.True(t, report.Failed())

	// The endpoint still appears, downgraded to a generic response.
	op := doc.Paths["/v1/broken"].Get
	require.NotNil(t, op)
	require.Contains(t, op.Responses, "200")
	assert.Equal(t, "object", op.Responses["200"].Content["application/json"].Schema.Type)
}

func TestGenerateInferredResponses(t *testing.T) {
	g, reg := newTestGenerator(t, Config{})

	t.Run("non-model return degrades with a warning", func(t *testing.T) {
		doc, report := g.Generate([]Route{{
			Path:    "/v1/text",
			Method:  "GET",
			Handler: lookupHandler(t, reg, "plain_text"),
		}})
		require.Empty(t, report.Errors)
		require.NotEmpty(t, report.Warnings)

		op := doc.Paths["/v1/text"].Get
		assert.Equal(t, "object", op.Responses["200"].Content["application/json"].Schema.Type)
	})

	t.Run("missing annotation is a hard error", func(t *testing.T) {
		doc, report := g.Generate([]Route{{
			Path:    "/v1/unannotated",
			Method:  "GET",
			Handler: lookupHandler(t, reg, "unannotated"),
		}})
		require.Len(t, report.Errors, 1)
		assert.ErrorIs(t, report.Errors[0], ErrNoReturnAnnotation)
		assert.NotContains(t, doc.Paths, "/v1/unannotated")
	})
}

func TestGenerateSecurity(t *testing.T) {
	t.Run("login required omits the security field", func(t *testing.T) {
		g, reg := newTestGenerator(t, Config{})
		doc, report := g.Generate([]Route{{
			Path:          "/v1/secret",
			Method:        "GET",
			Handler:       lookupHandler(t, reg, "secret"),
			LoginRequired: true,
		}})
		require.Empty(t, report.Errors)

		op := doc.Paths["/v1/secret"].Get
		require.NotNil(t, op)
		assert.Nil(t, op.Security)
	})

	t.Run("document defaults come from config", func(t *testing.T) {
		schemes := map[string]*SecurityScheme{
			"cookieAuth": {Description: "Session cookie", Type: "apiKey", In: "cookie", Name: "session"},
		}
		def := SecurityRequirements{{"cookieAuth": {}}}
		g, reg := newTestGenerator(t, Config{SecuritySchemes: schemes, Security: def})
		doc, report := g.Generate([]Route{
			{Path: "/v1/secret", Method: "GET", Handler: lookupHandler(t, reg, "secret"), LoginRequired: true},
			{Path: "/ping", Method: "GET", Handler: lookupHandler(t, reg, "ping")},
		})
		require.Empty(t, report.Errors)

		assert.Equal(t, def, doc.Security)
		require.NotNil(t, doc.Components)
		assert.Equal(t, schemes, doc.Components.SecuritySchemes)

		// The guarded endpoint defers to the document default; the open
		// one opts out with an explicit empty list.
		assert.Nil(t, doc.Paths["/v1/secret"].Get.Security)
		open := doc.Paths["/ping"].Get.Security
		require.NotNil(t, open)
		assert.Empty(t, *open)
	})
}

func TestGenerateRouteFiltering(t *testing.T) {
	g, reg := newTestGenerator(t, Config{Exclude: []string{"^/internal"}})
	doc, report := g.Generate([]Route{
		{Path: "/internal/debug", Method: "GET", Handler: lookupHandler(t, reg, "ping")},
		{Path: "/v1/put_thing", Method: "PUT", Handler: lookupHandler(t, reg, "ping")},
		{Path: "/ping", Method: "GET", Handler: lookupHandler(t, reg, "ping")},
	})

	assert.Equal(t, []string{"/internal/debug"}, report.Excluded)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "PUT", report.Errors[0].Method)
	assert.Len(t, doc.Paths, 1)
	assert.Contains(t, doc.Paths, "/ping")
}

func TestGenerateDeduplicatesInlineSchemas(t *testing.T) {
	pair := &schema.Node{
		Type: "object",
		Properties: []schema.Prop{
			{Name: "data", Schema: &schema.Node{
				AnyOf: []*schema.Node{
					{Ref: "#/components/schemas/ModelA"},
					{Ref: "#/components/schemas/ModelB"},
				},
			}},
		},
		RequiredProps: []string{"data"},
	}
	g, reg := newTestGenerator(t, Config{ExtraSchemas: map[string]*schema.Node{"EntryBody": pair}})
	doc, report := g.Generate([]Route{{
		Path:    "/v1/entries",
		Method:  "POST",
		Handler: lookupHandler(t, reg, "create_entry"),
	}})
	require.Empty(t, report.Errors)

	assert.Contains(t, doc.Components.Schemas, "EntryBody")
	body := doc.Paths["/v1/entries"].Post.RequestBody.Content["application/json"].Schema
	assert.Equal(t, "#/components/schemas/EntryBody", body.Ref)
}

func TestGenerateRunID(t *testing.T) {
	g, reg := newTestGenerator(t, Config{})
	_, first := g.Generate([]Route{{Path: "/ping", Method: "GET", Handler: lookupHandler(t, reg, "ping")}})
	_, second := g.Generate([]Route{{Path: "/ping", Method: "GET", Handler: lookupHandler(t, reg, "ping")}})
	assert.NotEqual(t, first.ID, second.ID)
}
