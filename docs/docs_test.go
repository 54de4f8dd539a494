package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swaggerDoc struct {
	Swagger     string                                `json:"swagger"`
	BasePath    string                                `json:"basePath"`
	Info        struct{ Title, Version string }       `json:"info"`
	Paths       map[string]map[string]json.RawMessage `json:"paths"`
	Definitions map[string]json.RawMessage            `json:"definitions"`
}

func readDoc(t *testing.T) swaggerDoc {
	t.Helper()
	raw := SwaggerInfo.ReadDoc()
	var doc swaggerDoc
	require.NoError(t, json.Unmarshal([]byte(raw), &doc), "rendered swagger document must be valid JSON")
	return doc
}

func TestSwaggerDoc_Renders(t *testing.T) {
	doc := readDoc(t)

	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "/", doc.BasePath)
	assert.Equal(t, "UniOrder API", doc.Info.Title)
}

func TestSwaggerDoc_CoversRoutes(t *testing.T) {
	doc := readDoc(t)

	routes := map[string][]string{
		"/health":                               {"get"},
		"/webhooks/{partner}":                   {"post"},
		"/api/v1/orders":                        {"get"},
		"/api/v1/orders/counts":                 {"get"},
		"/api/v1/orders/stream":                 {"get"},
		"/api/v1/orders/{id}":                   {"get"},
		"/api/v1/orders/{id}/audit":             {"get"},
		"/api/v1/orders/{id}/transition":        {"post"},
		"/api/v1/orders/{id}/cancel":            {"post"},
		"/api/v1/orders/{id}/notes":             {"patch"},
		"/api/v1/integrations":                  {"get"},
		"/api/v1/integrations/stats":            {"get"},
		"/api/v1/integrations/test":             {"post"},
		"/api/v1/integrations/{partner}":        {"get", "put", "delete"},
		"/api/v1/integrations/{partner}/toggle": {"patch"},
		"/api/v1/integrations/{partner}/test":   {"post"},
		"/api/v1/restaurant/status":             {"get", "patch"},
		"/api/v1/restaurant/auto-accept":        {"patch"},
		"/api/v1/system/info":                   {"get"},
		"/api/v1/system/ping":                   {"get"},
	}

	for path, methods := range routes {
		ops, ok := doc.Paths[path]
		if !assert.True(t, ok, "missing path %s", path) {
			continue
		}
		for _, m := range methods {
			assert.Contains(t, ops, m, "missing %s %s", m, path)
		}
	}
	assert.Len(t, doc.Paths, len(routes))
}

func TestSwaggerDoc_ReferencesResolve(t *testing.T) {
	raw := SwaggerInfo.ReadDoc()
	doc := readDoc(t)

	var refs []string
	var walk func(v any)
	walk = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			for k, child := range n {
				if s, ok := child.(string); ok && k == "$ref" {
					refs = append(refs, s)
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range n {
				walk(child)
			}
		}
	}
	var tree any
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))
	walk(tree)

	require.NotEmpty(t, refs)
	const prefix = "#/definitions/"
	for _, ref := range refs {
		require.Greater(t, len(ref), len(prefix))
		assert.Contains(t, doc.Definitions, ref[len(prefix):], "dangling reference %s", ref)
	}
}
