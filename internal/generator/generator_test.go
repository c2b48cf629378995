package generator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/engine"
	"github.com/specforge/specforge/internal/spec"
)

const surfaceJSON = `{
  "specVersion": "1.0.0",
  "title": "Pet Store API",
  "baseUrl": "https://api.petstore.test",
  "defaults": {
    "credential": "sandbox",
    "headers": {"Accept": "application/json"}
  },
  "operations": [
    {
      "id": "listPets",
      "method": "GET",
      "path": "/pets",
      "request": {
        "query": {
          "limit": {"type": "integer", "required": true, "example": 20},
          "tag": {"type": "string"}
        }
      },
      "responses": {"200": {"description": "ok"}}
    },
    {
      "id": "getPet",
      "method": "GET",
      "path": "/pets/{petId}",
      "responses": {"200": {}, "304": {}, "404": {}}
    },
    {
      "id": "createPet",
      "method": "POST",
      "path": "/pets",
      "credential": "admin",
      "request": {
        "headers": {"Idempotency-Key": {"type": "string", "required": true}},
        "body": {"name": "rex"}
      },
      "responses": {"201": {}}
    }
  ]
}`

func loadSurface(t *testing.T) (*spec.Document, []engine.Operation) {
	t.Helper()
	doc, err := spec.Parse([]byte(surfaceJSON), spec.FormatJSON)
	require.NoError(t, err)
	return doc, doc.EngineOperations()
}

func decodeCase(t *testing.T, artifact engine.Artifact) TestCase {
	t.Helper()
	var tc TestCase
	require.NoError(t, json.Unmarshal(artifact.Data, &tc))
	return tc
}

func TestGenerator_Transform(t *testing.T) {
	ctx := context.Background()

	t.Run("EmitsRequestAndNegativeCases", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{}).Transform(ctx, ops, doc)
		require.NoError(t, err)

		ids := make([]string, len(artifacts))
		for i, artifact := range artifacts {
			ids[i] = artifact.ID
		}
		assert.Equal(t, []string{
			"listPets-request",
			"listPets-no-query-limit",
			"getPet-request",
			"createPet-request",
			"createPet-no-header-Idempotency-Key",
		}, ids)
	})

	t.Run("RequestCaseShape", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{}).Transform(ctx, ops[:1], doc)
		require.NoError(t, err)
		require.NotEmpty(t, artifacts)

		request := artifacts[0]
		assert.Equal(t, KindRequest, request.Kind)
		assert.Equal(t, "GET /pets#listPets", request.OperationKey)

		tc := decodeCase(t, request)
		assert.Equal(t, "listPets", tc.Name)
		assert.Equal(t, "GET", tc.Request.Method)
		assert.Equal(t, "https://api.petstore.test/pets?limit=20&tag=example", tc.Request.URL)
		assert.Equal(t, "application/json", tc.Request.Headers["Accept"])
		assert.Equal(t, "{{credential:sandbox}}", tc.Request.Headers["Authorization"])
		assert.Equal(t, []int{200}, tc.Expect.Status)
	})

	t.Run("FillsPathParams", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{}).Transform(ctx, ops[1:2], doc)
		require.NoError(t, err)

		tc := decodeCase(t, artifacts[0])
		assert.Equal(t, "https://api.petstore.test/pets/1", tc.Request.URL)
	})

	t.Run("SuccessStatusesOnly", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{}).Transform(ctx, ops[1:2], doc)
		require.NoError(t, err)

		tc := decodeCase(t, artifacts[0])
		assert.Equal(t, []int{200, 304}, tc.Expect.Status)
	})

	t.Run("CredentialOverride", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{DisableNegative: true}).Transform(ctx, ops[2:3], doc)
		require.NoError(t, err)

		tc := decodeCase(t, artifacts[0])
		assert.Equal(t, "{{credential:admin}}", tc.Request.Headers["Authorization"])
	})

	t.Run("BodyPassthrough", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{DisableNegative: true}).Transform(ctx, ops[2:3], doc)
		require.NoError(t, err)

		tc := decodeCase(t, artifacts[0])
		assert.JSONEq(t, `{"name":"rex"}`, string(tc.Request.Body))
	})

	t.Run("NegativeOmitsOnlyTargetField", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{}).Transform(ctx, ops, doc)
		require.NoError(t, err)

		var missingQuery, missingHeader *engine.Artifact
		for i := range artifacts {
			switch artifacts[i].ID {
			case "listPets-no-query-limit":
				missingQuery = &artifacts[i]
			case "createPet-no-header-Idempotency-Key":
				missingHeader = &artifacts[i]
			}
		}
		require.NotNil(t, missingQuery)
		require.NotNil(t, missingHeader)

		queryCase := decodeCase(t, *missingQuery)
		assert.Equal(t, KindNegative, missingQuery.Kind)
		assert.Equal(t, "https://api.petstore.test/pets?tag=example", queryCase.Request.URL)
		assert.Equal(t, []int{400}, queryCase.Expect.Status)

		headerCase := decodeCase(t, *missingHeader)
		assert.NotContains(t, headerCase.Request.Headers, "Idempotency-Key")
		assert.Equal(t, "application/json", headerCase.Request.Headers["Accept"])
		assert.Equal(t, "{{credential:admin}}", headerCase.Request.Headers["Authorization"])
	})

	t.Run("DisableNegative", func(t *testing.T) {
		doc, ops := loadSurface(t)
		artifacts, err := New(Options{DisableNegative: true}).Transform(ctx, ops, doc)
		require.NoError(t, err)

		require.Len(t, artifacts, 3)
		for _, artifact := range artifacts {
			assert.Equal(t, KindRequest, artifact.Kind)
		}
	})

	t.Run("DeterministicAcrossCalls", func(t *testing.T) {
		doc, ops := loadSurface(t)
		gen := New(Options{})

		first, err := gen.Transform(ctx, ops, doc)
		require.NoError(t, err)
		second, err := gen.Transform(ctx, ops, doc)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("NoCredentialNoAuthHeader", func(t *testing.T) {
		bare, err := spec.Parse([]byte(`{
  "specVersion": "1.0.0",
  "title": "Bare",
  "operations": [{"id": "ping", "method": "GET", "path": "/ping"}]
}`), spec.FormatJSON)
		require.NoError(t, err)

		artifacts, err := New(Options{}).Transform(ctx, bare.EngineOperations(), bare)
		require.NoError(t, err)
		require.Len(t, artifacts, 1)

		tc := decodeCase(t, artifacts[0])
		assert.Equal(t, "/ping", tc.Request.URL)
		assert.Empty(t, tc.Request.Headers)
		assert.Equal(t, []int{200}, tc.Expect.Status)
	})

	t.Run("EmptyDefinitionFallsBack", func(t *testing.T) {
		doc, _ := loadSurface(t)
		op := engine.Operation{ID: "probe", Method: "GET", Path: "/health"}

		artifacts, err := New(Options{}).Transform(ctx, []engine.Operation{op}, doc)
		require.NoError(t, err)
		require.Len(t, artifacts, 1)

		tc := decodeCase(t, artifacts[0])
		assert.Equal(t, "https://api.petstore.test/health", tc.Request.URL)
		assert.Equal(t, []int{200}, tc.Expect.Status)
	})

	t.Run("UnsupportedSpecHandle", func(t *testing.T) {
		_, ops := loadSurface(t)
		_, err := New(Options{}).Transform(ctx, ops, struct{}{})
		require.ErrorIs(t, err, ErrUnsupportedSpec)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		doc, ops := loadSurface(t)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(Options{}).Transform(cancelled, ops, doc)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCredentialRef(t *testing.T) {
	assert.Equal(t, "{{credential:sandbox}}", CredentialRef("sandbox"))
}
