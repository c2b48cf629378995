package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/specforge/specforge/internal/engine"
	"github.com/specforge/specforge/internal/logging"
	"github.com/specforge/specforge/internal/spec"
)

// ErrUnsupportedSpec indicates the transform received a spec handle it
// cannot read. The generator expects a *spec.Document.
var ErrUnsupportedSpec = errors.New("unsupported spec handle type")

var pathParamPattern = regexp.MustCompile(`\{[^{}]+\}`)

// Options configure artifact synthesis.
type Options struct {
	// DisableNegative turns off negative-case artifacts; only "request"
	// artifacts are produced.
	DisableNegative bool
}

// Generator synthesizes test-case artifacts from operation descriptors.
// It is stateless after construction and safe for concurrent Transform
// calls from engine workers.
type Generator struct {
	opts Options
}

// New returns a Generator with the given options.
func New(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Transform synthesizes artifacts for one batch of operations. It
// satisfies engine.TransformFunc; the spec handle must be the
// *spec.Document the operations were built from.
func (g *Generator) Transform(ctx context.Context, operations []engine.Operation, handle engine.SpecHandle) ([]engine.Artifact, error) {
	doc, ok := handle.(*spec.Document)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSpec, handle)
	}

	log := logging.FromContext(ctx)
	log.Debug().
		Ctx(ctx).
		Str("component", "generator").
		Str("operation", "transform").
		Int("operation_count", len(operations)).
		Msg("synthesizing test cases")

	artifacts := make([]engine.Artifact, 0, len(operations))
	for _, op := range operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		def, err := decodeDefinition(op)
		if err != nil {
			return nil, err
		}

		request, err := g.requestArtifact(doc, op, def)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, request)

		if !g.opts.DisableNegative {
			negatives, err := g.negativeArtifacts(doc, op, def)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, negatives...)
		}
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "generator").
		Int("artifact_count", len(artifacts)).
		Msg("test cases synthesized")

	return artifacts, nil
}

// decodeDefinition recovers the typed operation definition from the raw
// JSON the engine carried through. Identity fields always come from the
// descriptor itself.
func decodeDefinition(op engine.Operation) (spec.OperationDef, error) {
	var def spec.OperationDef
	if len(op.Definition) > 0 {
		if err := json.Unmarshal(op.Definition, &def); err != nil {
			return spec.OperationDef{}, fmt.Errorf("decoding definition for %s: %w", op.Key(), err)
		}
	}
	def.ID = op.ID
	def.Method = op.Method
	def.Path = op.Path
	return def, nil
}

func (g *Generator) requestArtifact(doc *spec.Document, op engine.Operation, def spec.OperationDef) (engine.Artifact, error) {
	tc := TestCase{
		Name: op.ID,
		Request: RequestCase{
			Method:  op.Method,
			URL:     requestURL(doc, op, def, ""),
			Headers: requestHeaders(doc, def, ""),
			Body:    requestBody(def),
		},
		Expect: Expectation{Status: expectedStatuses(def)},
	}
	return artifactFor(op, op.ID+"-request", KindRequest, op.ID, tc)
}

// negativeArtifacts produces one case per required request field with that
// field omitted, expecting the server to reject the request.
func (g *Generator) negativeArtifacts(doc *spec.Document, op engine.Operation, def spec.OperationDef) ([]engine.Artifact, error) {
	if def.Request == nil {
		return nil, nil
	}

	var artifacts []engine.Artifact
	for _, name := range requiredFields(def.Request.Query) {
		tc := TestCase{
			Name: fmt.Sprintf("%s without query %s", op.ID, name),
			Request: RequestCase{
				Method:  op.Method,
				URL:     requestURL(doc, op, def, name),
				Headers: requestHeaders(doc, def, ""),
				Body:    requestBody(def),
			},
			Expect: Expectation{Status: []int{400}},
		}
		artifact, err := artifactFor(op, fmt.Sprintf("%s-no-query-%s", op.ID, name), KindNegative, tc.Name, tc)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	for _, name := range requiredFields(def.Request.Headers) {
		tc := TestCase{
			Name: fmt.Sprintf("%s without header %s", op.ID, name),
			Request: RequestCase{
				Method:  op.Method,
				URL:     requestURL(doc, op, def, ""),
				Headers: requestHeaders(doc, def, name),
				Body:    requestBody(def),
			},
			Expect: Expectation{Status: []int{400}},
		}
		artifact, err := artifactFor(op, fmt.Sprintf("%s-no-header-%s", op.ID, name), KindNegative, tc.Name, tc)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

func artifactFor(op engine.Operation, id, kind, name string, tc TestCase) (engine.Artifact, error) {
	data, err := json.Marshal(tc)
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("encoding test case %s: %w", id, err)
	}
	return engine.Artifact{
		ID:           id,
		OperationKey: op.Key(),
		Kind:         kind,
		Name:         name,
		Data:         data,
	}, nil
}

// requestURL joins the document base URL with the operation path, fills
// path parameters, and appends example query values. omitQuery names one
// query parameter to leave out.
func requestURL(doc *spec.Document, op engine.Operation, def spec.OperationDef, omitQuery string) string {
	full := strings.TrimSuffix(doc.BaseURL, "/") + fillPathParams(op.Path)

	if def.Request == nil {
		return full
	}
	values := url.Values{}
	for _, name := range sortedFieldNames(def.Request.Query) {
		if name == omitQuery {
			continue
		}
		values.Set(name, fieldValue(def.Request.Query[name]))
	}
	if encoded := values.Encode(); encoded != "" {
		full += "?" + encoded
	}
	return full
}

// requestHeaders merges document default headers, declared header fields,
// and the credential reference. omitHeader names one declared header to
// leave out.
func requestHeaders(doc *spec.Document, def spec.OperationDef, omitHeader string) map[string]string {
	headers := make(map[string]string)
	for name, value := range doc.Defaults.Headers {
		headers[name] = value
	}
	if def.Request != nil {
		for _, name := range sortedFieldNames(def.Request.Headers) {
			if name == omitHeader {
				continue
			}
			headers[name] = fieldValue(def.Request.Headers[name])
		}
	}
	if cred := doc.CredentialFor(def); cred != "" {
		headers["Authorization"] = CredentialRef(cred)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func requestBody(def spec.OperationDef) json.RawMessage {
	if def.Request == nil {
		return nil
	}
	return def.Request.Body
}

// expectedStatuses derives the acceptable statuses from the declared
// success responses, defaulting to 200 when none are declared.
func expectedStatuses(def spec.OperationDef) []int {
	var statuses []int
	for code := range def.Responses {
		n, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		if n >= 200 && n < 400 {
			statuses = append(statuses, n)
		}
	}
	sort.Ints(statuses)
	if len(statuses) == 0 {
		statuses = []int{200}
	}
	return statuses
}

// fieldValue picks a concrete value for a field: the declared example if
// present, otherwise a type-appropriate default.
func fieldValue(field spec.FieldDef) string {
	if field.Example != nil {
		switch v := field.Example.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			encoded, _ := json.Marshal(v)
			return string(encoded)
		}
	}
	switch field.Type {
	case "integer":
		return "1"
	case "number":
		return "1.5"
	case "boolean":
		return "true"
	default:
		return "example"
	}
}

func fillPathParams(path string) string {
	return pathParamPattern.ReplaceAllString(path, "1")
}

func sortedFieldNames(fields map[string]spec.FieldDef) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func requiredFields(fields map[string]spec.FieldDef) []string {
	var names []string
	for name, field := range fields {
		if field.Required {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
