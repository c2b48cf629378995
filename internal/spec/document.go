package spec

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specforge/specforge/internal/engine"
)

// Format identifies a source document encoding.
type Format string

const (
	// FormatYAML is a YAML document (.yaml, .yml).
	FormatYAML Format = "yaml"

	// FormatJSON is a plain JSON document (.json).
	FormatJSON Format = "json"

	// FormatJSONC is JSON with comments and trailing commas (.jsonc).
	FormatJSONC Format = "jsonc"
)

// DetectFormat maps a file path's extension to a document format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Document is a parsed and validated API surface document.
type Document struct {
	// SpecVersion is the document format version, a semantic version string.
	SpecVersion string `json:"specVersion"`

	// Title names the API surface.
	Title string `json:"title"`

	// Description is an optional longer summary.
	Description string `json:"description,omitempty"`

	// BaseURL is the base endpoint the generated requests target.
	BaseURL string `json:"baseUrl,omitempty"`

	// Defaults are document-level settings operations inherit.
	Defaults Defaults `json:"defaults,omitempty"`

	// Operations are the API operations, in document order.
	Operations []OperationDef `json:"operations"`
}

// Defaults are document-level settings applied to every operation unless
// the operation overrides them.
type Defaults struct {
	// Credential names the credential store entry requests authenticate with.
	Credential string `json:"credential,omitempty"`

	// Headers are sent with every generated request.
	Headers map[string]string `json:"headers,omitempty"`
}

// OperationDef is one operation as authored in the document.
type OperationDef struct {
	// ID is the unique operation identifier (e.g. "listUsers").
	ID string `json:"id"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Path is the route template (e.g. "/users/{id}").
	Path string `json:"path"`

	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty"`

	// Credential overrides the document default credential for this operation.
	Credential string `json:"credential,omitempty"`

	// Request describes the request surface used to synthesize inputs.
	Request *RequestDef `json:"request,omitempty"`

	// Responses maps status codes ("200", "404") to expected responses.
	Responses map[string]ResponseDef `json:"responses,omitempty"`

	// Raw is the operation's normalized JSON definition, retained verbatim
	// so downstream transforms see exactly what was authored.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the operation and keeps a copy of the raw JSON in
// Raw.
func (o *OperationDef) UnmarshalJSON(data []byte) error {
	type operationDef OperationDef
	var def operationDef
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*o = OperationDef(def)
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// RequestDef describes what a request to the operation looks like.
type RequestDef struct {
	// Query declares the query string parameters.
	Query map[string]FieldDef `json:"query,omitempty"`

	// Headers declares request headers beyond the document defaults.
	Headers map[string]FieldDef `json:"headers,omitempty"`

	// Body is an example request body, passed through verbatim.
	Body json.RawMessage `json:"body,omitempty"`
}

// FieldDef describes one request parameter or header.
type FieldDef struct {
	// Type is the value type ("string", "integer", "boolean", "number").
	Type string `json:"type,omitempty"`

	// Required marks the field as mandatory; negative artifacts omit it.
	Required bool `json:"required,omitempty"`

	// Example is a sample value used when synthesizing requests.
	Example interface{} `json:"example,omitempty"`
}

// ResponseDef describes an expected response for one status code.
type ResponseDef struct {
	// Description summarizes when the status occurs.
	Description string `json:"description,omitempty"`

	// Body is an example response body, passed through verbatim.
	Body json.RawMessage `json:"body,omitempty"`
}

// EngineOperations converts the document's operations into engine inputs.
// Each operation carries its raw definition so transforms can read fields
// the typed model does not surface.
func (d *Document) EngineOperations() []engine.Operation {
	ops := make([]engine.Operation, len(d.Operations))
	for i, def := range d.Operations {
		ops[i] = engine.Operation{
			ID:          def.ID,
			Method:      def.Method,
			Path:        def.Path,
			Description: def.Description,
			Definition:  def.Raw,
		}
	}
	return ops
}

// CredentialFor resolves the credential name an operation should use,
// falling back to the document default. Empty means unauthenticated.
func (d *Document) CredentialFor(def OperationDef) string {
	if def.Credential != "" {
		return def.Credential
	}
	return d.Defaults.Credential
}
