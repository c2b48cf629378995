package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/specforge/specforge/internal/logging"
)

// Parse parses and validates a surface document from raw bytes.
func Parse(data []byte, format Format) (*Document, error) {
	return ParseWithContext(context.Background(), data, format)
}

// ParseWithContext parses a surface document from the provided bytes using
// the given context to obtain a logger. The document is normalized to JSON,
// checked against the document schema, semantically validated, and gated on
// specVersion. A returned *Document passed all checks.
func ParseWithContext(ctx context.Context, data []byte, format Format) (*Document, error) {
	log := logging.FromContext(ctx)
	log.Debug().
		Ctx(ctx).
		Str("component", "spec").
		Str("operation", "parse").
		Str("format", string(format)).
		Int("data_size_bytes", len(data)).
		Msg("parsing surface document")

	jsonBytes, err := normalizeToJSON(data, format)
	if err != nil {
		log.Error().
			Ctx(ctx).
			Str("component", "spec").
			Str("operation", "parse").
			Err(err).
			Msg("failed to normalize document")
		return nil, err
	}

	issues, err := validateSchema(jsonBytes)
	if err != nil {
		log.Error().
			Ctx(ctx).
			Str("component", "spec").
			Str("operation", "parse").
			Err(err).
			Msg("failed to evaluate document schema")
		return nil, err
	}
	if len(issues) > 0 {
		log.Error().
			Ctx(ctx).
			Str("component", "spec").
			Str("operation", "parse").
			Int("issue_count", len(issues)).
			Msg("document failed schema validation")
		return nil, &ValidationError{Issues: issues}
	}

	var doc Document
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding document: %v", ErrMalformedDocument, err)
	}

	if err := CheckVersion(doc.SpecVersion); err != nil {
		log.Error().
			Ctx(ctx).
			Str("component", "spec").
			Str("spec_version", doc.SpecVersion).
			Err(err).
			Msg("document version not supported")
		return nil, err
	}

	if issues := validateSemantics(&doc); len(issues) > 0 {
		log.Error().
			Ctx(ctx).
			Str("component", "spec").
			Str("operation", "parse").
			Int("issue_count", len(issues)).
			Msg("document failed semantic validation")
		return nil, &ValidationError{Issues: issues}
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "spec").
		Str("title", doc.Title).
		Int("operation_count", len(doc.Operations)).
		Msg("document parsed successfully")

	return &doc, nil
}

// Load loads and validates the surface document at the given path.
func Load(path string) (*Document, error) {
	return LoadWithContext(context.Background(), path)
}

// LoadWithContext loads and validates the surface document at the given
// path using the logger carried in ctx. The format is detected from the
// file extension.
func LoadWithContext(ctx context.Context, path string) (*Document, error) {
	log := logging.FromContext(ctx)
	log.Debug().
		Ctx(ctx).
		Str("component", "spec").
		Str("operation", "load").
		Str("document_path", path).
		Msg("loading surface document")

	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().
			Ctx(ctx).
			Str("component", "spec").
			Err(err).
			Str("document_path", path).
			Msg("failed to read document file")
		return nil, fmt.Errorf("reading document file: %w", err)
	}

	return ParseWithContext(ctx, data, format)
}

// normalizeToJSON converts document bytes of any supported format into
// plain JSON so a single schema and decoder cover all formats.
func normalizeToJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatJSONC:
		return jsonc.ToJSON(data), nil
	case FormatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decoding YAML: %v", ErrMalformedDocument, err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: converting YAML to JSON: %v", ErrMalformedDocument, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
