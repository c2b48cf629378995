package spec

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the JSON Schema every surface document must satisfy
// after normalization to JSON. It pins the required identity fields and
// value shapes but deliberately leaves room for extension fields, which
// reach transforms through OperationDef.Raw.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "API surface document",
  "type": "object",
  "required": ["specVersion", "title", "operations"],
  "properties": {
    "specVersion": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "baseUrl": {"type": "string"},
    "defaults": {
      "type": "object",
      "properties": {
        "credential": {"type": "string"},
        "headers": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        }
      }
    },
    "operations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "method", "path"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Za-z][A-Za-z0-9_-]*$"},
          "method": {
            "type": "string",
            "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"]
          },
          "path": {"type": "string", "pattern": "^/"},
          "description": {"type": "string"},
          "credential": {"type": "string"},
          "request": {
            "type": "object",
            "properties": {
              "query": {"$ref": "#/definitions/fieldMap"},
              "headers": {"$ref": "#/definitions/fieldMap"}
            }
          },
          "responses": {"type": "object"}
        }
      }
    }
  },
  "definitions": {
    "fieldMap": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {
            "type": "string",
            "enum": ["string", "integer", "number", "boolean"]
          },
          "required": {"type": "boolean"}
        }
      }
    }
  }
}`

// Issue is a single schema or semantic violation found in a document.
type Issue struct {
	// Path locates the violation (e.g. "operations.2.method").
	Path string `json:"path"`

	// Message describes the violation.
	Message string `json:"message"`
}

// ValidationError aggregates every violation found in a document.
// errors.Is(err, ErrInvalidDocument) holds for it.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("invalid document: %s: %s", e.Issues[0].Path, e.Issues[0].Message)
	}
	return fmt.Sprintf("invalid document: %d issues, first: %s: %s",
		len(e.Issues), e.Issues[0].Path, e.Issues[0].Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDocument }

// validateSchema checks normalized JSON bytes against the document schema.
// It returns one Issue per violation; a non-nil error means the bytes could
// not be evaluated at all.
func validateSchema(jsonBytes []byte) ([]Issue, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(jsonBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if result.Valid() {
		return nil, nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		issues = append(issues, Issue{
			Path:    violation.Field(),
			Message: violation.Description(),
		})
	}
	return issues, nil
}

// validateSemantics enforces the document rules a JSON Schema cannot
// express: operation ids must be unique and response keys must be HTTP
// status codes.
func validateSemantics(doc *Document) []Issue {
	var issues []Issue

	seen := make(map[string]int, len(doc.Operations))
	for i, op := range doc.Operations {
		if first, dup := seen[op.ID]; dup {
			issues = append(issues, Issue{
				Path: fmt.Sprintf("operations.%d.id", i),
				Message: fmt.Sprintf("duplicate operation id %q, first declared at operations.%d",
					op.ID, first),
			})
		} else {
			seen[op.ID] = i
		}

		statuses := make([]string, 0, len(op.Responses))
		for status := range op.Responses {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			if !validStatusCode(status) {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("operations.%d.responses.%s", i, status),
					Message: fmt.Sprintf("%q is not an HTTP status code", status),
				})
			}
		}
	}

	return issues
}

func validStatusCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 100 && n <= 599
}
