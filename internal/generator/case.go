package generator

import "encoding/json"

// Artifact kinds emitted by the generator.
const (
	KindRequest  = "request"
	KindNegative = "negative"
)

// TestCase is the payload of one generated artifact.
type TestCase struct {
	// Name is a human-readable case name.
	Name string `json:"name"`

	// Request is the HTTP request to issue.
	Request RequestCase `json:"request"`

	// Expect describes the acceptable outcome.
	Expect Expectation `json:"expect"`
}

// RequestCase is a fully materialized HTTP request.
type RequestCase struct {
	// Method is the HTTP method.
	Method string `json:"method"`

	// URL is the complete request URL with path parameters and example
	// query values filled in.
	URL string `json:"url"`

	// Headers are the request headers. Credential references appear here
	// unresolved, as {{credential:NAME}} placeholders.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the request body, passed through from the document.
	Body json.RawMessage `json:"body,omitempty"`
}

// Expectation describes what a conforming server should answer.
type Expectation struct {
	// Status lists the acceptable HTTP status codes, ascending.
	Status []int `json:"status"`
}

// CredentialRef formats a by-name credential placeholder. Runners replace
// it with the resolved secret at execution time.
func CredentialRef(name string) string {
	return "{{credential:" + name + "}}"
}
