package spec

import "errors"

var (
	// ErrUnsupportedFormat indicates the document's file extension maps to
	// no known encoding.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrMalformedDocument indicates the document bytes could not be
	// decoded at all.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrInvalidDocument indicates a decodable document that violates the
	// schema or semantic rules. Use errors.As with *ValidationError to
	// inspect the individual issues.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrUnsupportedVersion indicates the document declares a specVersion
	// outside the range this build understands.
	ErrUnsupportedVersion = errors.New("unsupported spec version")
)
