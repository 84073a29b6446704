package registry

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrAlreadyExists is returned by Store.InsertUnique when a record with
	// the same canonical text is already persisted.
	ErrAlreadyExists = errors.New("signature already exists")
)

// Reason is the user-facing validation message for a rejected signature.
type Reason string

const (
	ReasonUnknownFormat Reason = "Unknown signature format"
	ReasonNotNormalized Reason = "Signature could not be normalized"
)

// FieldTextSignature names the input field validation errors refer to.
const FieldTextSignature = "text_signature"

// InvalidSignatureError reports why raw text was rejected. It matches
// ErrInvalidSignature and the underlying parse error with errors.Is.
type InvalidSignatureError struct {
	Field  string
	Raw    string
	Reason Reason
	Err    error
}

func (e *InvalidSignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Reason, e.Raw)
}

func (e *InvalidSignatureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidSignature}
	}
	return []error{ErrInvalidSignature, e.Err}
}

func invalid(raw string, reason Reason, cause error) error {
	return &InvalidSignatureError{
		Field:  FieldTextSignature,
		Raw:    raw,
		Reason: reason,
		Err:    cause,
	}
}
