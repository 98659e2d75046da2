package app

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is shown to end users on any login mismatch and
	// must not enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")

	// ErrNotFound covers both missing records and records owned by another
	// client; callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	ErrUploadFailed        = errors.New("upload failed")
	ErrMetadataWriteFailed = errors.New("asset metadata write failed")
)

// ValidationError carries field-keyed messages for intake payloads.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
