package engine

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnknownCandidate = errors.New("unknown candidate")
	ErrBusy             = errors.New("candidate is busy")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotConfigured    = errors.New("candidate is not configured")
)

// Field names used in FieldErrors.
const (
	FieldAPIKey    = "api_key"
	FieldAPIHost   = "api_host"
	FieldModelType = "model_type"
	FieldEndpoint  = "endpoint"
)

// FieldErrors maps a field name to its user-facing message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field, msg := range e {
		fields = append(fields, field+": "+msg)
	}
	sort.Strings(fields)
	return "invalid input: " + strings.Join(fields, "; ")
}

func (e FieldErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e FieldErrors) clone() FieldErrors {
	if len(e) == 0 {
		return nil
	}
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
