package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrQueryRequired signals a caller-contract violation: hybrid search
	// requires free text, not just tags. Distinct from an empty result set.
	ErrQueryRequired = errors.New("query text required")
)
