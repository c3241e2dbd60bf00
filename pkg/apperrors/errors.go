package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrMalformedSchema = errors.New("malformed schema input")
	ErrRunCancelled    = errors.New("generation run cancelled")
	ErrNoSchemas       = errors.New("no schemas loaded for request")
)
