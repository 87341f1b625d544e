package analyses

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("source too large")
)

const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeFetch      = "FETCH_ERROR"
	ErrorCodeTooLarge   = "SOURCE_TOO_LARGE"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
