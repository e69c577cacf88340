package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorMissingAPIKey     = "missing_api_key"
	ErrorNoAPIKeys         = "no_api_keys"
	ErrorInvalidAPIKey     = "invalid_api_key"
	ErrorRateLimitExceeded = "rate_limit_exceeded"
	ErrorValidation        = "validation_failed"
	ErrorNotFound          = "not_found"
	ErrorCreationFailed    = "creation_failed"
	ErrorResolutionFailed  = "resolution_failed"
	ErrorPersistence       = "persistence_failed"
	ErrorDispatch          = "dispatch_failed"
	ErrorConflict          = "identity_conflict"
	ErrorInternal          = "internal_error"
)

// ErrNotFound is returned by stores when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned by stores when a write collides with a unique index.
var ErrConflict = errors.New("record conflicts with an existing record")

func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

func NewNotFoundError(resource string, identifier string) *goerrors.Error {
	return goerrors.New(strings.TrimSpace(resource)+" not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorNotFound).
		WithMetadata(map[string]any{
			"resource":   strings.TrimSpace(resource),
			"identifier": strings.TrimSpace(identifier),
		})
}

// NewConflictError reports an identity value already owned by another record.
func NewConflictError(field string, value string) *goerrors.Error {
	return goerrors.New(strings.TrimSpace(field)+" already belongs to another contact", goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorConflict).
		WithMetadata(map[string]any{
			"field": strings.TrimSpace(field),
			"value": strings.TrimSpace(value),
		})
}

func NewAuthenticationError(message string, textCode string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(textCode)
}

func NewCreationFailedError(err error, message string) *goerrors.Error {
	return wrapOperation(err, message, ErrorCreationFailed)
}

func NewResolutionFailedError(err error, message string) *goerrors.Error {
	return wrapOperation(err, message, ErrorResolutionFailed)
}

func NewPersistenceError(err error, message string) *goerrors.Error {
	return wrapOperation(err, message, ErrorPersistence)
}

func NewDispatchError(err error, message string, metadata map[string]any) *goerrors.Error {
	out := wrapOperation(err, message, ErrorDispatch).
		WithCode(http.StatusBadGateway)
	if len(metadata) > 0 {
		out = out.WithMetadata(metadata)
	}
	return out
}

func wrapOperation(err error, message string, textCode string) *goerrors.Error {
	if err == nil {
		err = errors.New(message)
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(textCode)
}

// IsErrorCode reports whether err carries the given text code.
func IsErrorCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// MapError converts any error into the envelope returned to API callers.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	var mapper interface{ ToServiceError() *goerrors.Error }
	if errors.As(err, &mapper) {
		return ensureErrorEnvelope(mapper.ToServiceError())
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorNotFound))
	case errors.Is(err, ErrConflict):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryConflict).WithTextCode(ErrorCreationFailed))
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "rate limit"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryRateLimit).WithTextCode(ErrorRateLimitExceeded))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).WithTextCode(ErrorValidation))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorValidation
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorInvalidAPIKey
	case goerrors.CategoryRateLimit:
		return ErrorRateLimitExceeded
	case goerrors.CategoryConflict, goerrors.CategoryOperation:
		return ErrorPersistence
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
