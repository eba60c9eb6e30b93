package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/combiner"
	"github.com/TimurManjosov/rulesmith/internal/evaluator"
	"github.com/TimurManjosov/rulesmith/internal/parser"
	"github.com/TimurManjosov/rulesmith/internal/store"
	"github.com/TimurManjosov/rulesmith/internal/validation"
)

// ErrorCode represents machine-readable error codes
type ErrorCode string

const (
	// General error codes
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"

	// Request error codes
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON ErrorCode = "INVALID_JSON"
	ErrCodeInvalidRule ErrorCode = "INVALID_RULE"
	ErrCodeEmptyRule   ErrorCode = "EMPTY_RULE"
	ErrCodeEmptyInput  ErrorCode = "EMPTY_INPUT"

	// Evaluation error codes
	ErrCodeTypeMismatch     ErrorCode = "TYPE_MISMATCH"
	ErrCodeMissingAttribute ErrorCode = "MISSING_ATTRIBUTE"
	ErrCodeUnsupportedValue ErrorCode = "UNSUPPORTED_VALUE"

	// Store error codes
	ErrCodeRuleNotFound  ErrorCode = "RULE_NOT_FOUND"
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string            `json:"error"`                // HTTP status text
	Message   string            `json:"message"`              // Human-readable description
	Code      ErrorCode         `json:"code"`                 // Machine-readable error code
	Fields    map[string]string `json:"fields,omitempty"`     // Field-level errors
	RequestID string            `json:"request_id,omitempty"` // Request ID for debugging
}

// NewErrorResponse creates a new error response
func NewErrorResponse(statusCode int, code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
}

// WithFields adds field-level errors to the response
func (e *ErrorResponse) WithFields(fields map[string]string) *ErrorResponse {
	e.Fields = fields
	return e
}

// WithRequestID adds a request ID to the response
func (e *ErrorResponse) WithRequestID(requestID string) *ErrorResponse {
	e.RequestID = requestID
	return e
}

// writeErrorResponse writes a structured error response to the http response writer
func writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errResp *ErrorResponse) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		errResp.RequestID = reqID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errResp)
}

// ValidationError creates a validation error response with field-level details
func ValidationError(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	errResp := NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, message).
		WithFields(fields)
	writeErrorResponse(w, r, http.StatusBadRequest, errResp)
}

// BadRequestError creates a bad request error response
func BadRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	errResp := NewErrorResponse(http.StatusBadRequest, code, message)
	writeErrorResponse(w, r, http.StatusBadRequest, errResp)
}

// InternalError creates an internal server error response
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusInternalServerError, ErrCodeInternal, message)
	writeErrorResponse(w, r, http.StatusInternalServerError, errResp)
}

// RequestTooLargeError creates a request entity too large error response
func RequestTooLargeError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, message)
	writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, errResp)
}

// RateLimitedError creates a too many requests error response
func RateLimitedError(w http.ResponseWriter, r *http.Request) {
	errResp := NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "Rate limit exceeded, retry later")
	writeErrorResponse(w, r, http.StatusTooManyRequests, errResp)
}

// classify maps an error returned by the rule service to a status code and a
// response body. Unknown errors become a generic 500 so internals do not leak.
func classify(err error) (int, *ErrorResponse) {
	var (
		syntaxErr   *parser.SyntaxError
		validErr    *validation.Error
		mismatchErr *evaluator.TypeMismatchError
		missingErr  *evaluator.MissingAttributeError
		valueErr    *evaluator.UnsupportedValueError
	)

	switch {
	case errors.As(err, &syntaxErr):
		return http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, ErrCodeInvalidRule, err.Error()).
			WithFields(map[string]string{
				"position": strconv.Itoa(syntaxErr.Pos),
				"expected": syntaxErr.Expected,
			})
	case errors.Is(err, parser.ErrEmptyRule):
		return http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, ErrCodeEmptyRule, "Rule text is empty")
	case errors.Is(err, combiner.ErrEmptyInput):
		return http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, ErrCodeEmptyInput, "At least one rule is required")
	case errors.As(err, &validErr):
		return http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, "Validation failed").
			WithFields(validErr.Fields)
	case errors.Is(err, ast.ErrInvalidNode):
		return http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, ErrCodeInvalidRule, err.Error())
	case errors.As(err, &mismatchErr):
		return http.StatusUnprocessableEntity, NewErrorResponse(http.StatusUnprocessableEntity, ErrCodeTypeMismatch, err.Error())
	case errors.As(err, &missingErr):
		return http.StatusUnprocessableEntity, NewErrorResponse(http.StatusUnprocessableEntity, ErrCodeMissingAttribute, err.Error()).
			WithFields(map[string]string{"attribute": missingErr.Name})
	case errors.As(err, &valueErr):
		return http.StatusUnprocessableEntity, NewErrorResponse(http.StatusUnprocessableEntity, ErrCodeUnsupportedValue, err.Error()).
			WithFields(map[string]string{"attribute": valueErr.Name})
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, NewErrorResponse(http.StatusNotFound, ErrCodeRuleNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateName):
		return http.StatusConflict, NewErrorResponse(http.StatusConflict, ErrCodeDuplicateName, err.Error())
	}
	return http.StatusInternalServerError, NewErrorResponse(http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
}

// writeServiceError writes the response for err and logs server-side failures.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeErrorResponse(w, r, status, resp)
}
