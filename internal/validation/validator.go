// Package validation provides validation rules for rule names and request parameters.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNameLength is the maximum length for rule names
	MaxNameLength = 64
	// DefaultMaxRuleLength is the default maximum length of rule text in bytes
	DefaultMaxRuleLength = 4096
	// MaxCombineInputs is the maximum number of rules accepted by one combine call
	MaxCombineInputs = 256
	// MaxBatchSize is the maximum number of records in one batch evaluation
	MaxBatchSize = 1000
)

// namePattern matches alphanumeric characters, underscores, and hyphens
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrInvalid is wrapped by every *Error.
var ErrInvalid = errors.New("validation failed")

// Error carries per-field validation messages.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return ErrInvalid }

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// Err returns the result as an *Error, or nil when valid.
func (v *ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	fields := make(map[string]string, len(v.Errors))
	for k, msg := range v.Errors {
		fields[k] = msg
	}
	return &Error{Fields: fields}
}

// ValidateName validates a rule name
func ValidateName(name string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(name) == "" {
		result.AddError("name", "Name is required")
		return result
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		result.AddError("name", fmt.Sprintf("Name must not exceed %d characters", MaxNameLength))
		return result
	}

	if !namePattern.MatchString(name) {
		result.AddError("name", "Name must contain only alphanumeric characters, underscores, and hyphens")
	}

	return result
}

// IsName reports whether s is a syntactically valid rule name.
func IsName(s string) bool {
	return ValidateName(s).Valid
}

// ValidateRuleText checks the size of rule text. An empty text is left to the
// parser, which reports it as an empty rule.
func ValidateRuleText(text string, maxLen int) *ValidationResult {
	result := NewValidationResult()
	if maxLen <= 0 {
		maxLen = DefaultMaxRuleLength
	}

	if len(text) > maxLen {
		result.AddError("rule", fmt.Sprintf("Rule must not exceed %d bytes", maxLen))
	}

	return result
}

// ValidateCombineInputs validates the list of rule names or texts passed to combine
func ValidateCombineInputs(inputs []string, maxLen int) *ValidationResult {
	result := NewValidationResult()

	if len(inputs) > MaxCombineInputs {
		result.AddError("rules", fmt.Sprintf("At most %d rules can be combined", MaxCombineInputs))
		return result
	}

	for i, in := range inputs {
		if r := ValidateRuleText(in, maxLen); !r.Valid {
			result.AddError("rules", fmt.Sprintf("Rule %d: %s", i, r.Errors["rule"]))
			return result
		}
	}

	return result
}

// ValidateBatchSize validates the number of records in a batch evaluation
func ValidateBatchSize(n int) *ValidationResult {
	result := NewValidationResult()

	if n == 0 {
		result.AddError("records", "At least one record is required")
	} else if n > MaxBatchSize {
		result.AddError("records", fmt.Sprintf("Batch must not exceed %d records", MaxBatchSize))
	}

	return result
}
