package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeEmbedding represents embedding provider errors
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeCompletion represents LLM completion errors
	ErrorTypeCompletion ErrorType = "completion"
	// ErrorTypeGraph represents context graph errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind returns the error category. Typed errors embedding *BaseError inherit it,
// which lets IsErrorType classify them through any wrapping.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Embedding Errors

// ErrEmbeddingProvider is returned when the embedding provider is unreachable
// or returns malformed output
type ErrEmbeddingProvider struct {
	*BaseError
	Provider string
}

func NewEmbeddingProvider(provider, reason string, err error) *ErrEmbeddingProvider {
	return &ErrEmbeddingProvider{
		BaseError: NewBaseError(ErrorTypeEmbedding, fmt.Sprintf("embedding provider %s: %s", provider, reason), err),
		Provider:  provider,
	}
}

// ErrDimensionMismatch is returned when an embedding does not have the
// dimensionality the index was built with
type ErrDimensionMismatch struct {
	*BaseError
	Expected int
	Got      int
}

func NewDimensionMismatch(expected, got int) *ErrDimensionMismatch {
	return &ErrDimensionMismatch{
		BaseError: NewBaseError(ErrorTypeEmbedding, fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got), nil),
		Expected:  expected,
		Got:       got,
	}
}

// Completion Errors

// ErrCompletionProvider is returned when the LLM completion call fails
type ErrCompletionProvider struct {
	*BaseError
	Model      string
	StatusCode int
	Retryable  bool
}

func NewCompletionProvider(model string, statusCode int, retryable bool, err error) *ErrCompletionProvider {
	msg := "completion request failed"
	if statusCode > 0 {
		msg = fmt.Sprintf("completion request failed with status %d", statusCode)
	}
	return &ErrCompletionProvider{
		BaseError:  NewBaseError(ErrorTypeCompletion, msg, err),
		Model:      model,
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

// ErrCompletionEmpty is returned when the LLM returns no choices
var ErrCompletionEmpty = NewBaseError(ErrorTypeCompletion, "no choices in completion response", nil)

// Graph Errors

// ErrGraphNodeNotFound is returned when an edge references a node that was never created
type ErrGraphNodeNotFound struct {
	*BaseError
	NodeID string
}

func NewGraphNodeNotFound(nodeID string) *ErrGraphNodeNotFound {
	return &ErrGraphNodeNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("node not found: %s", nodeID), nil),
		NodeID:    nodeID,
	}
}

// ErrGraphNodeExists is returned by the reject duplicate policy
type ErrGraphNodeExists struct {
	*BaseError
	NodeID string
}

func NewGraphNodeExists(nodeID string) *ErrGraphNodeExists {
	return &ErrGraphNodeExists{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("node already exists: %s", nodeID), nil),
		NodeID:    nodeID,
	}
}

// ErrGraphTypeConflict is returned when a node id is reused for a different type
type ErrGraphTypeConflict struct {
	*BaseError
	NodeID   string
	Existing string
	Proposed string
}

func NewGraphTypeConflict(nodeID, existing, proposed string) *ErrGraphTypeConflict {
	return &ErrGraphTypeConflict{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("node %s is %s, cannot become %s", nodeID, existing, proposed), nil),
		NodeID:    nodeID,
		Existing:  existing,
		Proposed:  proposed,
	}
}

// ErrGraphInvalidEdge is returned for edges missing a relation label
type ErrGraphInvalidEdge struct {
	*BaseError
	Source string
	Target string
}

func NewGraphInvalidEdge(source, target, reason string) *ErrGraphInvalidEdge {
	return &ErrGraphInvalidEdge{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("invalid edge %s -> %s: %s", source, target, reason), nil),
		Source:    source,
		Target:    target,
	}
}

// ErrGraphUserNotFound is returned when a user is not found in the graph
type ErrGraphUserNotFound struct {
	*BaseError
	UserID string
}

func NewGraphUserNotFound(userID string) *ErrGraphUserNotFound {
	return &ErrGraphUserNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("user not found: %s", userID), nil),
		UserID:    userID,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var kinded interface{ Kind() ErrorType }
	if stderrors.As(err, &kinded) {
		return kinded.Kind() == errType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var completionErr *ErrCompletionProvider
	if stderrors.As(err, &completionErr) {
		return completionErr.Retryable
	}
	return false
}
