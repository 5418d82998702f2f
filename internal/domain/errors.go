package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// Validation errors
var (
	ErrEmptyQuery         = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrEmptyText          = NewDomainError(ErrCodeValidation, "text must not be empty")
	ErrSkewedBatch        = NewDomainError(ErrCodeValidation, "ids, documents and vectors must have equal length")
	ErrVectorSizeMismatch = NewDomainError(ErrCodeValidation, "embedding vectors in a batch must share one dimension")
)

// Configuration errors
var (
	ErrAgentNotConfigured     = NewDomainError(ErrCodeConfiguration, "answering agent is not configured")
	ErrEmbeddingNotConfigured = NewDomainError(ErrCodeConfiguration, "embedding model is not configured")
)

// Fixed user-facing messages. These are contractual: callers and the answer
// contract in the synthesis prompt match on them verbatim.
const (
	// MsgNoAnswer is returned when retrieval finds nothing, or when the
	// model cannot derive an answer from the assembled context.
	MsgNoAnswer = "I'm sorry, I couldn't find an answer to your question in the available documentation. Feel free to ask me something else, or you can try rephrasing your last question."

	// MsgAgentNotConfigured is returned when the answering agent has no
	// endpoint or model configured. Not retried.
	MsgAgentNotConfigured = "Answering agent not configured. Please check DOKUCHAT_CHAT_ENDPOINT and DOKUCHAT_CHAT_MODEL in your environment."
)
