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
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeEmbedding          = "EMBEDDING_ERROR"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeRetrieval          = "RETRIEVAL_ERROR"
	ErrCodeGeneration         = "GENERATION_ERROR"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question must not be empty")
	ErrEmptyText            = NewDomainError(ErrCodeValidation, "text must not be empty")
	ErrInvalidTenantKey     = NewDomainError(ErrCodeValidation, "tenant key must match [a-z0-9_]{1,40}")
	ErrUnsupportedFileType  = NewDomainError(ErrCodeValidation, "unsupported document type")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Configuration errors
var (
	ErrChunkOverlap   = NewDomainError(ErrCodeConfiguration, "chunk overlap must be smaller than chunk size")
	ErrChunkSize      = NewDomainError(ErrCodeConfiguration, "chunk size must be positive")
	ErrWindowCapacity = NewDomainError(ErrCodeConfiguration, "memory window capacity must be positive")
)

// Not found errors
var (
	ErrTenantNotFound  = NewDomainError(ErrCodeNotFound, "tenant not found")
	ErrAPIKeyNotFound  = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrUploadNotFound  = NewDomainError(ErrCodeNotFound, "upload not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Already exists errors
var (
	ErrTenantAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "tenant already exists")
	ErrAPIKeyAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Pipeline errors
var (
	ErrEmbeddingService   = NewDomainError(ErrCodeEmbedding, "embedding service request failed")
	ErrWrongDimensions    = NewDomainError(ErrCodeEmbedding, "embedding has wrong dimensions")
	ErrStorageUnavailable = NewDomainError(ErrCodeStorageUnavailable, "vector storage unavailable")
	ErrRetrievalFailed    = NewDomainError(ErrCodeRetrieval, "context retrieval failed")
	ErrGenerationFailed   = NewDomainError(ErrCodeGeneration, "answer generation failed")
)
