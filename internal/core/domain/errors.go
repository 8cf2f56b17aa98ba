package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoDatabase indicates the ingest stage was requested without a
	// database connection string. This is a configuration error and is
	// raised before the stage starts.
	ErrNoDatabase = errors.New("no database configured")

	// ErrAPIKeyMissing indicates no API key was found for the selected
	// AI provider. Raised before the enrich/vectorize stage starts.
	ErrAPIKeyMissing = errors.New("API key missing")

	// ErrLLMUnavailable indicates the chat-completion service is not
	// configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrPDFExtraction indicates text extraction from a downloaded PDF
	// failed. Per-record: the surrounding stage loop continues.
	ErrPDFExtraction = errors.New("pdf text extraction failed")

	// ErrFetchFailed indicates an HTTP fetch exhausted its retry budget.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnsupportedProvider indicates an unknown AI provider name.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)
