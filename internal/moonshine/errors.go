package moonshine

import "errors"

var (
	// ErrInference wraps encoder, decoder and runtime execution failures. Fatal to the current call only.
	ErrInference = errors.New("inference failure")
	// ErrArtifactUnavailable wraps model, config and tokenizer loading failures at session construction.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	// ErrDebugPersistence wraps failures to archive input audio. Callers log and discard it.
	ErrDebugPersistence = errors.New("debug persistence failure")
)
