package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify pipeline failures. Stage code wraps its
// errors with one of these via Wrap; the workflow manager and tests classify
// with errors.Is.
var (
	// ErrAudioNotFound marks a job whose audio object is missing from the blob store.
	ErrAudioNotFound = errors.New("audio not found")
	// ErrTranscription marks a speech-to-text invocation that produced no usable output.
	ErrTranscription = errors.New("transcription failed")
	// ErrStorageWrite marks a failed blob store write.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrPersistence marks a failed transcript/chunk transaction.
	ErrPersistence = errors.New("persistence failed")
	// ErrExternalTool marks an upstream service failure (speech, llm, embedding).
	ErrExternalTool = errors.New("external service error")
	// ErrValidation marks malformed input or responses missing required fields.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable runtime configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures worth retrying without further classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind names the classification bucket of a stage error.
type FailureKind string

const (
	KindAudioNotFound FailureKind = "audio_not_found"
	KindTranscription FailureKind = "transcription_failed"
	KindStorageWrite  FailureKind = "storage_write_failed"
	KindPersistence   FailureKind = "persistence_failed"
	KindExternalTool  FailureKind = "external_tool"
	KindValidation    FailureKind = "validation"
	KindConfiguration FailureKind = "configuration"
	KindTransient     FailureKind = "transient"
)

// Classify maps an error to its failure kind.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrAudioNotFound):
		return KindAudioNotFound
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrStorageWrite):
		return KindStorageWrite
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	default:
		return KindTransient
	}
}

// Retryable reports whether a redelivery could plausibly succeed. Validation
// and configuration failures are deterministic and go straight to dead-letter.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindValidation, KindConfiguration:
		return false
	default:
		return true
	}
}

// Message returns the human-readable portion of a wrapped stage error with the
// sentinel prefix stripped, suitable for notifications and queue records.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := strings.TrimSpace(err.Error())
	for _, marker := range []error{
		ErrAudioNotFound, ErrTranscription, ErrStorageWrite, ErrPersistence,
		ErrExternalTool, ErrValidation, ErrConfiguration, ErrTransient,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimPrefix(text, prefix)
		}
	}
	return text
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
