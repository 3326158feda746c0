package voice

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are stable and safe to show or log.
type Code string

const (
	PermissionDenied          Code = "permission_denied"
	DeviceUnavailable         Code = "device_unavailable"
	CaptureFailed             Code = "capture_failed"
	TooShort                  Code = "too_short"
	TooLong                   Code = "too_long"
	TranscriptionFailed       Code = "transcription_failed"
	TranscriptionServiceError Code = "transcription_service_error"
	InvalidConfig             Code = "invalid_config"
	MissingCredential         Code = "missing_credential"
)

type Category string

const (
	CategoryEnvironment   Category = "environment"
	CategoryCapture       Category = "capture"
	CategoryValidation    Category = "validation"
	CategoryTranscription Category = "transcription"
	CategoryConfiguration Category = "configuration"
)

func (c Code) Category() Category {
	switch c {
	case PermissionDenied, DeviceUnavailable:
		return CategoryEnvironment
	case TooShort, TooLong:
		return CategoryValidation
	case TranscriptionFailed, TranscriptionServiceError:
		return CategoryTranscription
	case InvalidConfig, MissingCredential:
		return CategoryConfiguration
	default:
		return CategoryCapture
	}
}

func (c Code) defaultMessage() string {
	switch c {
	case PermissionDenied:
		return "Microphone access was denied"
	case DeviceUnavailable:
		return "No microphone is available"
	case CaptureFailed:
		return "Recording failed"
	case TooShort:
		return "Recording is too short"
	case TooLong:
		return "Recording is too long"
	case TranscriptionFailed:
		return "No speech could be transcribed"
	case TranscriptionServiceError:
		return "Transcription service error"
	case InvalidConfig:
		return "Invalid configuration"
	case MissingCredential:
		return "Missing API credential"
	default:
		return "Unexpected error"
	}
}

// VoiceError is the only error shape that crosses into the UI.
type VoiceError struct {
	Code    Code
	Message string
	Detail  map[string]any
	Err     error
}

func NewError(code Code, message string, cause error) *VoiceError {
	if message == "" {
		message = code.defaultMessage()
	}
	return &VoiceError{Code: code, Message: message, Err: cause}
}

func Errorf(code Code, format string, args ...any) *VoiceError {
	return &VoiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *VoiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VoiceError) Unwrap() error { return e.Err }

// Is matches on Code so callers can write errors.Is(err, voice.Errorf(voice.TooShort, "")).
func (e *VoiceError) Is(target error) bool {
	t, ok := target.(*VoiceError)
	return ok && t.Code == e.Code
}

// WithDetail returns e with key set in its structured detail.
func (e *VoiceError) WithDetail(key string, value any) *VoiceError {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// Retryable reports whether the user can simply try again. Environment
// failures need the user to fix something first.
func (e *VoiceError) Retryable() bool {
	switch e.Code.Category() {
	case CategoryEnvironment, CategoryConfiguration:
		return false
	}
	return true
}

// AsError returns err as a *VoiceError, wrapping it under fallback when it is
// not one already. A nil err yields nil.
func AsError(err error, fallback Code) *VoiceError {
	if err == nil {
		return nil
	}
	var ve *VoiceError
	if errors.As(err, &ve) {
		return ve
	}
	return NewError(fallback, "", err)
}

// CodeOf returns the code carried by err, or "" when err is not typed.
func CodeOf(err error) Code {
	var ve *VoiceError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
