package models

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrInputNotFound           = errors.New("input not found")
	ErrInvalidModality         = errors.New("invalid modality")
	ErrInvalidThresholdMethod  = errors.New("invalid threshold method")
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")
	ErrInvalidOutputPath       = errors.New("invalid output path")
	ErrInvalidKernelSize       = errors.New("invalid kernel size")
	ErrUnknownOverride         = errors.New("unknown override key")
	ErrInvalidOverride         = errors.New("invalid override value")
	ErrEngineInit              = errors.New("engine initialization failed")
	ErrEngineFailure           = errors.New("engine failure")
	ErrIntermediateMissing     = errors.New("intermediate output missing")
	ErrInvalidIntermediate     = errors.New("invalid intermediate output")
)

// Error attaches a descriptive message to one of the error kinds above
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
