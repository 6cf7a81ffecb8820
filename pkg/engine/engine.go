// Package engine invokes the external NORDIC denoising engine.
//
// The engine is a black box: it receives the magnitude and phase paths, the
// name of the uncompressed file to write and a flat keyword configuration,
// and either completes or fails. Nothing here inspects its output.
package engine

import (
	"context"
	"fmt"

	"nordic/internal/models"
)

// Invocation is everything passed to one engine call
type Invocation struct {
	// MagnitudePath is the magnitude image
	MagnitudePath string

	// PhasePath is the phase image, or "" for magnitude-only runs
	PhasePath string

	// OutputName is the uncompressed file name the engine writes into DIROUT
	OutputName string

	// Config is the engine keyword configuration
	Config models.EngineConfig
}

// Engine runs one synchronous denoising call. Implementations must not retry.
type Engine interface {
	Run(ctx context.Context, inv Invocation) error
}

// Func adapts a function to the Engine interface
type Func func(ctx context.Context, inv Invocation) error

// Run calls f
func (f Func) Run(ctx context.Context, inv Invocation) error {
	return f(ctx, inv)
}

// Failure wraps an error returned by the engine. Both models.ErrEngineFailure
// and the original error are reachable with errors.Is and errors.As.
type Failure struct {
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", models.ErrEngineFailure, f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{models.ErrEngineFailure, f.Err}
}

// Invoke runs e exactly once and marks any error it returns as an engine failure
func Invoke(ctx context.Context, e Engine, inv Invocation) error {
	if err := e.Run(ctx, inv); err != nil {
		return &Failure{Err: err}
	}
	return nil
}
