// Package denoise sequences one NORDIC denoising invocation: resolve the
// output path, validate the inputs, build the engine configuration, call the
// engine and finalize the output.
package denoise

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nordic/internal/fsutil"
	"nordic/internal/logger"
	"nordic/internal/models"
	"nordic/pkg/engine"
	"nordic/pkg/params"
	"nordic/pkg/paths"
	"nordic/pkg/postprocess"
	"nordic/pkg/validate"
)

const component = "denoise"

// Result describes a completed invocation
type Result struct {
	// ID identifies the invocation in log output
	ID string

	// Output is the resolved output layout; Output.FinalPath is the file produced
	Output models.OutputSpec

	// Config is the engine configuration that was used
	Config models.EngineConfig

	// Discarded lists overrides dropped because they named a protected key
	Discarded []string

	// MagnitudeOnly is true when no phase image was given
	MagnitudeOnly bool

	// Stages is the sequence of states the invocation went through
	Stages []models.Stage

	// Duration is the wall time of the whole invocation
	Duration time.Duration
}

// RunError is returned when an invocation ends in the FAILED state
type RunError struct {
	// ID identifies the invocation in log output
	ID string

	// Reached is the last stage completed before the failure
	Reached models.Stage

	// Err is the originating error
	Err error
}

func (e *RunError) Error() string {
	return e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }

// Stage is always FAILED
func (e *RunError) Stage() models.Stage { return models.StageFailed }

// Runner runs denoising invocations against one engine. A Runner holds no
// per-invocation state, so Run may be called concurrently for distinct
// output paths.
type Runner struct {
	// Engine performs the denoising call
	Engine engine.Engine

	// FS is used for input checks
	FS fsutil.FileSystem

	// Finalizer compresses and cleans up the engine output
	Finalizer *postprocess.Finalizer

	// Log receives stage transitions and warnings
	Log logger.Logger

	// OnInvoke, when set, is called with the exact engine arguments just
	// before the engine starts
	OnInvoke func(inv engine.Invocation)
}

// NewRunner creates a Runner using the OS filesystem
func NewRunner(e engine.Engine, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	fsys := fsutil.OSFileSystem{}
	return &Runner{
		Engine:    e,
		FS:        fsys,
		Finalizer: postprocess.New(fsys, log),
		Log:       log,
	}
}

// deps fills in defaults for unset fields without modifying rn
func (rn *Runner) deps() (logger.Logger, fsutil.FileSystem, *postprocess.Finalizer) {
	log := rn.Log
	if log == nil {
		log = logger.Nop()
	}
	fsys := rn.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	finalizer := rn.Finalizer
	if finalizer == nil {
		finalizer = postprocess.New(fsys, log)
	}
	return log, fsys, finalizer
}

// run tracks the state of a single invocation
type run struct {
	id     string
	log    logger.Logger
	stages []models.Stage
}

func (r *run) advance(to models.Stage, fields map[string]interface{}) {
	from := r.stages[len(r.stages)-1]
	r.stages = append(r.stages, to)
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["run"] = r.id
	fields["from"] = from.String()
	r.log.Debug(component, to.String(), fields)
}

func (r *run) fail(err error) error {
	reached := r.stages[len(r.stages)-1]
	r.stages = append(r.stages, models.StageFailed)
	r.log.Debug(component, models.StageFailed.String(), map[string]interface{}{
		"run":   r.id,
		"from":  reached.String(),
		"error": err.Error(),
	})
	return &RunError{ID: r.id, Reached: reached, Err: err}
}

// Run executes the full pipeline for req.
//
// The pipeline is linear:
//  1. Resolve the output path and reject unsupported formats
//  2. Check that the input images exist
//  3. Build the engine configuration
//  4. Invoke the engine once
//  5. Compress the output if requested and remove the intermediate
//
// Every check that can fail without running the engine happens before step 4.
// Any failure ends the invocation with a *RunError; nothing is retried.
func (rn *Runner) Run(ctx context.Context, req models.RunRequest) (*Result, error) {
	start := time.Now()
	log, fsys, finalizer := rn.deps()
	r := &run{id: uuid.NewString(), log: log, stages: []models.Stage{models.StageStart}}

	if rn.Engine == nil {
		return nil, r.fail(models.Errorf(models.ErrEngineInit, "no engine configured"))
	}

	// Step 1: output layout
	spec := paths.Resolve(req.OutputPath)
	if err := paths.CheckFormat(spec); err != nil {
		return nil, r.fail(err)
	}
	r.advance(models.StagePathResolved, map[string]interface{}{
		"dir":          spec.Dir,
		"intermediate": spec.IntermediateName,
		"final":        spec.FinalPath,
	})

	// Step 2: inputs
	magnitudeOnly, err := validate.Request(fsys, req)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(models.StageValidated, map[string]interface{}{"magnitude_only": magnitudeOnly})

	// Step 3: engine configuration
	built, err := params.Build(req, spec.Dir, magnitudeOnly)
	if err != nil {
		return nil, r.fail(err)
	}
	for _, k := range built.Discarded {
		log.Warning(component, "override ignored for protected key", map[string]interface{}{
			"run":   r.id,
			"key":   k,
			"value": req.Overrides[k],
		})
	}
	r.advance(models.StageConfigBuilt, map[string]interface{}{"keys": built.Config.Keys()})

	// Step 4: engine
	inv := engine.Invocation{
		MagnitudePath: req.MagnitudePath,
		PhasePath:     req.PhasePath,
		OutputName:    spec.IntermediateName,
		Config:        built.Config,
	}
	if rn.OnInvoke != nil {
		rn.OnInvoke(inv)
	}
	log.Info(component, "running NORDIC", map[string]interface{}{
		"run":       r.id,
		"magnitude": req.MagnitudePath,
		"phase":     req.PhasePath,
	})
	engineStart := time.Now()
	if err := engine.Invoke(ctx, rn.Engine, inv); err != nil {
		return nil, r.fail(err)
	}
	r.advance(models.StageEngineInvoked, map[string]interface{}{"elapsed": time.Since(engineStart)})

	// Step 5: output
	if err := finalizer.Finalize(spec); err != nil {
		return nil, r.fail(fmt.Errorf("failed to finalize output: %w", err))
	}
	r.advance(models.StagePostProcessed, nil)
	r.advance(models.StageDone, nil)

	return &Result{
		ID:            r.id,
		Output:        spec,
		Config:        built.Config,
		Discarded:     built.Discarded,
		MagnitudeOnly: magnitudeOnly,
		Stages:        r.stages,
		Duration:      time.Since(start),
	}, nil
}
