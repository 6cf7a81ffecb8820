package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"nordic/internal/logger"
	"nordic/internal/models"
	"nordic/pkg/config"
	"nordic/pkg/denoise"
	"nordic/pkg/engine"
	"nordic/pkg/params"
)

// options holds the parsed command line
type options struct {
	magnitude     string
	output        string
	phase         string
	modality      string
	threshold     string
	kernelGFactor string
	kernelPCA     string
	patchOverlap  int
	verbose       bool
	configPath    string
	engineCommand string
	writeConfig   bool
	overrides     map[string]string
	set           map[string]bool
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("nordic", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.magnitude, "i", "", "Path to the input magnitude image file")
	fs.StringVar(&opts.magnitude, "magnitude", "", "Path to the input magnitude image file")
	fs.StringVar(&opts.magnitude, "magni_path", "", "Alias of -magnitude")
	fs.StringVar(&opts.output, "o", "", "Output file (.nii or .nii.gz)")
	fs.StringVar(&opts.output, "output", "", "Output file (.nii or .nii.gz)")
	fs.StringVar(&opts.output, "output_path", "", "Alias of -output")
	fs.StringVar(&opts.phase, "p", "", "Path to the input phase image file")
	fs.StringVar(&opts.phase, "phase", "", "Path to the input phase image file")
	fs.StringVar(&opts.phase, "phase_path", "", "Alias of -phase")
	fs.StringVar(&opts.modality, "m", "", `Image modality, "fMRI" or "dMRI"`)
	fs.StringVar(&opts.modality, "modality", "", `Image modality, "fMRI" or "dMRI"`)
	fs.StringVar(&opts.threshold, "t", string(models.ThresholdNORDIC), `Thresholding method, "NORDIC" or "MP"`)
	fs.StringVar(&opts.threshold, "threshold", string(models.ThresholdNORDIC), `Thresholding method, "NORDIC" or "MP"`)
	fs.StringVar(&opts.threshold, "threshold_method", string(models.ThresholdNORDIC), "Alias of -threshold")
	fs.StringVar(&opts.kernelGFactor, "kernel-gfactor", models.DefaultKernelSizeGFactor.String(), "Kernel size for the g-factor as x,y,z")
	fs.StringVar(&opts.kernelGFactor, "kernel_size_gfactor", models.DefaultKernelSizeGFactor.String(), "Alias of -kernel-gfactor")
	fs.StringVar(&opts.kernelPCA, "kernel-pca", "", "Kernel size for PCA as x,y,z (engine default when empty)")
	fs.StringVar(&opts.kernelPCA, "kernel_size_pca", "", "Alias of -kernel-pca")
	fs.IntVar(&opts.patchOverlap, "gfactor-patch-overlap", 0, "Overlap for the g-factor patch (engine default when 0)")
	fs.IntVar(&opts.patchOverlap, "gfactor_path_overlap", 0, "Alias of -gfactor-patch-overlap")
	fs.BoolVar(&opts.verbose, "v", false, "Print the configuration passed to the engine")
	fs.BoolVar(&opts.verbose, "verbose", false, "Print the configuration passed to the engine")
	fs.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "YAML configuration file")
	fs.StringVar(&opts.engineCommand, "engine", "", "Engine executable (overrides the configuration file)")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "Write a default configuration file to -config and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nordic [flags] [magnitude] [output] [--engine_option value ...]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nAny other --key value pair is passed to the engine as a configuration option.\n")
		fmt.Fprintf(stderr, "Engine options: %s\n", strings.Join(params.KnownKeys(), ", "))
	}
	return fs
}

// parseArgs reads the command line into options
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := newFlagSet(opts, stderr)

	known, overrides, positional := splitArgs(fs, args)
	if err := fs.Parse(known); err != nil {
		return nil, err
	}
	positional = append(positional, fs.Args()...)

	opts.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.magnitude == "" && len(positional) > 0 {
		opts.magnitude, positional = positional[0], positional[1:]
	}
	if opts.output == "" && len(positional) > 0 {
		opts.output, positional = positional[0], positional[1:]
	}
	if len(positional) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", positional)
	}

	opts.overrides = overrides
	return opts, nil
}

func (o *options) isSet(names ...string) bool {
	for _, n := range names {
		if o.set[n] {
			return true
		}
	}
	return false
}

// request combines the configuration file defaults with the command line
func (o *options) request(cfg *config.Config) (models.RunRequest, error) {
	req := models.NewRunRequest(o.magnitude, o.phase, o.output)
	req.Modality = models.Modality(cfg.Defaults.Modality)
	req.ThresholdMethod = models.ThresholdMethod(cfg.Defaults.ThresholdMethod)

	var err error
	if req.KernelSizeGFactor, err = cfg.KernelGFactor(); err != nil {
		return req, err
	}
	if req.KernelSizePCA, err = cfg.KernelPCA(); err != nil {
		return req, err
	}

	if o.isSet("m", "modality") {
		req.Modality = models.Modality(o.modality)
	}
	if o.isSet("t", "threshold", "threshold_method") || req.ThresholdMethod == "" {
		req.ThresholdMethod = models.ThresholdMethod(o.threshold)
	}
	if o.isSet("kernel-gfactor", "kernel_size_gfactor") {
		if req.KernelSizeGFactor, err = models.ParseKernelSize(o.kernelGFactor); err != nil {
			return req, models.Errorf(models.ErrInvalidKernelSize, "%v", err)
		}
	}
	if o.isSet("kernel-pca", "kernel_size_pca") && o.kernelPCA != "" {
		k, err := models.ParseKernelSize(o.kernelPCA)
		if err != nil {
			return req, models.Errorf(models.ErrInvalidKernelSize, "%v", err)
		}
		req.KernelSizePCA = &k
	}

	overrides := cfg.OverrideStrings()
	for k, v := range o.overrides {
		overrides[k] = v
	}
	if o.isSet("gfactor-patch-overlap", "gfactor_path_overlap") {
		overrides["gfactor_patch_overlap"] = strconv.Itoa(o.patchOverlap)
	}
	if len(overrides) > 0 {
		req.Overrides = overrides
	}
	return req, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is the whole command; it returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.writeConfig {
		if err := config.CreateDefaultConfigFile(opts.configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", opts.configPath)
		return 0
	}

	if opts.magnitude == "" || opts.output == "" {
		fmt.Fprintf(stderr, "Error: a magnitude image and an output path are required\n")
		return 1
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	verbose := opts.verbose || cfg.Output.Verbose

	level, err := logger.ParseLevel(cfg.Output.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger(stderr, level)

	req, err := opts.request(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	settings := engine.Settings{
		Command: cfg.Engine.Command,
		Args:    cfg.Engine.Args,
		Env:     cfg.Engine.Env,
		Log:     log,
	}
	if opts.engineCommand != "" {
		settings.Command = opts.engineCommand
		settings.Args = nil
	}
	eng, err := engine.Open(settings)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log.Debug("cli", "engine ready", map[string]interface{}{"path": eng.Path()})

	runner := denoise.NewRunner(eng, log)
	runner.Finalizer.Level = cfg.Output.CompressionLevel
	if verbose {
		runner.OnInvoke = func(inv engine.Invocation) {
			printInvocation(stdout, inv)
		}
	}

	res, err := runner.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "NORDIC denoising completed in %.2f seconds\n", res.Duration.Seconds())
	fmt.Fprintf(stdout, "Output saved to: %s\n", res.Output.FinalPath)
	return 0
}

// printInvocation shows the exact arguments handed to the engine
func printInvocation(w io.Writer, inv engine.Invocation) {
	doc := struct {
		Magnitude string              `yaml:"magnitude"`
		Phase     string              `yaml:"phase"`
		Output    string              `yaml:"output"`
		Config    models.EngineConfig `yaml:"config"`
	}{inv.MagnitudePath, inv.PhasePath, inv.OutputName, inv.Config}

	data, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintf(w, "could not render engine arguments: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Engine arguments:\n%s", data)
}
