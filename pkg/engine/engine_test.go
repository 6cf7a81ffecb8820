package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"nordic/internal/models"
)

func TestInvokeWrapsFailure(t *testing.T) {
	cause := errors.New("out of memory")
	calls := 0
	e := Func(func(ctx context.Context, inv Invocation) error {
		calls++
		return cause
	})

	err := Invoke(context.Background(), e, Invocation{})
	if calls != 1 {
		t.Errorf("engine called %d times, want exactly 1", calls)
	}
	if !errors.Is(err, models.ErrEngineFailure) {
		t.Errorf("expected ErrEngineFailure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("original error not reachable from %v", err)
	}
	if err.Error() != "engine failure: out of memory" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestInvokeSuccess(t *testing.T) {
	var got Invocation
	e := Func(func(ctx context.Context, inv Invocation) error {
		got = inv
		return nil
	})

	inv := Invocation{MagnitudePath: "mag.nii", OutputName: "out.nii"}
	if err := Invoke(context.Background(), e, inv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MagnitudePath != "mag.nii" || got.PhasePath != "" || got.OutputName != "out.nii" {
		t.Errorf("unexpected invocation: %+v", got)
	}
}

func TestOpenMissingExecutable(t *testing.T) {
	_, err := Open(Settings{Command: "nordic-engine-that-does-not-exist"})
	if !errors.Is(err, models.ErrEngineInit) {
		t.Fatalf("expected ErrEngineInit, got %v", err)
	}
	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected *InitError, got %T", err)
	}
	if initErr.Command != "nordic-engine-that-does-not-exist" {
		t.Errorf("Command = %q", initErr.Command)
	}
}

func TestOpenEmptyCommand(t *testing.T) {
	if _, err := Open(Settings{}); !errors.Is(err, models.ErrEngineInit) {
		t.Fatalf("expected ErrEngineInit, got %v", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

// TestCommandRun checks the positional arguments and the JSON configuration
// handed to the external engine
func TestCommandRun(t *testing.T) {
	outDir := t.TempDir()
	script := writeScript(t, `
[ "$#" -eq 4 ] || { echo "want 4 args, got $#" >&2; exit 2; }
echo "denoising $1"
printf '%s|%s|%s' "$1" "$2" "$3" > "$OUT_DIR/args.txt"
cp "$4" "$OUT_DIR/config.json"
`)

	e, err := Open(Settings{Command: script, Env: []string{"OUT_DIR=" + outDir}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if e.Path() != script {
		t.Errorf("Path() = %q, want %q", e.Path(), script)
	}

	inv := Invocation{
		MagnitudePath: "mag.nii",
		PhasePath:     "",
		OutputName:    "out.nii",
		Config: models.EngineConfig{
			"DIROUT":              models.String("."),
			"kernel_size_gfactor": models.Array([]float64{14, 14, 1}),
			"kernel_size_PCA":     models.Array(nil),
			"NORDIC":              models.Int(1),
			"factor_error":        models.Float(1.5),
		},
	}
	if err := e.Run(context.Background(), inv); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	args, err := os.ReadFile(filepath.Join(outDir, "args.txt"))
	if err != nil {
		t.Fatalf("engine did not record its arguments: %v", err)
	}
	if string(args) != "mag.nii||out.nii" {
		t.Errorf("engine arguments = %q", args)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "config.json"))
	if err != nil {
		t.Fatalf("engine did not receive a config: %v", err)
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config is not JSON: %v", err)
	}
	if cfg["DIROUT"] != "." || cfg["NORDIC"] != float64(1) || cfg["factor_error"] != 1.5 {
		t.Errorf("unexpected config: %v", cfg)
	}
	if pca, ok := cfg["kernel_size_PCA"].([]interface{}); !ok || len(pca) != 0 {
		t.Errorf("kernel_size_PCA = %v, want empty array", cfg["kernel_size_PCA"])
	}
}

func TestCommandRunFailure(t *testing.T) {
	script := writeScript(t, `
echo "loading runtime"
echo "License checkout failed" >&2
exit 3
`)
	e, err := Open(Settings{Command: script})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err = e.Run(context.Background(), Invocation{Config: models.EngineConfig{}})
	if err == nil {
		t.Fatal("expected error from failing engine")
	}
	if !strings.Contains(err.Error(), "exited with code 3") || !strings.Contains(err.Error(), "License checkout failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLineLogger(t *testing.T) {
	rec := &recordingLogger{}
	l := &lineLogger{log: rec, stream: "stdout"}

	l.Write([]byte("first\nsec"))
	l.Write([]byte("ond\r\n\nthird"))
	l.Flush()

	want := []string{"first", "second", "third"}
	if len(rec.lines) != len(want) {
		t.Fatalf("lines = %q, want %q", rec.lines, want)
	}
	for i := range want {
		if rec.lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, rec.lines[i], want[i])
		}
	}
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Info(_, message string, _ map[string]interface{})    {}
func (r *recordingLogger) Error(string, error, map[string]interface{})         {}
func (r *recordingLogger) Warning(_, message string, _ map[string]interface{}) {}
func (r *recordingLogger) Debug(_, message string, _ map[string]interface{}) {
	r.lines = append(r.lines, message)
}
