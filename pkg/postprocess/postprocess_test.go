package postprocess

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nordic/internal/fsutil"
	"nordic/internal/logger"
	"nordic/internal/models"
	"nordic/internal/testutil"
	"nordic/pkg/paths"
)

// image returns a small NIfTI-1 file: header followed by some voxel bytes
func image() []byte {
	data := testutil.NIfTI1(4, 4, 2, 3)
	return append(data, bytes.Repeat([]byte{1, 2, 3, 4}, 96)...)
}

func writeIntermediate(t *testing.T, spec models.OutputSpec, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(spec.IntermediatePath, data, 0644))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFinalizeCompresses(t *testing.T) {
	dir := t.TempDir()
	spec := paths.Resolve(filepath.Join(dir, "out.nii.gz"))
	original := image()
	writeIntermediate(t, spec, original)

	require.NoError(t, New(nil, logger.Nop()).Finalize(spec))

	assert.Equal(t, []string{"out.nii.gz"}, listDir(t, dir))

	f, err := os.Open(spec.FinalPath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, "out.nii", gz.Name)
	got, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestFinalizeUncompressedIsNoop(t *testing.T) {
	dir := t.TempDir()
	spec := paths.Resolve(filepath.Join(dir, "out.nii"))
	writeIntermediate(t, spec, image())

	require.NoError(t, New(nil, nil).Finalize(spec))
	assert.Equal(t, []string{"out.nii"}, listDir(t, dir))
}

func TestFinalizeMissingIntermediate(t *testing.T) {
	for _, name := range []string{"out.nii", "out.nii.gz"} {
		spec := paths.Resolve(filepath.Join(t.TempDir(), name))
		err := New(nil, nil).Finalize(spec)
		assert.ErrorIs(t, err, models.ErrIntermediateMissing, name)
	}
}

func TestFinalizeRejectsNonNIfTI(t *testing.T) {
	dir := t.TempDir()
	spec := paths.Resolve(filepath.Join(dir, "out.nii.gz"))
	writeIntermediate(t, spec, []byte("MATLAB crashed before writing a header"))

	err := New(nil, nil).Finalize(spec)
	assert.ErrorIs(t, err, models.ErrInvalidIntermediate)
	assert.Equal(t, []string{"out.nii"}, listDir(t, dir))
}

func TestFinalizeUnsupportedFormat(t *testing.T) {
	spec := paths.Resolve(filepath.Join(t.TempDir(), "out.mgz"))
	err := New(nil, nil).Finalize(spec)
	assert.ErrorIs(t, err, models.ErrUnsupportedOutputFormat)
}

// failingFile fails its first write
type failingFile struct {
	fsutil.File
}

func (failingFile) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

// faultyFS wraps the OS filesystem and injects failures
type faultyFS struct {
	fsutil.OSFileSystem
	failWrite  bool
	failRename bool
}

func (f *faultyFS) Create(name string) (fsutil.File, error) {
	file, err := f.OSFileSystem.Create(name)
	if err != nil || !f.failWrite {
		return file, err
	}
	return failingFile{File: file}, nil
}

func (f *faultyFS) Rename(oldpath, newpath string) error {
	if f.failRename {
		return errors.New("cross-device link")
	}
	return f.OSFileSystem.Rename(oldpath, newpath)
}

// TestFinalizeFailureKeepsIntermediate verifies that a failed compression
// never costs the caller the engine output
func TestFinalizeFailureKeepsIntermediate(t *testing.T) {
	testCases := []struct {
		name string
		fsys *faultyFS
	}{
		{"write fails", &faultyFS{failWrite: true}},
		{"rename fails", &faultyFS{failRename: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			spec := paths.Resolve(filepath.Join(dir, "out.nii.gz"))
			original := image()
			writeIntermediate(t, spec, original)

			err := New(tc.fsys, nil).Finalize(spec)
			require.Error(t, err)

			assert.Equal(t, []string{"out.nii"}, listDir(t, dir))
			got, err := os.ReadFile(spec.IntermediatePath)
			require.NoError(t, err)
			assert.Equal(t, original, got)
		})
	}
}

func TestFinalizeCompressionLevel(t *testing.T) {
	dir := t.TempDir()
	spec := paths.Resolve(filepath.Join(dir, "fast.nii.gz"))
	writeIntermediate(t, spec, image())

	f := New(nil, nil)
	f.Level = gzip.BestSpeed
	require.NoError(t, f.Finalize(spec))
	assert.FileExists(t, spec.FinalPath)
	assert.NoFileExists(t, spec.IntermediatePath)
}
