// Package postprocess turns the engine's uncompressed output into the file
// the caller asked for.
package postprocess

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"nordic/internal/fsutil"
	"nordic/internal/logger"
	"nordic/internal/models"
	"nordic/pkg/nifti"
)

const component = "postprocess"

// peekSize covers the larger of the NIfTI-1 and NIfTI-2 headers
const peekSize = 540

// Finalizer compresses and cleans up engine output
type Finalizer struct {
	// FS performs all file operations
	FS fsutil.FileSystem

	// Level is the gzip compression level
	Level int

	// Log receives progress messages
	Log logger.Logger
}

// New returns a Finalizer using the default compression level
func New(fsys fsutil.FileSystem, log logger.Logger) *Finalizer {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Finalizer{FS: fsys, Level: gzip.DefaultCompression, Log: log}
}

// Finalize produces spec.FinalPath from the intermediate file.
//
// For nii.gz the intermediate is gzipped into a temporary file next to the
// final path, which is then renamed into place; only after that succeeds is
// the intermediate removed. A failure at any earlier point leaves the
// intermediate where the engine wrote it. For nii there is nothing to do.
func (f *Finalizer) Finalize(spec models.OutputSpec) error {
	switch spec.Ext {
	case models.ExtNII:
		if !fsutil.Exists(f.FS, spec.IntermediatePath) {
			return models.Errorf(models.ErrIntermediateMissing, "engine output not found: %s", spec.IntermediatePath)
		}
		f.Log.Debug(component, "output already uncompressed", map[string]interface{}{"path": spec.FinalPath})
		return nil
	case models.ExtNIIGZ:
		return f.compress(spec)
	default:
		return models.Errorf(models.ErrUnsupportedOutputFormat, "%q is not a supported image format", spec.Ext)
	}
}

func (f *Finalizer) compress(spec models.OutputSpec) error {
	src, err := f.FS.Open(spec.IntermediatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Errorf(models.ErrIntermediateMissing, "engine output not found: %s", spec.IntermediatePath)
		}
		return fmt.Errorf("failed to open engine output: %w", err)
	}

	hdr, err := f.writeCompressed(src, spec)
	src.Close()
	if err != nil {
		return err
	}

	if err := f.FS.Remove(spec.IntermediatePath); err != nil {
		return fmt.Errorf("failed to remove intermediate %s: %w", spec.IntermediatePath, err)
	}

	f.Log.Info(component, "wrote compressed output", map[string]interface{}{
		"path":    spec.FinalPath,
		"dims":    hdr.Dims,
		"volumes": hdr.Volumes(),
	})
	return nil
}

// writeCompressed streams src into spec.FinalPath through a temporary file
func (f *Finalizer) writeCompressed(src io.Reader, spec models.OutputSpec) (*nifti.Header, error) {
	br := bufio.NewReaderSize(src, 64*1024)
	peeked, err := br.Peek(peekSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read engine output: %w", err)
	}
	hdr, err := nifti.ReadHeader(bytes.NewReader(peeked))
	if err != nil {
		return nil, models.Errorf(models.ErrInvalidIntermediate, "%s: %v", spec.IntermediatePath, err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", spec.FinalPath, uuid.NewString())
	dst, err := f.FS.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if err := f.gzipTo(dst, br, spec.IntermediateName); err != nil {
		dst.Close()
		f.FS.Remove(tmp)
		return nil, err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		f.FS.Remove(tmp)
		return nil, fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := dst.Close(); err != nil {
		f.FS.Remove(tmp)
		return nil, fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := f.FS.Rename(tmp, spec.FinalPath); err != nil {
		f.FS.Remove(tmp)
		return nil, fmt.Errorf("failed to move compressed output into place: %w", err)
	}
	return hdr, nil
}

func (f *Finalizer) gzipTo(dst io.Writer, src io.Reader, name string) error {
	gz, err := gzip.NewWriterLevel(dst, f.Level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	gz.Name = name

	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		return fmt.Errorf("failed to compress engine output: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress engine output: %w", err)
	}
	return nil
}
