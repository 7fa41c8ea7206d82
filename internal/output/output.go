// Package output commits a build plan to disk.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// File is a single artifact ready to be written.
type File struct {
	// Path is slash separated and relative to the output directory.
	Path    string
	Content []byte
}

// SwapError indicates the new output was written but the previous directory
// could not be removed afterwards.
type SwapError struct {
	Dir    string
	OldDir string
	Err    error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("output written to %s but failed to remove previous output %s: %v", e.Dir, e.OldDir, e.Err)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// Write commits files under dir. With clean set the directory is replaced
// wholesale: files are staged in a sibling directory which is swapped in
// once everything has been written, so a failed build never leaves a half
// written or stale output behind. Without clean each file is written to a
// temporary name and renamed over the target.
func Write(ctx context.Context, dir string, files []File, clean bool) error {
	for _, f := range files {
		if err := validatePath(f.Path); err != nil {
			return err
		}
	}

	if clean {
		return writeClean(ctx, dir, files)
	}
	return writeInPlace(ctx, dir, files)
}

func writeClean(ctx context.Context, dir string, files []File) error {
	log := zerolog.Ctx(ctx)
	id := uuid.NewString()

	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create output parent: %w", err)
	}

	staging := filepath.Join(parent, "."+filepath.Base(dir)+".sitepack-"+id)
	if err := os.Mkdir(staging, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(staging)
			return err
		}
		if err := writeFile(filepath.Join(staging, filepath.FromSlash(f.Path)), f.Content); err != nil {
			os.RemoveAll(staging)
			return err
		}
	}

	oldDir := ""
	if _, err := os.Stat(dir); err == nil {
		oldDir = filepath.Join(parent, "."+filepath.Base(dir)+".old-"+id)
		if err := os.Rename(dir, oldDir); err != nil {
			os.RemoveAll(staging)
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
	}

	if err := os.Rename(staging, dir); err != nil {
		if oldDir != "" {
			if restoreErr := os.Rename(oldDir, dir); restoreErr != nil {
				log.Warn().Err(restoreErr).Str("old_dir", oldDir).Msg("Failed to restore previous output")
			}
		}
		os.RemoveAll(staging)
		return fmt.Errorf("failed to swap output directory: %w", err)
	}

	if oldDir != "" {
		if err := os.RemoveAll(oldDir); err != nil {
			return &SwapError{Dir: dir, OldDir: oldDir, Err: err}
		}
	}

	log.Debug().Str("dir", dir).Int("files", len(files)).Msg("Output directory replaced")
	return nil
}

func writeInPlace(ctx context.Context, dir string, files []File) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, filepath.FromSlash(f.Path)), f.Content); err != nil {
			return err
		}
	}
	zerolog.Ctx(ctx).Debug().Str("dir", dir).Int("files", len(files)).Msg("Output files updated")
	return nil
}

// writeFile writes through a temporary file in the target directory and
// renames it into place.
func writeFile(target string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", target, err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to chmod %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename %s: %w", target, err)
	}
	return nil
}

var ErrInvalidPath = errors.New("invalid output path")

func validatePath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := path.Clean(p)
	if clean != p || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}
