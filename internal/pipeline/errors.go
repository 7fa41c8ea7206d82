package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnhandledFileType = errors.New("unhandled file type")
	ErrTransformFailure  = errors.New("transform failed")
	ErrOutputCollision   = errors.New("output collision")
	ErrMinify            = errors.New("minify failed")
)

// UnhandledFileTypeError is returned when no rule matches a file the module
// graph requires and the file is not a script or data file.
type UnhandledFileTypeError struct {
	Path string
}

func (e *UnhandledFileTypeError) Error() string {
	return fmt.Sprintf("no rule matches %s: %s", e.Path, ErrUnhandledFileType)
}

func (e *UnhandledFileTypeError) Is(target error) bool {
	return target == ErrUnhandledFileType
}

// TransformFailureError wraps a failing stage with the file and transform
// that produced it.
type TransformFailureError struct {
	Path      string
	Transform string
	Err       error
}

func (e *TransformFailureError) Error() string {
	return fmt.Sprintf("transform %s failed for %s: %v", e.Transform, e.Path, e.Err)
}

func (e *TransformFailureError) Unwrap() error {
	return e.Err
}

func (e *TransformFailureError) Is(target error) bool {
	return target == ErrTransformFailure
}

// OutputCollisionError is returned when two artifacts resolve to the same
// output path. It is raised before anything is written.
type OutputCollisionError struct {
	Path    string
	Sources []string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("output %s produced by %s: %s", e.Path, strings.Join(e.Sources, ", "), ErrOutputCollision)
}

func (e *OutputCollisionError) Is(target error) bool {
	return target == ErrOutputCollision
}

type MinifyError struct {
	Path     string
	Minifier string
	Err      error
}

func (e *MinifyError) Error() string {
	return fmt.Sprintf("minifier %s failed for %s: %v", e.Minifier, e.Path, e.Err)
}

func (e *MinifyError) Unwrap() error {
	return e.Err
}

func (e *MinifyError) Is(target error) bool {
	return target == ErrMinify
}
