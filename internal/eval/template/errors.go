package template

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrTemplateNotFound is matched by every error reporting a missing template
	ErrTemplateNotFound = errors.New("template not found")

	// ErrUndefined is matched by errors raised for undefined template variables
	ErrUndefined = errors.New("undefined variable")

	// ErrInvalidFilter is returned when a filter cannot be registered
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrNoLoader is returned by GetTemplate on an environment without a loader
	ErrNoLoader = errors.New("environment has no loader")
)

// NotFoundError reports a template name that the loader could not resolve
type NotFoundError struct {
	Name string
	Root string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %q not found in %s", e.Name, e.Root)
}

// Is reports whether target is ErrTemplateNotFound or fs.ErrNotExist
func (e *NotFoundError) Is(target error) bool {
	return target == ErrTemplateNotFound || target == fs.ErrNotExist
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// UndefinedError reports a template referencing a name missing from the context
type UndefinedError struct {
	Template string
	Err      error
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined variable in template %q: %v", e.Template, e.Err)
}

// Is reports whether target is ErrUndefined
func (e *UndefinedError) Is(target error) bool {
	return target == ErrUndefined
}

func (e *UndefinedError) Unwrap() error {
	return e.Err
}
