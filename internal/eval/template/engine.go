package template

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"text/template"
)

// UndefinedPolicy controls how references to missing variables are rendered
type UndefinedPolicy string

const (
	// UndefinedDefault renders missing map keys as "<no value>"
	UndefinedDefault UndefinedPolicy = ""

	// UndefinedStrict fails rendering when a missing variable is referenced
	UndefinedStrict UndefinedPolicy = "strict"
)

// Environment holds the configuration shared by the templates it loads.
// Loader and Filters may be changed in place between renders; an Environment
// is not safe for concurrent mutation.
type Environment struct {
	Loader     Loader
	Undefined  UndefinedPolicy
	TrimBlocks bool
	Filters    Filters
}

// EnvOption configures an Environment
type EnvOption func(*Environment)

// WithLoader sets the template loader
func WithLoader(loader Loader) EnvOption {
	return func(e *Environment) {
		e.Loader = loader
	}
}

// WithUndefined sets the undefined-variable policy
func WithUndefined(policy UndefinedPolicy) EnvOption {
	return func(e *Environment) {
		e.Undefined = policy
	}
}

// WithTrimBlocks enables removal of the first newline after a block action
func WithTrimBlocks(enabled bool) EnvOption {
	return func(e *Environment) {
		e.TrimBlocks = enabled
	}
}

// WithFilters adds filters to the environment. Invalid filters are reported
// by GetTemplate.
func WithFilters(filters Filters) EnvOption {
	return func(e *Environment) {
		maps.Copy(e.Filters, filters)
	}
}

// NewEnvironment creates a new environment
func NewEnvironment(opts ...EnvOption) *Environment {
	env := &Environment{
		Filters: make(Filters),
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// SetLoader replaces the environment's loader
func (e *Environment) SetLoader(loader Loader) {
	e.Loader = loader
}

// UpdateFilters registers filters, overwriting existing filters of the same name.
// Nothing is registered if any filter is invalid.
func (e *Environment) UpdateFilters(filters Filters) error {
	for name, fn := range filters {
		if err := validateFilter(name, fn); err != nil {
			return err
		}
	}

	if e.Filters == nil {
		e.Filters = make(Filters, len(filters))
	}
	maps.Copy(e.Filters, filters)

	return nil
}

// GetTemplate loads and parses the template called name
func (e *Environment) GetTemplate(name string) (*Template, error) {
	if e.Loader == nil {
		return nil, ErrNoLoader
	}

	source, err := e.Loader.Load(name)
	if err != nil {
		return nil, err
	}

	return e.parse(name, source)
}

// FromString parses source as an anonymous template
func (e *Environment) FromString(source string) (*Template, error) {
	return e.parse("inline", source)
}

// parse compiles source with the environment's settings
func (e *Environment) parse(name, source string) (*Template, error) {
	funcs := defaultFilters()
	for filterName, fn := range e.Filters {
		if err := validateFilter(filterName, fn); err != nil {
			return nil, err
		}
		funcs[filterName] = fn
	}

	if e.TrimBlocks {
		source = trimBlocks(source)
	}

	tmpl, err := template.New(name).
		Option(e.missingKeyOption()).
		Funcs(funcs).
		Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	return &Template{name: name, tmpl: tmpl}, nil
}

func (e *Environment) missingKeyOption() string {
	if e.Undefined == UndefinedStrict {
		return "missingkey=error"
	}
	return "missingkey=default"
}

// blockAction matches a statement action followed by the newline trim-blocks
// removes. Statements are control keywords, template calls, variable
// declarations and assignments, and comments.
var blockAction = regexp.MustCompile(
	`(\{\{-?\s*(?:(?:if|else|end|range|with|define|block|break|continue|template)\b|\$\w*\s*:?=|/\*)(?:[^}]|\}[^}])*\}\})\r?\n`,
)

// trimBlocks removes the first newline after every statement action
func trimBlocks(source string) string {
	return blockAction.ReplaceAllString(source, "${1}")
}

// Template is a parsed template ready to render
type Template struct {
	name string
	tmpl *template.Template
}

// Name returns the name the template was loaded under
func (t *Template) Name() string {
	return t.name
}

// Render executes the template against ctx.
// Errors returned by filters are passed through as-is.
func (t *Template) Render(ctx map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, ctx); err != nil {
		return "", t.translateError(err)
	}
	return buf.String(), nil
}

// Messages text/template uses for references it cannot resolve. It has no
// typed errors for these.
const (
	msgMissingKey   = "map has no entry for key"
	msgMissingField = "can't evaluate field"
)

// translateError maps text/template execution errors onto this package's taxonomy
func (t *Template) translateError(err error) error {
	var execErr template.ExecError
	if !errors.As(err, &execErr) {
		return fmt.Errorf("template %q execution failed: %w", t.name, err)
	}

	// A wrapped cause means a function call failed; hand back its error.
	if cause := errors.Unwrap(execErr.Err); cause != nil {
		if errors.Is(cause, ErrUndefined) {
			return &UndefinedError{Template: t.name, Err: cause}
		}
		return cause
	}

	msg := execErr.Error()
	if strings.Contains(msg, msgMissingKey) || strings.Contains(msg, msgMissingField) {
		return &UndefinedError{Template: t.name, Err: execErr}
	}

	return fmt.Errorf("template %q execution failed: %w", t.name, err)
}
