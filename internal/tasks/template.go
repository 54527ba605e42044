package tasks

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/aescanero/dago-node-template/internal/eval/template"
	"github.com/aescanero/dago-node-template/internal/task"
	"go.uber.org/zap"
)

// HostKey is the context key the task host is bound to
const HostKey = "host"

var (
	// ErrNoHost is returned when the task carries no host
	ErrNoHost = errors.New("task has no host")

	// ErrReservedKey is returned when extra data tries to override the host
	ErrReservedKey = errors.New("reserved template key")
)

// FormatFunc post-processes rendered text
type FormatFunc func(string) (string, error)

type options struct {
	filters template.Filters
	env     *template.Environment
	format  FormatFunc
	data    map[string]any
}

// Option configures a template task
type Option func(*options)

// WithFilters registers filters in the environment before rendering,
// overwriting filters of the same name
func WithFilters(filters template.Filters) Option {
	return func(o *options) {
		maps.Copy(o.filters, filters)
	}
}

// WithEnvironment renders with a caller-supplied environment. Its loader is
// replaced by one bound to the template path on every call.
func WithEnvironment(env *template.Environment) Option {
	return func(o *options) {
		o.env = env
	}
}

// WithFormat applies fn to the rendered text
func WithFormat(fn FormatFunc) Option {
	return func(o *options) {
		o.format = fn
	}
}

// WithData adds values to the template context
func WithData(data map[string]any) Option {
	return func(o *options) {
		maps.Copy(o.data, data)
	}
}

// WithValue adds a single value to the template context
func WithValue(key string, value any) Option {
	return func(o *options) {
		o.data[key] = value
	}
}

func buildOptions(opts []Option) (*options, error) {
	o := &options{
		filters: make(template.Filters),
		data:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(o)
	}
	if _, ok := o.data[HostKey]; ok {
		return nil, fmt.Errorf("%w: %q is bound to the task host", ErrReservedKey, HostKey)
	}
	return o, nil
}

// TemplateFile renders the template file tmpl found under path with the task
// host bound to "host" plus any extra data. Without a caller environment a
// fresh one is created with strict undefined variables and block trimming.
//
// Errors from filters and from the format function are returned unchanged.
func TemplateFile(t *task.Task, tmpl, path string, opts ...Option) (*task.Result, error) {
	if t == nil || t.Host == nil {
		return nil, ErrNoHost
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	loader := template.NewFileSystemLoader(path)

	env := o.env
	if env == nil {
		env = template.NewEnvironment(
			template.WithUndefined(template.UndefinedStrict),
			template.WithTrimBlocks(true),
		)
	} else if env.Loader != nil {
		logger(t).Debug("replacing loader of supplied environment", zap.String("path", path))
	}
	env.SetLoader(loader)

	if err := env.UpdateFilters(o.filters); err != nil {
		return nil, err
	}

	parsed, err := env.GetTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	logger(t).Debug("rendering template",
		zap.String("template", tmpl),
		zap.String("path", path),
	)

	return render(t, parsed, o)
}

// TemplateString renders source with the same context and options as TemplateFile.
// A caller environment keeps its loader.
func TemplateString(t *task.Task, source string, opts ...Option) (*task.Result, error) {
	if t == nil || t.Host == nil {
		return nil, ErrNoHost
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	env := o.env
	if env == nil {
		env = template.NewEnvironment(
			template.WithUndefined(template.UndefinedStrict),
			template.WithTrimBlocks(true),
		)
	}

	if err := env.UpdateFilters(o.filters); err != nil {
		return nil, err
	}

	parsed, err := env.FromString(source)
	if err != nil {
		return nil, err
	}

	return render(t, parsed, o)
}

// render executes parsed and wraps the text in a result
func render(t *task.Task, parsed *template.Template, o *options) (*task.Result, error) {
	ctx := make(map[string]any, len(o.data)+1)
	maps.Copy(ctx, o.data)
	ctx[HostKey] = t.Host

	text, err := parsed.Render(ctx)
	if err != nil {
		return nil, err
	}

	if o.format != nil {
		text, err = o.format(text)
		if err != nil {
			return nil, err
		}
	}

	return task.NewResult(t.Host, text), nil
}

// TemplateFileTask adapts TemplateFile to a task.Func
func TemplateFileTask(tmpl, path string, opts ...Option) task.Func {
	return func(_ context.Context, t *task.Task) (*task.Result, error) {
		return TemplateFile(t, tmpl, path, opts...)
	}
}

// TemplateStringTask adapts TemplateString to a task.Func
func TemplateStringTask(source string, opts ...Option) task.Func {
	return func(_ context.Context, t *task.Task) (*task.Result, error) {
		return TemplateString(t, source, opts...)
	}
}

func logger(t *task.Task) *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
