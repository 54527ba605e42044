package template

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	gotemplate "text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestFileSystemLoader(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"hello.tmpl":        "hello",
		"nested/inner.tmpl": "inner",
	})
	loader := NewFileSystemLoader(dir)

	t.Run("Should load a template at the root", func(t *testing.T) {
		src, err := loader.Load("hello.tmpl")
		require.NoError(t, err)
		assert.Equal(t, "hello", src)
	})

	t.Run("Should load a nested template", func(t *testing.T) {
		src, err := loader.Load("nested/inner.tmpl")
		require.NoError(t, err)
		assert.Equal(t, "inner", src)
	})

	t.Run("Should report a missing template as not found", func(t *testing.T) {
		_, err := loader.Load("missing.tmpl")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTemplateNotFound)
		assert.ErrorIs(t, err, fs.ErrNotExist)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "missing.tmpl", nf.Name)
		assert.Equal(t, dir, nf.Root)
	})

	t.Run("Should not resolve names outside the root", func(t *testing.T) {
		_, err := loader.Load("../hello.tmpl")
		assert.ErrorIs(t, err, ErrTemplateNotFound)

		_, err = loader.Load("/etc/passwd")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})

	t.Run("Should report a missing root as not found", func(t *testing.T) {
		_, err := NewFileSystemLoader(filepath.Join(dir, "nope")).Load("hello.tmpl")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestEnvironment_GetTemplate(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"greeting.tmpl": "Hello {{ .name }}",
		"missing.tmpl":  "Hello {{ .nobody }}",
		"broken.tmpl":   "Hello {{ .name ",
	})

	t.Run("Should render with the given context", func(t *testing.T) {
		env := NewEnvironment(WithLoader(NewFileSystemLoader(dir)))
		tmpl, err := env.GetTemplate("greeting.tmpl")
		require.NoError(t, err)
		assert.Equal(t, "greeting.tmpl", tmpl.Name())

		out, err := tmpl.Render(map[string]any{"name": "router1"})
		require.NoError(t, err)
		assert.Equal(t, "Hello router1", out)
	})

	t.Run("Should fail without a loader", func(t *testing.T) {
		_, err := NewEnvironment().GetTemplate("greeting.tmpl")
		assert.ErrorIs(t, err, ErrNoLoader)
	})

	t.Run("Should report parse errors", func(t *testing.T) {
		env := NewEnvironment(WithLoader(NewFileSystemLoader(dir)))
		_, err := env.GetTemplate("broken.tmpl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse template")
	})

	t.Run("Should render missing keys as no value by default", func(t *testing.T) {
		env := NewEnvironment(WithLoader(NewFileSystemLoader(dir)))
		tmpl, err := env.GetTemplate("missing.tmpl")
		require.NoError(t, err)

		out, err := tmpl.Render(map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "Hello <no value>", out)
	})

	t.Run("Should fail on missing keys when strict", func(t *testing.T) {
		env := NewEnvironment(
			WithLoader(NewFileSystemLoader(dir)),
			WithUndefined(UndefinedStrict),
		)
		tmpl, err := env.GetTemplate("missing.tmpl")
		require.NoError(t, err)

		_, err = tmpl.Render(map[string]any{"name": "router1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUndefined)

		var undef *UndefinedError
		require.ErrorAs(t, err, &undef)
		assert.Equal(t, "missing.tmpl", undef.Template)
	})

	t.Run("Should fail on missing nested keys when strict", func(t *testing.T) {
		env := NewEnvironment(WithUndefined(UndefinedStrict))
		tmpl, err := env.FromString("{{ .host.data.asn }}")
		require.NoError(t, err)

		_, err = tmpl.Render(map[string]any{"host": map[string]any{"data": map[string]any{}}})
		assert.ErrorIs(t, err, ErrUndefined)
	})

	t.Run("Should fail on missing struct fields", func(t *testing.T) {
		type host struct{ Name string }
		env := NewEnvironment(WithUndefined(UndefinedStrict))
		tmpl, err := env.FromString("{{ .host.Platform }}")
		require.NoError(t, err)

		_, err = tmpl.Render(map[string]any{"host": host{Name: "r1"}})
		assert.ErrorIs(t, err, ErrUndefined)
	})
}

func TestEnvironment_TrimBlocks(t *testing.T) {
	source := "{{ range .items }}\n- {{ . }}\n{{ end }}\ndone\n"
	ctx := map[string]any{"items": []string{"a", "b"}}

	t.Run("Should keep newlines after blocks when disabled", func(t *testing.T) {
		tmpl, err := NewEnvironment().FromString(source)
		require.NoError(t, err)
		out, err := tmpl.Render(ctx)
		require.NoError(t, err)
		assert.Equal(t, "\n- a\n\n- b\n\ndone\n", out)
	})

	t.Run("Should drop the first newline after blocks when enabled", func(t *testing.T) {
		tmpl, err := NewEnvironment(WithTrimBlocks(true)).FromString(source)
		require.NoError(t, err)
		out, err := tmpl.Render(ctx)
		require.NoError(t, err)
		assert.Equal(t, "- a\n- b\ndone\n", out)
	})

	t.Run("Should leave value actions alone", func(t *testing.T) {
		tmpl, err := NewEnvironment(WithTrimBlocks(true)).FromString("{{ .a }}\n{{ .endpoint }}\n")
		require.NoError(t, err)
		out, err := tmpl.Render(map[string]any{"a": 1, "endpoint": "x"})
		require.NoError(t, err)
		assert.Equal(t, "1\nx\n", out)
	})

	t.Run("Should handle if and else branches", func(t *testing.T) {
		src := "{{ if .on }}\nenabled\n{{ else }}\ndisabled\n{{ end }}\n"
		tmpl, err := NewEnvironment(WithTrimBlocks(true)).FromString(src)
		require.NoError(t, err)
		out, err := tmpl.Render(map[string]any{"on": false})
		require.NoError(t, err)
		assert.Equal(t, "disabled\n", out)
	})

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"declaration", "{{ $x := 1 }}\nval {{ $x }}", "val 1"},
		{"assignment", "{{ $x := 1 }}\n{{ $x = 2 }}\nval {{ $x }}", "val 2"},
		{"comment", "{{/* c */}}\nbody", "body"},
		{"trimmed comment", "{{- /* c */}}\nbody", "body"},
		{"template call", "{{ define \"x\" }}X{{ end }}{{ template \"x\" }}\nY", "XY"},
		{"variable output", "{{ $x := 1 }}\n{{ $x }}\nend", "1\nend"},
	}
	for _, tt := range tests {
		t.Run("Should trim after "+tt.name, func(t *testing.T) {
			tmpl, err := NewEnvironment(WithTrimBlocks(true)).FromString(tt.source)
			require.NoError(t, err)
			out, err := tmpl.Render(map[string]any{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEnvironment_UndefinedFromFunctions(t *testing.T) {
	lookup := func(key string) (any, error) {
		return nil, &UndefinedError{Template: "lookup", Err: errors.New(key)}
	}
	env := NewEnvironment(WithFilters(Filters{"lookup": lookup}))
	tmpl, err := env.FromString(`{{ lookup "vrf" }}`)
	require.NoError(t, err)

	_, err = tmpl.Render(map[string]any{})
	assert.ErrorIs(t, err, ErrUndefined)

	var undef *UndefinedError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, "inline", undef.Template)
}

// text/template has no typed errors for unresolved references, so
// translateError depends on these messages staying put.
func TestUndefinedMessages(t *testing.T) {
	t.Run("Should match missing map keys", func(t *testing.T) {
		tmpl := gotemplate.Must(gotemplate.New("t").Option("missingkey=error").Parse("{{ .a }}"))
		err := tmpl.Execute(io.Discard, map[string]any{})

		var execErr gotemplate.ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Error(), msgMissingKey)
	})

	t.Run("Should match missing struct fields", func(t *testing.T) {
		tmpl := gotemplate.Must(gotemplate.New("t").Parse("{{ .B }}"))
		err := tmpl.Execute(io.Discard, struct{ A int }{})

		var execErr gotemplate.ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Error(), msgMissingField)
	})
}

func TestEnvironment_Filters(t *testing.T) {
	t.Run("Should expose built-in and sprig filters", func(t *testing.T) {
		tmpl, err := NewEnvironment().FromString(
			`{{ .name | uppercase }} {{ .vlans | length }} {{ .name | lowercase | quote }} {{ .vlans | to_json }}`,
		)
		require.NoError(t, err)
		out, err := tmpl.Render(map[string]any{"name": "Router1", "vlans": []int{10, 20}})
		require.NoError(t, err)
		assert.Equal(t, `ROUTER1 2 "router1" [10,20]`, out)
	})

	t.Run("Should render yaml", func(t *testing.T) {
		tmpl, err := NewEnvironment().FromString(`{{ .data | to_yaml }}`)
		require.NoError(t, err)
		out, err := tmpl.Render(map[string]any{"data": map[string]any{"asn": 65000}})
		require.NoError(t, err)
		assert.Equal(t, "asn: 65000", out)
	})

	t.Run("Should overwrite filters with the same name", func(t *testing.T) {
		env := NewEnvironment()
		require.NoError(t, env.UpdateFilters(Filters{"shout": func(s string) string { return s + "!" }}))
		require.NoError(t, env.UpdateFilters(Filters{"shout": func(s string) string { return s + "!!" }}))
		require.NoError(t, env.UpdateFilters(Filters{"uppercase": func(s string) string { return "custom" }}))

		tmpl, err := env.FromString(`{{ .name | shout }} {{ .name | uppercase }}`)
		require.NoError(t, err)
		out, err := tmpl.Render(map[string]any{"name": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "hi!! custom", out)
	})

	t.Run("Should reject invalid filters", func(t *testing.T) {
		env := NewEnvironment()
		err := env.UpdateFilters(Filters{"bad": "not a func"})
		assert.ErrorIs(t, err, ErrInvalidFilter)

		err = env.UpdateFilters(Filters{"no-dash": strings.ToUpper})
		assert.ErrorIs(t, err, ErrInvalidFilter)

		err = env.UpdateFilters(Filters{"noret": func(string) {}})
		assert.ErrorIs(t, err, ErrInvalidFilter)

		assert.Empty(t, env.Filters)
	})

	t.Run("Should report invalid filters set directly on the environment", func(t *testing.T) {
		env := &Environment{Filters: Filters{"bad": 42}}
		_, err := env.FromString("x")
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("Should return filter errors unchanged", func(t *testing.T) {
		boom := errors.New("boom")
		env := NewEnvironment()
		require.NoError(t, env.UpdateFilters(Filters{
			"explode": func(string) (string, error) { return "", boom },
		}))

		tmpl, err := env.FromString(`{{ .name | explode }}`)
		require.NoError(t, err)
		_, err = tmpl.Render(map[string]any{"name": "x"})
		assert.Same(t, boom, err)
	})

	t.Run("Should report unknown filters at parse time", func(t *testing.T) {
		_, err := NewEnvironment().FromString(`{{ .name | nosuchfilter }}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nosuchfilter")
	})
}
