// Package template provides the rendering environment used by the template tasks.
//
// An Environment owns a Loader bound to a directory, an undefined-variable
// policy, block trimming and a table of named filters. Templates use Go
// text/template syntax with the sprig function set plus a few built-in filters.
//
// Example usage:
//
//	env := template.NewEnvironment(
//	    template.WithLoader(template.NewFileSystemLoader("templates")),
//	    template.WithUndefined(template.UndefinedStrict),
//	    template.WithTrimBlocks(true),
//	)
//
//	tmpl, err := env.GetTemplate("interfaces.tmpl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Render(map[string]any{"host": host})
//
// With UndefinedStrict, referencing a missing key fails with an error that
// matches ErrUndefined instead of rendering "<no value>".
//
// Built-in filters (on top of sprig):
//   - uppercase - Convert string to uppercase
//   - lowercase - Convert string to lowercase
//   - length - Length of a string, slice or map
//   - to_json - Encode a value as JSON
//   - to_yaml - Encode a value as YAML
//
// Example with filters:
//
//	{{ .host.Name | uppercase }}               # "ROUTER1"
//	{{ .host.Data.vlans | length }}            # 3
//	{{ range .host.Data.vlans }}vlan {{ . }}{{ end }}
package template
