// Package tasks holds the template rendering tasks.
//
// TemplateFile renders a file from a template directory with the task host
// available as "host":
//
//	t := task.New("render", host, logger)
//	res, err := tasks.TemplateFile(t, "interfaces.tmpl", "templates/",
//	    tasks.WithFilters(template.Filters{"vlan_range": vlanRange}),
//	    tasks.WithValue("site", "mad1"),
//	    tasks.WithFormat(func(s string) (string, error) {
//	        return strings.TrimSpace(s), nil
//	    }),
//	)
//
// Run it over an inventory with the runner:
//
//	agg := runner.Run(ctx, "render", inv, tasks.TemplateFileTask("interfaces.tmpl", "templates/"))
package tasks
