// Package cel provides a CEL (Common Expression Language) evaluator for host selection.
//
// CEL is a non-Turing complete expression language that provides fast, safe evaluation
// of conditions. The inventory uses it to pick the hosts a template is rendered for.
//
// Example usage:
//
//	evaluator, err := cel.NewEvaluator()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vars := map[string]interface{}{
//	    "host": map[string]interface{}{
//	        "name":     "router1",
//	        "platform": "ios",
//	        "data":     map[string]interface{}{"site": "mad1"},
//	    },
//	}
//
//	matched, err := evaluator.Match(ctx, "host.platform == 'ios' && host.data.site == 'mad1'", vars)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - List operations: in, size
//   - Map access: host.field, host["field"], has(host.data.field)
package cel
