// Package task defines the per-host task context, its result and a runner
// that executes a task over an inventory.
//
// Example usage:
//
//	runner := task.NewRunner(10, logger)
//	agg := runner.Run(ctx, "render", inv, func(ctx context.Context, t *task.Task) (*task.Result, error) {
//	    return task.NewResult(t.Host, "hello "+t.Host.Name), nil
//	})
//
//	for _, name := range agg.Hosts() {
//	    r, _ := agg.Get(name)
//	    fmt.Println(name, r.Result(), r.Err())
//	}
package task
