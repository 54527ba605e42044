package task

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aescanero/dago-node-template/internal/inventory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is used when a runner is created with a non-positive worker count
const DefaultWorkers = 20

// Runner runs a task over every host of an inventory
type Runner struct {
	workers int
	logger  *zap.Logger
}

// NewRunner creates a runner with at most workers hosts in flight
func NewRunner(workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		workers: workers,
		logger:  logger,
	}
}

// Run executes fn once per host. A failing host never stops the others; its
// error is recorded as a failed result. Hosts not started before ctx is done
// fail with the context error.
func (r *Runner) Run(ctx context.Context, name string, inv *inventory.Inventory, fn Func) *AggregatedResult {
	agg := newAggregatedResult(name)

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for _, hostName := range inv.Names() {
		host := inv.Hosts[hostName]
		g.Go(func() error {
			agg.set(hostName, r.runHost(ctx, name, host, fn))
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("task completed",
		zap.String("task", name),
		zap.Int("hosts", agg.Len()),
		zap.Int("failed", len(agg.FailedHosts())),
	)

	return agg
}

func (r *Runner) runHost(ctx context.Context, name string, host *inventory.Host, fn Func) (res *Result) {
	if err := ctx.Err(); err != nil {
		return NewFailedResult(host, err)
	}

	logger := r.logger.With(zap.String("task", name), zap.String("host", host.Name))

	defer func() {
		if p := recover(); p != nil {
			logger.Error("task panicked", zap.Any("panic", p))
			res = NewFailedResult(host, fmt.Errorf("task %s panicked on %s: %v", name, host.Name, p))
		}
	}()

	result, err := fn(ctx, New(name, host, logger))
	if err != nil {
		logger.Warn("task failed", zap.Error(err))
		return NewFailedResult(host, err)
	}
	if result == nil {
		return NewResult(host, "")
	}
	return result
}

// AggregatedResult collects the per-host results of one task run
type AggregatedResult struct {
	Name string

	mu      sync.RWMutex
	results map[string]*Result
}

func newAggregatedResult(name string) *AggregatedResult {
	return &AggregatedResult{
		Name:    name,
		results: make(map[string]*Result),
	}
}

func (a *AggregatedResult) set(host string, r *Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[host] = r
}

// Get returns the result for host
func (a *AggregatedResult) Get(host string) (*Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[host]
	return r, ok
}

// Hosts returns the sorted names of the hosts with a result
func (a *AggregatedResult) Hosts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	hosts := make([]string, 0, len(a.results))
	for h := range a.results {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts
}

// Failed reports whether any host failed
func (a *AggregatedResult) Failed() bool {
	return len(a.FailedHosts()) > 0
}

// FailedHosts returns the sorted names of the failed hosts
func (a *AggregatedResult) FailedHosts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var failed []string
	for h, r := range a.results {
		if r.Failed() {
			failed = append(failed, h)
		}
	}
	slices.Sort(failed)
	return failed
}

// Len returns the number of results
func (a *AggregatedResult) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.results)
}

// Results returns a copy of the results keyed by host name
func (a *AggregatedResult) Results() map[string]*Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]*Result, len(a.results))
	for h, r := range a.results {
		out[h] = r
	}
	return out
}
