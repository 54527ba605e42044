package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aescanero/dago-node-template/internal/eval/cel"
	"github.com/aescanero/dago-node-template/internal/inventory"
	"github.com/aescanero/dago-node-template/internal/logging"
	"github.com/aescanero/dago-node-template/internal/task"
	"github.com/aescanero/dago-node-template/internal/tasks"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type renderOptions struct {
	inventory string
	path      string
	filter    string
	dataFile  string
	set       []string
	workers   int
	json      bool
}

func (c *CLI) newRenderCmd() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template for every selected host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.inventory, "inventory", "i", "inventory.yaml", "Path to the inventory file")
	flags.StringVarP(&opts.path, "path", "p", "templates", "Directory holding the templates")
	flags.StringVarP(&opts.filter, "filter", "f", "", "CEL expression selecting hosts, e.g. host.platform == 'ios'")
	flags.StringVar(&opts.dataFile, "data-file", "", "YAML file with extra template data")
	flags.StringArrayVar(&opts.set, "set", nil, "Extra template data as key=value (value parsed as YAML)")
	flags.IntVarP(&opts.workers, "workers", "w", task.DefaultWorkers, "Hosts rendered in parallel")
	flags.BoolVar(&opts.json, "json", false, "Print results as JSON")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, tmpl string, opts *renderOptions) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := logging.New(level, "stderr")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	data, err := loadData(opts.dataFile, opts.set)
	if err != nil {
		return err
	}

	inv, err := inventory.LoadFile(opts.inventory)
	if err != nil {
		return err
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}

	inv, err = inv.Filter(cmd.Context(), evaluator, opts.filter)
	if err != nil {
		return fmt.Errorf("failed to filter hosts: %w", err)
	}

	agg := task.NewRunner(opts.workers, logger).Run(
		cmd.Context(),
		tmpl,
		inv,
		tasks.TemplateFileTask(tmpl, opts.path, tasks.WithData(data)),
	)

	if opts.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(agg.Results()); err != nil {
			return err
		}
	} else {
		for _, host := range agg.Hosts() {
			r, _ := agg.Get(host)
			if r.Failed() {
				fmt.Fprintf(c.out, "---- %s ** FAILED\n%v\n", host, r.Err())
				continue
			}
			fmt.Fprintf(c.out, "---- %s\n%s\n", host, r.Result())
		}
	}

	if failed := agg.FailedHosts(); len(failed) > 0 {
		return fmt.Errorf("rendering failed for %d host(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// loadData merges the data file with --set values, the latter winning
func loadData(file string, sets []string) (map[string]any, error) {
	data := make(map[string]any)

	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse data file %s: %w", file, err)
		}
	}

	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		var parsed any
		if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		data[key] = parsed
	}

	return data, nil
}
