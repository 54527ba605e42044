// Package commands implements the CLI commands for template-render.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

// CLI represents the command line interface for template-render.
type CLI struct {
	out     io.Writer
	rootCmd *cobra.Command
}

// New creates a new CLI writing results to out.
func New(out io.Writer) *CLI {
	rootCmd := &cobra.Command{
		Use:           "template-render",
		Short:         "Render templates for inventory hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	c := &CLI{
		out:     out,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newRenderCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
