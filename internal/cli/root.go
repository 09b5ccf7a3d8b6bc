// Package cli implements the docai command line console.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oremus-labs/docai-console/internal/metrics"
	"github.com/spf13/cobra"
)

// app carries flag state and loaded configuration for one invocation.
type app struct {
	cfgFile       string
	contextName   string
	overrideURL   string
	overrideToken string
	outputFormat  string
	timeout       time.Duration
	verbose       bool
	strict        bool
	metricsFile   string

	config *Config
}

// Execute runs the CLI.
func Execute() error {
	a := &app{}
	err := a.rootCommand().Execute()
	a.flushMetrics(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewRootCommand builds the docai command tree.
func NewRootCommand() *cobra.Command {
	return (&app{}).rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "docai",
		Short: "Console for the document and chat AI service",
		Long: `docai talks to the document/chat AI service: upload documents, manage
conversations and stream assistant replies.
Most commands require a configured context (see 'docai config set-context').`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Config commands load/save the file manually.
			if strings.HasPrefix(cmd.CommandPath(), "docai config") {
				return nil
			}
			switch strings.ToLower(a.outputFormat) {
			case "table", "json", "":
			default:
				return fmt.Errorf("unsupported output format %q", a.outputFormat)
			}
			if a.config == nil {
				cfg, err := LoadConfig(a.cfgFile)
				if err != nil {
					return err
				}
				a.config = cfg
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", defaultConfigPath(), "Path to the docai config file")
	flags.StringVar(&a.contextName, "context", "", "Context name to use (overrides current)")
	flags.StringVar(&a.overrideURL, "server", "", "Override API server URL")
	flags.StringVar(&a.overrideToken, "token", "", "Override API token")
	flags.StringVarP(&a.outputFormat, "output", "o", "table", "Output format: table|json")
	flags.DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (overrides context)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log requests to stderr")
	flags.BoolVar(&a.strict, "strict", false, "Validate responses against the service OpenAPI schemas")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write client request metrics to this file on exit (Prometheus text format)")

	root.AddCommand(
		a.configCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.healthCommand(),
		a.documentsCommand(),
		a.conversationsCommand(),
		a.chatCommand(),
		a.eventsCommand(),
	)
	return root
}

// resolvedContext merges config state with flag overrides.
func (a *app) resolvedContext() (*Context, error) {
	if a.config == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	name := a.contextName
	if name == "" {
		name = a.config.CurrentContext
	}
	ctx, ok := a.config.Contexts[name]
	if !ok {
		if a.overrideURL == "" {
			return nil, fmt.Errorf("context %q not found; use 'docai config set-context'", name)
		}
		ctx = Context{Name: name}
	}
	if a.overrideURL != "" {
		ctx.Server = a.overrideURL
	}
	if a.overrideToken != "" {
		ctx.Token = a.overrideToken
	}
	if a.timeout > 0 {
		ctx.Timeout = a.timeout.String()
	}
	if ctx.Server == "" {
		return nil, fmt.Errorf("context %q is missing a server URL", name)
	}
	return &ctx, nil
}

// flushMetrics writes the client metrics file when one was requested. Errors
// only warn; the command result stands.
func (a *app) flushMetrics(stderr io.Writer) {
	if a.metricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.metricsFile); err != nil {
		fmt.Fprintf(stderr, "warning: write metrics file: %v\n", err)
	}
}

func (a *app) jsonOutput() bool {
	return strings.EqualFold(a.outputFormat, "json")
}
