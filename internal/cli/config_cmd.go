package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	var (
		server      string
		token       string
		timeout     string
		makeCurrent bool
	)
	setContextCmd := &cobra.Command{
		Use:   "set-context <name>",
		Short: "Create or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			ctx, exists := cfg.Contexts[name]
			ctx.Name = name
			if cmd.Flags().Changed("server") {
				ctx.Server = server
			}
			if cmd.Flags().Changed("token") {
				ctx.Token = token
			}
			if cmd.Flags().Changed("timeout") {
				ctx.Timeout = timeout
			}
			if ctx.Server == "" {
				return fmt.Errorf("--server is required")
			}
			if _, err := ctx.RequestTimeout(); err != nil {
				return err
			}
			setContext(cfg, ctx, makeCurrent)
			if err := SaveConfig(cfg, a.cfgFile); err != nil {
				return err
			}
			verb := "created"
			if exists {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q %s.\n", name, verb)
			return nil
		},
	}
	setContextCmd.Flags().StringVar(&server, "server", "", "API server URL")
	setContextCmd.Flags().StringVar(&token, "token", "", "API token")
	setContextCmd.Flags().StringVar(&timeout, "timeout", "", "Per-request timeout, e.g. 30s")
	setContextCmd.Flags().BoolVar(&makeCurrent, "current", true, "Set as current context")

	useContextCmd := &cobra.Command{
		Use:   "use-context <name>",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			if err := ensureContextExists(cfg, args[0]); err != nil {
				return err
			}
			cfg.CurrentContext = args[0]
			if err := SaveConfig(cfg, a.cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
			return nil
		},
	}

	currentContextCmd := &cobra.Command{
		Use:   "current-context",
		Short: "Print the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			if cfg.CurrentContext == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No context configured.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
			return nil
		},
	}

	deleteContextCmd := &cobra.Command{
		Use:   "delete-context <name>",
		Short: "Remove a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			if err := ensureContextExists(cfg, args[0]); err != nil {
				return err
			}
			delete(cfg.Contexts, args[0])
			if cfg.CurrentContext == args[0] {
				cfg.CurrentContext = ""
			}
			if err := SaveConfig(cfg, a.cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
			return nil
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Show the configuration with tokens redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			redacted := &Config{CurrentContext: cfg.CurrentContext, Contexts: map[string]Context{}}
			for name, ctx := range cfg.Contexts {
				if ctx.Token != "" {
					ctx.Token = "REDACTED"
				}
				redacted.Contexts[name] = ctx
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), redacted)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", a.cfgFile)
			names := make([]string, 0, len(redacted.Contexts))
			for name := range redacted.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "CURRENT\tNAME\tSERVER\tTIMEOUT\tLOGGED IN\n")
			for _, name := range names {
				ctx := redacted.Contexts[name]
				current := ""
				if redacted.CurrentContext == name {
					current = "*"
				}
				loggedIn := "no"
				if ctx.Token != "" {
					loggedIn = "yes"
				}
				timeout := ctx.Timeout
				if timeout == "" {
					timeout = "default"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", current, name, ctx.Server, timeout, loggedIn)
			}
			flushTable(tw)
			return nil
		},
	}

	cmd.AddCommand(setContextCmd, useContextCmd, currentContextCmd, deleteContextCmd, viewCmd)
	return cmd
}
