package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/spf13/cobra"
)

func (a *app) loginCommand() *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token in the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if username == "" || password == "" {
				return fmt.Errorf("--username and a password (--password or --password-stdin) are required")
			}
			client, ctx, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			resp, err := client.Login(callCtx, username, password)
			if err != nil {
				return err
			}
			if a.overrideToken == "" {
				saved := *ctx
				saved.Token = resp.AccessToken
				if _, ok := a.config.Contexts[ctx.Name]; ok {
					saved.Server = a.config.Contexts[ctx.Name].Server
					saved.Timeout = a.config.Contexts[ctx.Name].Timeout
				}
				setContext(a.config, saved, false)
				if err := SaveConfig(a.config, a.cfgFile); err != nil {
					return err
				}
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), resp.User)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (context %q).\n", resp.User.Username, ctx.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			if _, ok := client.Credential(); ok {
				if err := client.Logout(callCtx); err != nil && !apiclient.IsUnauthorized(err) {
					return err
				}
			}
			if _, ok := a.config.Contexts[ctx.Name]; ok && a.overrideToken == "" {
				if err := updateToken(a.cfgFile, ctx.Name, ""); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out of context %q.\n", ctx.Name)
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			user, err := client.Me(callCtx, a.schema("User")...)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
}

func (a *app) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			status, err := client.Health(callCtx)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (version %s)\n", ctx.Server, status.Status, status.Version)
			return nil
		},
	}
}
