package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) conversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			list, err := client.ListConversations(callCtx, limit, a.schema("ConversationList")...)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), list)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "ID\tTITLE\tMESSAGES\tUPDATED\n")
			for _, conv := range list.Items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", conv.ID, conv.Title, conv.MessageCount, relativeTime(conv.UpdatedAt))
			}
			flushTable(tw)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of conversations to list")

	createCmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Start a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			conv, err := client.CreateConversation(callCtx, strings.Join(args, " "), a.schema("Conversation")...)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), conv)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created conversation %s (%s)\n", conv.ID, conv.Title)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			detail, err := client.GetConversation(callCtx, args[0], a.schema("Conversation")...)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), detail)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d messages)\n", detail.Title, detail.MessageCount)
			for _, msg := range detail.Messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04:05"), msg.Role, msg.Content)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			if err := client.DeleteConversation(callCtx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, createCmd, showCmd, deleteCmd)
	return cmd
}
