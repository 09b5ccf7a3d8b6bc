package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) chatCommand() *cobra.Command {
	var noStream bool
	cmd := &cobra.Command{
		Use:   "chat <conversation-id> <message>...",
		Short: "Send a message and print the assistant reply",
		Long: `chat posts a message to a conversation. The reply is streamed to stdout as
it is generated unless --no-stream is set. Ctrl-C stops a streaming reply.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			content := strings.Join(args[1:], " ")
			out := cmd.OutOrStdout()
			if noStream || a.jsonOutput() {
				resp, err := client.SendMessage(callCtx, args[0], content, a.schema("SendMessageResponse")...)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return printJSON(out, resp)
				}
				fmt.Fprintln(out, resp.Reply.Content)
				return nil
			}

			stream, err := client.StreamMessage(callCtx, args[0], content)
			if err != nil {
				return err
			}
			for delta, err := range stream.All() {
				if err != nil {
					fmt.Fprintln(out)
					return err
				}
				fmt.Fprint(out, delta)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the complete reply instead of streaming")
	return cmd
}

// streamedEvent mirrors the JSON payload of the /events stream.
type streamedEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (a *app) eventsCommand() *cobra.Command {
	var (
		count     int
		typeMatch string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the service event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			stream, err := client.Events(callCtx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			seen := 0
			for payload, err := range stream.All() {
				if err != nil {
					return err
				}
				var evt streamedEvent
				if err := json.Unmarshal([]byte(payload), &evt); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping malformed event: %v\n", err)
					continue
				}
				if typeMatch != "" && !strings.HasPrefix(evt.Type, typeMatch) {
					continue
				}
				if a.jsonOutput() {
					fmt.Fprintln(out, payload)
				} else {
					fmt.Fprintf(out, "%s  %-22s %s\n", evt.Timestamp.Local().Format("15:04:05"), evt.Type, string(evt.Data))
				}
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events")
	cmd.Flags().StringVar(&typeMatch, "type", "", "Only show events whose type starts with this prefix")
	return cmd
}
