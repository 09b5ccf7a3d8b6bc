package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultUploadParallelism = 4

func (a *app) documentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage uploaded documents",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			list, err := client.ListDocuments(callCtx, limit, a.schema("DocumentList")...)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), list)
			}
			printDocuments(cmd, list.Items)
			if len(list.Items) < list.Total {
				fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d shown)\n", len(list.Items), list.Total)
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents to list")

	var parallel int
	uploadCmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			if parallel < 1 {
				parallel = 1
			}
			docs := make([]apiclient.Document, len(args))
			var mu sync.Mutex
			g, gctx := errgroup.WithContext(callCtx)
			g.SetLimit(parallel)
			for i, path := range args {
				g.Go(func() error {
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()
					doc, err := client.UploadDocument(gctx, filepath.Base(path), f, a.schema("Document")...)
					if err != nil {
						return fmt.Errorf("upload %s: %w", path, err)
					}
					docs[i] = *doc
					if !a.jsonOutput() {
						mu.Lock()
						fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s (%s)\n", path, doc.ID, humanBytes(doc.Size))
						mu.Unlock()
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			return nil
		},
	}
	uploadCmd.Flags().IntVar(&parallel, "parallel", defaultUploadParallelism, "Number of concurrent uploads")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			doc, err := client.GetDocument(callCtx, args[0], a.schema("Document")...)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			printDocuments(cmd, []apiclient.Document{*doc})
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.newClient(cmd)
			if err != nil {
				return err
			}
			callCtx, cancel := commandContext(cmd)
			defer cancel()

			for _, id := range args {
				if err := client.DeleteDocument(callCtx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, uploadCmd, getCmd, deleteCmd)
	return cmd
}

func printDocuments(cmd *cobra.Command, docs []apiclient.Document) {
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintf(tw, "ID\tNAME\tTYPE\tSIZE\tSTATUS\tCREATED\n")
	for _, doc := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			doc.ID,
			doc.Name,
			doc.ContentType,
			humanBytes(doc.Size),
			doc.Status,
			relativeTime(doc.CreatedAt))
	}
	flushTable(tw)
}
