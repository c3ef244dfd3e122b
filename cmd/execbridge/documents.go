package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/execbridge/internal/storage"
	"github.com/michaelbrown/execbridge/internal/storage/sqlite"
)

var (
	kindFilter   string
	limitFlag    int
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"document", "docs"},
	Short:   "Manage documents stored by bridge sessions",
	Long: `Inspect the documents sessions stored through document signals or
bridge.Session().PutDocument. Requires storage.db_path to point at a file.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export documents as markdown, JSON or YAML",
	RunE:  runDocumentsExport,
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd, documentsShowCmd, documentsDeleteCmd, documentsExportCmd)

	documentsListCmd.Flags().StringVar(&kindFilter, "kind", "", "Filter by kind")
	documentsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max documents to show")

	documentsExportCmd.Flags().StringVar(&kindFilter, "kind", "", "Filter by kind")
	documentsExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md, json or yaml")
	documentsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	documentsDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

var errNoStore = errors.New("storage.db_path is :memory:, so no documents outlive the bridge; set it to a file")

func openStore() (storage.Store, error) {
	if cfg.Storage.DBPath == "" || cfg.Storage.DBPath == ":memory:" {
		return nil, errNoStore
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.ListDocuments(context.Background(), storage.ListOptions{
		Kind:  kindFilter,
		Limit: limitFlag,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}

	// Header
	fmt.Fprintf(out, "%-32s %-10s %8s %s\n", "NAME", "KIND", "SIZE", "UPDATED")
	fmt.Fprintln(out, strings.Repeat("─", 64))

	for _, d := range docs {
		name := d.Name
		if len(name) > 30 {
			name = name[:30] + ".."
		}
		kind := d.Kind
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(out, "%-32s %-10s %8d %s\n", name, kind, len(d.Content), timeAgo(d.UpdatedAt))
	}
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.GetDocument(context.Background(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Document: %s\n", d.Name)
	if d.Kind != "" {
		fmt.Fprintf(out, "Kind:     %s\n", d.Kind)
	}
	fmt.Fprintf(out, "Created:  %s\n", d.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Updated:  %s\n", d.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintln(out, d.Content)
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	d, err := store.GetDocument(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !forceFlag {
		fmt.Fprintf(out, "Delete document %q? [y/N] ", d.Name)
		var confirm string
		fmt.Fscanln(cmd.InOrStdin(), &confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := store.DeleteDocument(ctx, d.Name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted document %s\n", d.Name)
	return nil
}

func runDocumentsExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.ListDocuments(context.Background(), storage.ListOptions{Kind: kindFilter, Limit: -1})
	if err != nil {
		return err
	}

	var output []byte
	switch exportFormat {
	case "json":
		output, err = storage.ExportJSON(docs)
	case "yaml", "yml":
		output, err = storage.ExportYAML(docs)
	case "md", "markdown":
		output = []byte(storage.ExportMarkdown(docs))
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}
	if err != nil {
		return err
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, output, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(output)
	return err
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
