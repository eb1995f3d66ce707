package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/pinpoint-search/pinpoint/internal/app"
	"github.com/pinpoint-search/pinpoint/internal/ingest"
	"github.com/pinpoint-search/pinpoint/internal/scanner"
	"github.com/pinpoint-search/pinpoint/internal/watcher"
)

func newIndexCmd() *cobra.Command {
	var (
		watch       bool
		noGitignore bool
		maxFileSize int64
	)

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Ingest a file or directory of documents",
		Long: `Ingest a file or a directory tree. Document IDs are the paths
relative to the given root, so re-running ingestion replaces prior
content instead of duplicating it. Hidden files, binaries, and paths
matched by .gitignore are skipped.

With --watch, keeps running and re-ingests files as they change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), args[0], indexOptions{
				watch:       watch,
				noGitignore: noGitignore,
				maxFileSize: maxFileSize,
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Watch the directory and re-ingest on change")
	cmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "Index files even when .gitignore excludes them")
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", 0, "Maximum file size in bytes (default 4MB)")
	return cmd
}

type indexOptions struct {
	watch       bool
	noGitignore bool
	maxFileSize int64
}

func runIndex(ctx context.Context, root string, opts indexOptions) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	documents, err := collectDocuments(ctx, root, opts)
	if err != nil {
		return err
	}

	items := a.Pipeline.IngestBatch(ctx, documents)
	ingested, failed, chunks := 0, 0, 0
	for _, item := range items {
		if item.Err != nil {
			failed++
			continue
		}
		ingested++
		chunks += item.Result.ChunksCreated
	}
	out.Successf("Ingested %d documents (%d chunks)", ingested, chunks)
	if failed > 0 {
		out.Warningf("%d documents failed; see the log for details", failed)
	}

	if !opts.watch {
		return nil
	}
	return watchAndIngest(ctx, a, root)
}

// collectDocuments scans root and reads every discovered file as UTF-8
// text. Files that fail the text check are dropped silently, matching
// what the scanner does for binaries.
func collectDocuments(ctx context.Context, root string, opts indexOptions) ([]ingest.Document, error) {
	s, err := scanner.New(scanner.Options{
		MaxFileSize:      opts.maxFileSize,
		RespectGitignore: !opts.noGitignore,
	})
	if err != nil {
		return nil, err
	}

	files, err := s.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	documents := make([]ingest.Document, 0, len(files))
	for _, f := range files {
		text, ok := readDocument(f.AbsPath)
		if !ok {
			continue
		}
		documents = append(documents, ingest.Document{ID: f.ID, Text: text})
	}
	return documents, nil
}

// watchAndIngest re-ingests changed files until the context is cancelled.
func watchAndIngest(ctx context.Context, a *app.App, root string) error {
	w, err := watcher.New(0, a.Logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx, root); err != nil {
		return err
	}
	out.Printf("Watching %s for changes (Ctrl-C to stop)", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, event := range batch {
				handleFileEvent(ctx, a, root, event)
			}
		}
	}
}

func handleFileEvent(ctx context.Context, a *app.App, root string, event watcher.FileEvent) {
	docID := documentID(root, event.Path)
	switch event.Operation {
	case watcher.OpUpsert:
		text, ok := readDocument(event.Path)
		if !ok {
			return
		}
		if _, err := a.Pipeline.Ingest(ctx, docID, text); err != nil {
			a.Logger.Warn("re-ingestion failed", "doc_id", docID, "error", err)
			return
		}
		out.Printf("updated %s", docID)
	case watcher.OpDelete:
		result, err := a.Pipeline.Delete(ctx, docID)
		if err != nil {
			a.Logger.Warn("deletion failed", "doc_id", docID, "error", err)
			return
		}
		if result.ChunksRemoved > 0 {
			out.Printf("removed %s", docID)
		}
	}
}

// documentID derives a stable document ID from the path relative to the
// ingestion root, slash-separated on every platform.
func documentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// readDocument reads a file as UTF-8 text. Binary or oversized files are
// skipped.
func readDocument(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() > scanner.DefaultMaxFileSize {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
