package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinpoint-search/pinpoint/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit         int
	vectorWeight  float64
	lexicalWeight float64
	vectorOnly    bool
	lexicalOnly   bool
	timeout       time.Duration
	format        string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Run a hybrid query over the indexed documents.

Examples:
  pinpoint search "connection pooling"
  pinpoint search "retry backoff" --limit 5 --format json
  pinpoint search "exact phrase match" --lexical-only`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().Float64Var(&opts.vectorWeight, "vector-weight", -1, "Vector score weight")
	cmd.Flags().Float64Var(&opts.lexicalWeight, "lexical-weight", -1, "Lexical score weight")
	cmd.Flags().BoolVar(&opts.vectorOnly, "vector-only", false, "Pure semantic search (weights 1,0)")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Pure keyword search (weights 0,1)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-query timeout")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.vectorOnly && opts.lexicalOnly {
		return fmt.Errorf("--vector-only and --lexical-only are mutually exclusive")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	params := a.SearchParams()
	if opts.limit > 0 {
		params.K = opts.limit
	}
	if opts.vectorWeight >= 0 {
		params.Weights.Vector = opts.vectorWeight
	}
	if opts.lexicalWeight >= 0 {
		params.Weights.Lexical = opts.lexicalWeight
	}
	if opts.vectorOnly {
		params.Weights = search.Weights{Vector: 1, Lexical: 0}
	}
	if opts.lexicalOnly {
		params.Weights = search.Weights{Vector: 0, Lexical: 1}
	}
	if opts.timeout > 0 {
		params.Timeout = opts.timeout
	}

	resp, err := a.Engine.Search(cmd.Context(), query, params)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResults(query, resp)
	return nil
}

func printResults(query string, resp search.Response) {
	if len(resp.Results) == 0 {
		out.Printf("No results for %q", query)
		return
	}

	var notes []string
	if resp.Partial {
		notes = append(notes, "partial")
	}
	if resp.Degraded {
		notes = append(notes, "degraded")
	}
	if resp.Cached {
		notes = append(notes, "cached")
	}
	suffix := ""
	if len(notes) > 0 {
		suffix = " [" + strings.Join(notes, ", ") + "]"
	}
	out.Printf("%d results in %s%s", len(resp.Results), resp.Took.Round(time.Microsecond), suffix)
	out.Newline()

	for _, r := range resp.Results {
		out.Printf("%2d. %s  (score %.4f, vector %.4f, lexical %.4f)",
			r.Rank, r.ChunkID, r.FusedScore, r.VectorScore, r.LexicalScore)
		if r.Text != "" {
			out.Printf("    %s", snippet(r.Text, 160))
		}
	}
}

// snippet collapses whitespace and truncates text for terminal display.
func snippet(text string, max int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if len(collapsed) <= max {
		return collapsed
	}
	return collapsed[:max] + "…"
}
