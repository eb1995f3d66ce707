package cmd

import (
	"github.com/spf13/cobra"
)

// termCounter is implemented by lexical backends that track distinct terms.
type termCounter interface {
	TermCount() int
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			docs, chunks, err := a.Docs.Stats(cmd.Context())
			if err != nil {
				return err
			}
			engineStats := a.Engine.Stats()

			out.Printf("Documents:      %d", docs)
			out.Printf("Chunks:         %d", chunks)
			out.Printf("Vectors:        %d", engineStats.Vectors)
			out.Printf("Indexed chunks: %d", engineStats.Chunks)
			if tc, ok := a.Lexical.(termCounter); ok {
				out.Printf("Terms:          %d", tc.TermCount())
			}
			out.Printf("Corpus version: %d", a.Version.Current())
			out.Printf("Cache:          %d entries, %d hits, %d misses",
				engineStats.Cache.Len, engineStats.Cache.Hits, engineStats.Cache.Misses)
			return nil
		},
	}
}
