package cmd

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id>",
		Short: "Delete an ingested document",
		Long: `Remove a document's chunks from both indexes and the document
store. Deleting an unknown document is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Pipeline.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out.Successf("Removed %d chunks of %s", result.ChunksRemoved, args[0])
			return nil
		},
	}
}
