package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/docpulse/docpulse/internal/model"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Manage document batches",
}

var batchDescription string

var batchCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new document batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		batch := &model.DocumentBatch{Name: args[0], Description: batchDescription}
		if err := e.Store.CreateBatch(cmd.Context(), batch); err != nil {
			return err
		}
		fmt.Printf("created batch %s (%s)\n", batch.ID, batch.Name)
		return nil
	},
}

var batchAddCmd = &cobra.Command{
	Use:   "add <batch-id> <file>...",
	Short: "Upload documents into a batch",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		batchID := args[0]
		for _, path := range args[1:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			doc, err := e.Ingestor.Ingest(cmd.Context(), batchID, filepath.Base(path), data)
			if err != nil {
				return eris.Wrapf(err, "ingest %s", path)
			}
			fmt.Printf("added %s as document %s (extraction: %s)\n", doc.Filename, doc.ID, doc.Extraction)
		}
		return nil
	},
}

var batchAnalyzeCmd = &cobra.Command{
	Use:   "analyze <batch-id>",
	Short: "Analyze a batch and print the cached result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		analysis, err := e.Analyzer.AnalyzeBatch(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal analysis")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	batchCreateCmd.Flags().StringVar(&batchDescription, "description", "", "batch description")
	batchCmd.AddCommand(batchCreateCmd)
	batchCmd.AddCommand(batchAddCmd)
	batchCmd.AddCommand(batchAnalyzeCmd)
	rootCmd.AddCommand(batchCmd)
}
