package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/docchat/internal/app"
	"github.com/mike-a-ellis/docchat/internal/config"
	"github.com/mike-a-ellis/docchat/internal/indexer"
)

var folderFlag string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a folder and report what was indexed",
	Long: `Runs the ingestion pipeline once and prints a summary.

This command:
1. Connects to the document store and checks the folder exists
2. Downloads every file into a session temp directory
3. Extracts text from supported formats and skips the rest
4. Splits the text into at most max_chunks chunks
5. Embeds the chunks and builds the vector index

The index is discarded when the command exits; use "chat" to ask questions.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&folderFlag, "folder", "f", "", "folder to ingest (overrides SHAREPOINT_FOLDER)")
	chatCmd.Flags().StringVarP(&folderFlag, "folder", "f", "", "folder to ingest (overrides SHAREPOINT_FOLDER)")
}

// loadApp loads configuration and wires a session.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if folderFlag != "" {
		cfg.Source.Folder = folderFlag
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := app.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Starting ingestion...")

	result, err := a.Session.Ingest(cmd.Context())
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	printResult(out, result)
	return nil
}

func printResult(out io.Writer, result *indexer.IngestResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Ingestion complete!")
	fmt.Fprintf(out, "  Folder: %s\n", result.Folder)
	fmt.Fprintf(out, "  Files: %d\n", result.Files)
	fmt.Fprintf(out, "  Documents: %d\n", result.Documents)
	fmt.Fprintf(out, "  Chunks: %d (size %d)\n", result.Chunks, result.ChunkSize)
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Skipped) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Skipped (unsupported):")
		for _, path := range result.Skipped {
			fmt.Fprintf(out, "  - %s\n", path)
		}
	}

	if len(result.Failed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed files:")
		for _, failed := range result.Failed {
			fmt.Fprintf(out, "  - %s (%s): %s\n", failed.Path, failed.Stage, failed.Reason)
		}
	}
}
