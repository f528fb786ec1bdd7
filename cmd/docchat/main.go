// Package main provides the docchat CLI: ingest a document folder, then
// hold a conversation about it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with a folder of documents",
	Long: `docchat downloads every file in a remote folder, extracts and chunks the
text, indexes it in a vector store and answers follow-up questions with
retrieved context and the conversation so far.

Configuration is read from docchat.yaml (or --config), then a .env file,
then the environment. Common variables:
  OPENAI_API_KEY         OpenAI API key (required)
  OPENAI_API_MODEL_NAME  Chat model (required)
  OPENAI_API_TEMPERATURE Sampling temperature (default: 0.7)
  DOCCHAT_SOURCE         sharepoint, github or dir (default: sharepoint)
  SHAREPOINT_FOLDER      Folder to ingest
  SHAREPOINT_SITE_URL    SharePoint site
  OFFICE365_TENANT_ID, OFFICE365_CLIENT_ID, OFFICE365_CLIENT_SECRET
  DOCCHAT_INDEX          memory or qdrant (default: memory)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default docchat.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
