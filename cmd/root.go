package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "portalchat",
	Short: "RAG chat backend for CV portal pages",
	Long: `Portal Chat answers visitor questions about a candidate's CV. It
indexes structured CV content into a vector store and serves a chat
API that retrieves relevant background, calls a language model, and
returns attributed, confidence-scored answers.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".portalchat.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
