package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hireloop/portalchat/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize portalchat configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure portalchat and generates a .portalchat.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
