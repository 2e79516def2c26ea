// Command accountd serves the account and billing API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

type globalFlags struct {
	envDir     string
	configFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "accountd",
		Short:         "Account, session and billing service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.envDir, "env-dir", ".", "directory holding an optional .env file")
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd(&flags))
	rootCmd.AddCommand(migrateCmd(&flags))
	return rootCmd
}
