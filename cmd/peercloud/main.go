// Command peercloud runs a peer of a cloud on the local network and manages
// the keys authenticating the cloud.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "peercloud",
	Long:         "peercloud joins a cloud of peers on the local network and exchanges messages with them",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.AddCommand(runCmd, keysCmd, configCmd)
}

// loadConfig returns the config given on the command line or the default one.
func loadConfig() (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
