// ABOUTME: Root cobra command and shared config resolution
// ABOUTME: --config flag takes priority over PDFMERGE_CONFIG

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lelobhai2456/Pdf-merger/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "pdfmerge",
		Short:         "Chat bot that merges the PDFs you send it",
		Long:          "pdfmerge collects PDFs sent to a Telegram (or Matrix) bot one by one and replies with a single merged document.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml or .toml); defaults to $PDFMERGE_CONFIG")

	load := func() (*config.Config, string, error) {
		path := resolveConfigPath(configPath)
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newSweepCmd(load),
		newHealthCmd(load),
		newTokenCmd(load),
		newVersionCmd(),
	)
	return rootCmd
}

// configLoader loads and validates the effective config, returning the file
// path it came from ("" when only defaults and environment were used).
type configLoader func() (*config.Config, string, error)

// resolveConfigPath returns the config file path.
// Priority: --config flag > PDFMERGE_CONFIG env var > none (defaults + env).
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("PDFMERGE_CONFIG")
}
