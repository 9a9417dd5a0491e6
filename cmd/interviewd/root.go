package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "interviewd",
	Short: "AI-mediated interview orchestration service",
	Long: `interviewd runs checkpointed interview workflows over an LLM,
delivers turns through a poll or server-sent event API, and produces
post-interview feedback reports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd)
}
