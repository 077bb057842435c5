package cli

import (
	"github.com/spf13/cobra"

	"github.com/stagehand-io/stagehand/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Staged cloud deployment orchestrator",
	Long: `Stagehand deploys multi-tier cloud applications as a sequence of
dependency-ordered stages.

Resource descriptors declare what to provision and what they depend on;
stagehand resolves them into stages, provisions each stage concurrently,
propagates generated secrets by reference, verifies endpoint health, and
emits a redacted manifest of the run.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel, logFormat)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}
