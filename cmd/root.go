// Package cmd holds the autorag command line: the HTTP server plus one-shot
// ingest and ask commands sharing the same wiring.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github/itish2003/autorag/config"
	"github/itish2003/autorag/logger"
)

var (
	cfg          *config.Config
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:           "autorag",
	Short:         "Workspace-scoped document Q&A with confidence-gated review",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			loaded.LogLevel = logLevelFlag
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger.Init(&logger.Config{
			Level:  loaded.LogLevel,
			JSON:   loaded.LogJSON,
			Output: cmd.ErrOrStderr(),
		})
		gin.SetMode(loaded.GinMode)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
