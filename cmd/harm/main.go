// Command harm works with AVHRR harmonisation netCDF products: it inspects,
// validates, converts and indexes the matchup input files and the residual
// and parameter outputs of a harmonisation job.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"harmtool/internal/config"
	"harmtool/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "harm",
	Short: "harmtool - AVHRR harmonisation product toolkit",
	Long: `harm reads and writes the netCDF classic products of an AVHRR sensor
harmonisation job: legacy matchup files, updated-specification input files,
per-matchup residual datasets and fitted parameter datasets.

Products are decoded bit-faithfully; a file read and rewritten unchanged is
byte-identical to the original.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Debug, cfg.Logging.Level); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "harmtool.yaml", "Configuration file")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(pairsCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
