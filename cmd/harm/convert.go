package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"harmtool/internal/cdf"
	"harmtool/internal/logging"
	"harmtool/internal/matchup"
)

var convertOut string

var convertCmd = &cobra.Command{
	Use:   "convert [legacy-file]",
	Short: "Convert a legacy matchup file to the updated input specification",
	Long: `Reads a legacy AVHRR matchup pair file and writes it in the updated input
specification: matchups with incomplete averaging kernels are dropped, the
data matrix is split per sensor, and the calibration rolling averages become
CSR-encoded W matrices with scanline uncertainty vectors.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOut, "output", "o", "", "Output file (required)")
	_ = convertCmd.MarkFlagRequired("output")
}

func runConvert(cmd *cobra.Command, args []string) error {
	timer := logging.StartTimer(logging.CategoryConvert, "convert "+args[0])
	defer timer.Stop()

	p, err := matchup.ReadLegacy(args[0])
	if err != nil {
		return fmt.Errorf("convert %s: %w", args[0], err)
	}
	logger.Debug("read legacy pair",
		zap.Int32("sensor1", p.Sensor1),
		zap.Int32("sensor2", p.Sensor2),
		zap.Int("matchups", p.Matchups()))

	in, err := matchup.Convert(p, cfg.Series.ScanlineWidth)
	if err != nil {
		return fmt.Errorf("convert %s: %w", args[0], err)
	}
	dropped := p.Matchups() - in.Matchups()
	logging.Convert("%s: %d matchups kept, %d dropped", args[0], in.Matchups(), dropped)

	f, err := in.File(cfg.WriterVersion())
	if err != nil {
		return err
	}
	if err := cdf.WriteFile(convertOut, f); err != nil {
		return fmt.Errorf("write %s: %w", convertOut, err)
	}

	fmt.Printf("%s: %d matchups (%d dropped), %d×%d + %d×%d columns -> %s\n",
		args[0], in.Matchups(), dropped,
		in.X1.Rows, in.X1.Cols, in.X2.Rows, in.X2.Cols, convertOut)
	return nil
}
