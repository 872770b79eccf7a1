package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
	"harmtool/internal/logging"
	"harmtool/internal/store"
)

var ingestLabelsFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest [residuals-file]",
	Short: "Index a residuals dataset in the local store",
	Long: `Loads a residuals dataset into the sqlite index so summaries and lookups
do not have to re-read the netCDF product. An optional labels file assigns a
sensor-pair label to each matchup, one label per line in matchup order.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List indexed residual datasets",
	Args:  cobra.NoArgs,
	RunE:  runDatasets,
}

var pairsCmd = &cobra.Command{
	Use:   "pairs [job-id]",
	Short: "Print per-pair residual statistics for an indexed dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPairs,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestLabelsFile, "labels", "", "Pair label file, one label per matchup")
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.Store.DatabasePath)
}

func runIngest(cmd *cobra.Command, args []string) error {
	timer := logging.StartTimer(logging.CategoryStore, "ingest "+args[0])
	defer timer.Stop()

	f, err := cdf.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}
	r, err := dataset.ResidualsFromFile(f)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}

	var labels []string
	if ingestLabelsFile != "" {
		if labels, err = readLabels(ingestLabelsFile); err != nil {
			return err
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.Ingest(cmd.Context(), r, labels)
	if err != nil {
		return err
	}
	logger.Info("dataset indexed",
		zap.Int64("id", id),
		zap.String("job_id", r.Provenance.JobID),
		zap.Int("records", r.Len()))
	fmt.Printf("indexed %d matchups as dataset %d (job %s)\n", r.Len(), id, r.Provenance.JobID)
	return nil
}

func readLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var labels []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		labels = append(labels, sc.Text())
	}
	return labels, sc.Err()
}

func runDatasets(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := s.Datasets(cmd.Context())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no datasets indexed")
		return nil
	}
	fmt.Printf("%-38s %-16s %10s %s\n", "job", "matchup dataset", "matchups", "ingested")
	for _, d := range all {
		fmt.Printf("%-38s %-16s %10d %s\n",
			d.Provenance.JobID, d.Provenance.MatchupDataset, d.Records,
			d.IngestedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runPairs(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.DatasetByJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	sum, err := s.PairStats(cmd.Context(), d.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%-30s %12s %12s %12s %12s\n", "pair", "k_res mean", "mean stdev", "k_res stdev", "unc_l mean")
	for i, pair := range sum.Sensors {
		fmt.Printf("%-30s %12.5g %12.5g %12.5g %12.5g\n",
			pair, sum.KResMean[i], sum.KResMeanStdev[i], sum.KResStdev[i],
			sum.KResUncertaintyLMean[i])
	}
	return nil
}
