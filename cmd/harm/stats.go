package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
	"harmtool/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats [file]",
	Short: "Summarise a harmonisation product",
	Long: `For a residuals dataset, streams the 11 per-matchup variables through a
one-pass accumulator and prints mean, standard deviation and matchup count.
For a parameter dataset, prints the fitted coefficients and the per-pair
summary block.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := cdf.ReadFile(path)
	if err != nil {
		return fmt.Errorf("stats %s: %w", path, err)
	}

	switch dataset.DetectKind(f) {
	case dataset.KindResiduals:
		r, err := dataset.ResidualsFromFile(f)
		if err != nil {
			return err
		}
		return printResidualStats(r)
	case dataset.KindParameters:
		p, err := dataset.ParametersFromFile(f)
		if err != nil {
			return err
		}
		return printParameterStats(p)
	}
	return fmt.Errorf("stats %s: file carries neither a residuals nor a parameter layout", path)
}

func printResidualStats(r *dataset.Residuals) error {
	fmt.Printf("residuals dataset, %d matchups, job %s\n", r.Len(), r.Provenance.JobID)

	summarise := func(name string, add func(*stats.Accumulator)) {
		var acc stats.Accumulator
		add(&acc)
		fmt.Printf("\t%-28s n=%d mean=%.6g stdev=%.6g\n", name, acc.N(), acc.Mean(), acc.Stdev())
	}
	summarise(dataset.VarKRes, func(a *stats.Accumulator) {
		for _, x := range r.KRes {
			a.Add(x)
		}
	})
	summarise(dataset.VarKResNormalised, func(a *stats.Accumulator) {
		for _, x := range r.KResNormalised {
			a.Add(x)
		}
	})
	summarise(dataset.VarKResUncertaintyL, func(a *stats.Accumulator) {
		for _, x := range r.KResUncertaintyL {
			a.Add(float64(x))
		}
	})
	summarise(dataset.VarKResUncertaintyH, func(a *stats.Accumulator) {
		for _, x := range r.KResUncertaintyH {
			a.Add(float64(x))
		}
	})
	return nil
}

func printParameterStats(p *dataset.Parameters) error {
	fmt.Printf("parameter dataset, %d parameters, job %s\n", p.N(), p.Provenance.JobID)

	fmt.Println("parameters:")
	for i, val := range p.Parameter {
		fmt.Printf("\t%-30s % .6e ± %.6e\n", p.ParameterSensors[i], val, p.ParameterUncertainty[i])
	}

	if p.Summary.Len() > 0 {
		fmt.Println("per-pair residual summary:")
		fmt.Printf("\t%-30s %12s %12s %12s\n", "pair", "k_res mean", "k_res stdev", "mean stdev")
		for i, pair := range p.Summary.Sensors {
			fmt.Printf("\t%-30s %12.5g %12.5g %12.5g\n",
				pair, p.Summary.KResMean[i], p.Summary.KResStdev[i], p.Summary.KResMeanStdev[i])
		}
	}
	return nil
}
