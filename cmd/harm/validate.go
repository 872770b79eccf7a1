package main

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]...",
	Short: "Schema-validate harmonisation products",
	Long: `Validates each file against whichever harmonisation layout it carries,
reporting every violation found. Files are checked in parallel; the command
fails if any file has issues.

Tolerances come from the configuration file; the defaults accept the float
round-trip noise of externally produced files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	tol := cfg.Tolerances()

	type result struct {
		path   string
		issues []string
		err    error
	}
	results := make([]result, len(args))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			f, err := cdf.ReadFile(path)
			if err != nil {
				results[i] = result{path: path, err: err}
				return nil
			}
			rep := dataset.Check(f, tol)
			results[i] = result{path: path, issues: rep.Issues}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			fmt.Printf("%s: %v\n", r.path, r.err)
		case len(r.issues) > 0:
			failed++
			sort.Strings(r.issues)
			fmt.Printf("%s: %d issues\n", r.path, len(r.issues))
			for _, issue := range r.issues {
				fmt.Printf("\t%s\n", issue)
			}
		default:
			fmt.Printf("%s: ok\n", r.path)
		}
	}
	logger.Info("validation finished",
		zap.Int("files", len(args)),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(args))
	}
	return nil
}
