package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"harmtool/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Validate products as they land in a directory",
	Long: `Watches a directory and schema-validates every .nc file once writes have
settled. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports := make(chan watch.Report, 16)
	w, err := watch.New(args[0], cfg.Tolerances(), cfg.GetDebounce(), reports)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	// The initial sweep delivers on the same channel the loop below drains,
	// so it must not run ahead of the receiver.
	go func() {
		if err := w.ValidateAll(); err != nil {
			logger.Warn("initial directory sweep failed", zap.Error(err))
		}
	}()
	logger.Info("watching", zap.String("dir", args[0]))

	for {
		select {
		case <-ctx.Done():
			st := w.GetStats()
			fmt.Printf("\nvalidated %d files, %d failed\n", st.Validated, st.Failed)
			return nil
		case rep := <-reports:
			printReport(rep)
		}
	}
}

func printReport(rep watch.Report) {
	switch {
	case rep.Err != nil:
		fmt.Printf("%s: %v\n", rep.Path, rep.Err)
	case len(rep.Issues) > 0:
		fmt.Printf("%s: %d issues (%s)\n", rep.Path, len(rep.Issues), rep.Kind)
		for _, issue := range rep.Issues {
			fmt.Printf("\t%s\n", issue)
		}
	default:
		fmt.Printf("%s: ok (%s)\n", rep.Path, rep.Kind)
	}
}
