package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the header of a netCDF product",
	Long: `Decodes a netCDF classic file and prints its dimensions, variables and
attributes, together with which harmonisation layout (if any) it carries.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := cdf.ReadFile(path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	logger.Debug("decoded file",
		zap.String("path", path),
		zap.Int("dims", len(f.Dims)),
		zap.Int("vars", len(f.Vars)))

	fmt.Printf("%s: netCDF classic (%s), layout: %s\n", path, formatName(f.Version), dataset.DetectKind(f))

	if len(f.Dims) > 0 {
		fmt.Println("dimensions:")
		for _, d := range f.Dims {
			fmt.Printf("\t%s = %d\n", d.Name, d.Len)
		}
	}
	if len(f.Attrs) > 0 {
		fmt.Println("global attributes:")
		for _, a := range f.Attrs {
			fmt.Printf("\t%s = %s\n", a.Name, formatAttr(a))
		}
	}
	if len(f.Vars) > 0 {
		fmt.Println("variables:")
		for _, v := range f.Vars {
			fmt.Printf("\t%s %s(%s)\n", strings.ToLower(v.Type.String()), v.Name, strings.Join(v.Dims, ", "))
			for _, a := range v.Attrs {
				fmt.Printf("\t\t%s:%s = %s\n", v.Name, a.Name, formatAttr(a))
			}
		}
	}
	return nil
}

func formatName(v cdf.Version) string {
	if v == cdf.V1 {
		return "CDF-1"
	}
	return "CDF-2"
}

func formatAttr(a cdf.Attr) string {
	if a.Type == cdf.Char {
		return fmt.Sprintf("%q", a.Text())
	}
	return fmt.Sprintf("%v", a.Value)
}
