package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/insight-dashboard/insight/internal/render"
	"github.com/spf13/cobra"
)

const defaultEndpoint = "http://localhost:5000/api/upload"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "insight",
		Short:         "Insight CSV analysis from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

type analyzeOptions struct {
	endpoint  string
	jsonOut   bool
	chartPath string
	timeout   time.Duration
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file.csv]",
		Short: "Upload a CSV to the analysis endpoint and print its KPIs",
		Long: `Upload one CSV file to the analysis endpoint and print the KPI tiles.

The endpoint defaults to $INSIGHT_ANALYSIS_URL, then ` + defaultEndpoint + `.

Example: insight analyze sales.csv --json --chart sales.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	endpoint := os.Getenv("INSIGHT_ANALYSIS_URL")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	cmd.Flags().StringVar(&opts.endpoint, "api", endpoint, "Analysis endpoint URL")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Also print the raw JSON view")
	cmd.Flags().StringVar(&opts.chartPath, "chart", "", "Write the line chart to this file (.svg or .png)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Request timeout")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "insight %s (built %s)\n", Version, BuildTime)
		},
	}
}

func runAnalyze(ctx context.Context, out io.Writer, path string, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate the chart target before spending a round trip.
	var chartFormat render.Format
	if opts.chartPath != "" {
		var err error
		chartFormat, err = render.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.chartPath), "."))
		if err != nil {
			return err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	client := analysis.NewClient(opts.endpoint, analysis.WithTimeout(opts.timeout))
	resp, err := client.Analyze(ctx, filepath.Base(path), f, stat.Size(), nil)
	if err != nil {
		return err
	}

	for _, tile := range render.KPITiles(resp.Result) {
		if tile.Kind == render.TileColumn {
			fmt.Fprintf(out, "%s\n", tile.Title)
			for _, line := range tile.Lines {
				fmt.Fprintf(out, "  %s\n", line)
			}
			continue
		}
		fmt.Fprintf(out, "%-18s %s\n", tile.Title+":", tile.Value)
	}

	if opts.jsonOut {
		raw, err := render.RawJSON(resp.Result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", raw)
	}

	if opts.chartPath != "" {
		if err := writeChart(opts.chartPath, chartFormat, render.BuildChart(resp.Result.Sample)); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nchart written to %s\n", opts.chartPath)
	}

	return nil
}

func writeChart(path string, format render.Format, data render.ChartData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if err := render.RenderChart(f, data, render.ChartOptions{Format: format}); err != nil {
		f.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	return f.Close()
}
