package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/amishk599/skillpiler/internal/model"
)

// Languages shown per month in text output.
const seriesTopLanguages = 5

var (
	seriesMonths int
	seriesJSON   bool
)

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries <username>",
	Short: "Print the monthly language intensity series of an analyzed account",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeseries,
}

func init() {
	timeseriesCmd.Flags().IntVar(&seriesMonths, "months", 0, "only the most recent N months (0 for all)")
	timeseriesCmd.Flags().BoolVar(&seriesJSON, "json", false, "print the series as JSON")
	rootCmd.AddCommand(timeseriesCmd)
}

func runTimeseries(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if seriesMonths < 0 {
		return errors.New("--months must not be negative")
	}

	api, _, err := apiClient(cfg, logger)
	if err != nil {
		logger.Error("failed to load session", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	points, err := api.TimeSeries(ctx, strings.TrimSpace(args[0]), seriesMonths)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	points = displayFilter(cfg).ApplySeries(points)

	if seriesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}
	printSeries(os.Stdout, points)
	return nil
}

func printSeries(w io.Writer, points []model.TimeSeriesPoint) {
	if len(points) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "No time series data.")
		return
	}
	date := color.New(color.FgCyan)
	for _, p := range points {
		names := p.Languages()
		if len(names) > seriesTopLanguages {
			names = names[:seriesTopLanguages]
		}
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s %.1f", name, p.Intensities[name])
		}
		date.Fprintf(w, "%s  ", p.Date)
		fmt.Fprintln(w, strings.Join(parts, ", "))
	}
}
