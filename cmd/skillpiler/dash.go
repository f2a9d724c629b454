package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillpiler/internal/tui"
)

var (
	dashPrivate bool
	dashChart   string
	dashMonths  int
)

var dashCmd = &cobra.Command{
	Use:   "dash [username]",
	Short: "Open the interactive skill dashboard",
	Long:  "Opens the terminal dashboard. With a username, the analysis starts right away.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDash,
}

func init() {
	dashCmd.Flags().BoolVar(&dashPrivate, "private", false, "include private repositories (requires auth login)")
	dashCmd.Flags().StringVar(&dashChart, "chart", "", "initial chart: bar or bubble (default from config)")
	dashCmd.Flags().IntVar(&dashMonths, "months", 0, "time series window in months (0 for all)")
	rootCmd.AddCommand(dashCmd)
}

func runDash(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Log lines would tear the alternate screen.
	quiet := discardLogger()
	api, _, err := apiClient(cfg, quiet)
	if err != nil {
		logger.Error("failed to load session", "error", err)
		os.Exit(1)
	}

	chart := cfg.Display.Chart
	if dashChart != "" {
		chart = dashChart
	}
	var username string
	if len(args) == 1 {
		username = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPoller(cfg, api, quiet)
	defer p.Wait()
	defer p.ClearAnalysis()

	return tui.Run(ctx, p, tui.Options{
		Username: username,
		Private:  dashPrivate,
		Chart:    chart,
		Months:   dashMonths,
		Filter:   displayFilter(cfg),
	})
}
