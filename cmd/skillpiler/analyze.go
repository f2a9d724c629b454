package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/amishk599/skillpiler/internal/model"
	"github.com/amishk599/skillpiler/internal/poller"
)

var (
	analyzePrivate bool
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <username>",
	Short: "Analyze a GitHub account and print its skill profile",
	Long:  "Submits an analysis to the API, polls until it finishes and prints the result. Exits 1 on failure or timeout.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzePrivate, "private", false, "include private repositories (requires auth login)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	// Keep stdout clean for the JSON document.
	logger := setupLogger(debug)
	if analyzeJSON {
		logger = newLogger(os.Stderr, debug)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	req, err := model.NewAnalysisRequest(args[0], analyzePrivate)
	if err != nil {
		return err
	}

	api, session, err := apiClient(cfg, logger)
	if err != nil {
		logger.Error("failed to load session", "error", err)
		os.Exit(1)
	}
	if analyzePrivate && !session.Status().IsAuthenticated {
		logger.Warn("not logged in, only public repositories will be analyzed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPoller(cfg, api, logger)
	p.Start(ctx, req)
	p.Wait()

	s := p.State()
	if s.Phase != poller.PhaseSucceeded || s.CurrentResult == nil {
		msg := s.Error
		if msg == "" {
			msg = "analysis interrupted"
		}
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ %s\n", msg)
		os.Exit(1)
	}

	result := displayFilter(cfg).Apply(*s.CurrentResult)
	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		printResult(os.Stdout, result)
	}

	n := setupNotifier(cfg, &http.Client{Timeout: cfg.API.Timeout}, logger)
	if err := n.Notify(*s.CurrentResult); err != nil {
		logger.Error("notification failed", "error", err)
	}
	return nil
}

func printResult(w io.Writer, r model.AnalysisResult) {
	title := color.New(color.FgCyan, color.Bold)
	muted := color.New(color.FgHiBlack)

	title.Fprintf(w, "Skill profile: %s\n", r.Username)
	muted.Fprintf(w, "%d repositories · %d commits · last %d months\n\n",
		r.TotalRepositories, r.TotalCommits, r.AnalysisPeriodMonths)

	if len(r.Languages) == 0 {
		muted.Fprintln(w, "No language activity found.")
		return
	}

	width := 0
	for _, l := range r.Languages {
		width = max(width, len(l.Language))
	}
	bar := color.New(color.FgGreen)
	for _, l := range r.Languages {
		filled := int(l.Intensity/5 + 0.5)
		fmt.Fprintf(w, "  %-*s %5.1f  ", width, l.Language, l.Intensity)
		bar.Fprint(w, strings.Repeat("█", filled))
		muted.Fprintf(w, "%s  %d commits, %d repos\n", strings.Repeat("░", 20-filled), l.CommitCount, l.RepositoryCount)
	}
}
