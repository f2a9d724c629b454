package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillpiler/internal/auth"
	"github.com/amishk599/skillpiler/internal/client"
	"github.com/amishk599/skillpiler/internal/config"
	"github.com/amishk599/skillpiler/internal/filter"
	"github.com/amishk599/skillpiler/internal/model"
	"github.com/amishk599/skillpiler/internal/notifier"
	"github.com/amishk599/skillpiler/internal/poller"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath   string
	debug     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "skillpiler",
	Short: "Skill profiles from GitHub activity",
	Long:  "Skill Piler analyzes a GitHub account's repositories and commits and charts how intensely each language is used over time.",
	// With no subcommand, open the dashboard.
	Args:         cobra.NoArgs,
	RunE:         runDash,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: SKILLPILER_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > SKILLPILER_CONFIG env var > "./config.yaml".
// A missing ./config.yaml falls back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("SKILLPILER_CONFIG"); env != "" {
			path = env
		} else {
			path = defaultConfigPath
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return config.Default(), nil
			}
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	return newLogger(os.Stdout, dbg)
}

func newLogger(w io.Writer, dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func displayFilter(cfg *config.Config) *filter.LanguageFilter {
	return filter.NewLanguageFilter(cfg.Display.ExcludeLanguages, cfg.Display.MinIntensity)
}

// apiClient builds a client for the configured API, carrying the stored
// session token when one exists.
func apiClient(cfg *config.Config, logger *slog.Logger) (*client.Client, *auth.Store, error) {
	session, err := auth.LoadStore(cfg.SessionFile)
	if err != nil {
		return nil, nil, err
	}
	api := client.New(cfg.API.BaseURL, &http.Client{Timeout: cfg.API.Timeout}, logger)
	if token := session.Token(); token != "" {
		api = api.WithToken(token)
	}
	return api, session, nil
}

func newPoller(cfg *config.Config, svc model.AnalysisService, logger *slog.Logger) *poller.JobPoller {
	return poller.New(svc, poller.Options{
		Interval:    cfg.Polling.Interval,
		MaxAttempts: cfg.Polling.MaxAttempts,
	}, logger)
}
