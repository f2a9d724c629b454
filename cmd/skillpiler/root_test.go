package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amishk599/skillpiler/internal/model"
)

func TestLoadConfig_MissingDefaultFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SKILLPILER_CONFIG", "")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Addr != ":4001" {
		t.Errorf("Server.Addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoadConfig_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKILLPILER_CONFIG", path)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func TestParseRedirect(t *testing.T) {
	code, state, err := parseRedirect("http://localhost:4000/callback?code=abc&state=xyz\n")
	if err != nil {
		t.Fatalf("parseRedirect() error = %v", err)
	}
	if code != "abc" || state != "xyz" {
		t.Errorf("got code=%q state=%q", code, state)
	}

	if _, _, err := parseRedirect("http://localhost:4000/callback?code=abc"); err == nil {
		t.Error("expected error without state")
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, model.AnalysisResult{
		Username:             "octocat",
		TotalRepositories:    4,
		TotalCommits:         100,
		AnalysisPeriodMonths: 12,
		Languages: []model.LanguageIntensity{
			{Language: "Go", Intensity: 100, CommitCount: 80, RepositoryCount: 3},
		},
	})

	out := buf.String()
	for _, want := range []string{"Skill profile: octocat", "4 repositories", "Go", "100.0", "80 commits"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSeries_LimitsLanguages(t *testing.T) {
	var buf bytes.Buffer
	printSeries(&buf, []model.TimeSeriesPoint{{
		Date:        "2024-06",
		Intensities: map[string]float64{"A": 6, "B": 5, "C": 4, "D": 3, "E": 2, "F": 1},
	}})

	out := buf.String()
	if !strings.Contains(out, "2024-06") || !strings.Contains(out, "A 6.0") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "F 1.0") {
		t.Errorf("more than %d languages printed: %q", seriesTopLanguages, out)
	}
}
