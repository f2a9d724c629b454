package notifier

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/amishk599/skillpiler/internal/model"
)

func TestLogNotifier_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.Notify(model.AnalysisResult{Username: "newbie"}); err != nil {
		t.Errorf("Notify() = %v, want nil", err)
	}
	if !strings.Contains(buf.String(), "username=newbie") {
		t.Errorf("log output missing username: %s", buf.String())
	}
}

func TestLogNotifier_LimitsToTopLanguages(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	result := sampleResult()
	for _, lang := range []string{"A", "B", "C", "D", "E"} {
		result.Languages = append(result.Languages, model.LanguageIntensity{Language: lang, Intensity: 1})
	}
	if err := n.Notify(result); err != nil {
		t.Fatalf("Notify() = %v", err)
	}

	if got := strings.Count(buf.String(), "msg=language"); got != topLanguages {
		t.Errorf("logged %d languages, want %d", got, topLanguages)
	}
	if !strings.Contains(buf.String(), "language=Go") {
		t.Errorf("top language not logged: %s", buf.String())
	}
}
