package notifier

import (
	"log/slog"

	"github.com/amishk599/skillpiler/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes finished analyses to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
	top    int
}

// NewLogNotifier returns a notifier that logs a summary and the top languages.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger, top: topLanguages}
}

// Notify logs the summary followed by one line per top language.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(result model.AnalysisResult) error {
	n.logger.Info("analysis complete",
		"username", result.Username,
		"repositories", result.TotalRepositories,
		"commits", result.TotalCommits,
		"languages", len(result.Languages),
	)
	for i, l := range result.Languages {
		if i >= n.top {
			break
		}
		n.logger.Info("language",
			"rank", i+1,
			"language", l.Language,
			"intensity", l.Intensity,
			"commits", l.CommitCount,
			"lines", l.LineCount,
		)
	}
	return nil
}
