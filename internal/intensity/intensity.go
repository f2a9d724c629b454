// Package intensity turns raw repository activity into per-language skill scores.
package intensity

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

const (
	// RecentMonths is the window counted as recent activity.
	RecentMonths = 12
	// BytesPerLine estimates line counts from GitHub's byte totals.
	BytesPerLine = 50

	maxVolumeScore     = 50.0
	maxCommitScore     = 40.0
	maxRepositoryScore = 30.0
	maxRecentBoost     = 0.5
)

var complexity = map[string]float64{
	"c++":        1.4,
	"rust":       1.4,
	"haskell":    1.4,
	"scala":      1.3,
	"c":          1.3,
	"assembly":   1.3,
	"ocaml":      1.3,
	"erlang":     1.2,
	"elixir":     1.2,
	"c#":         1.1,
	"java":       1.1,
	"kotlin":     1.1,
	"go":         1.1,
	"swift":      1.1,
	"typescript": 1.1,
	"shell":      0.8,
	"powershell": 0.8,
	"makefile":   0.6,
	"dockerfile": 0.5,
	"html":       0.5,
	"css":        0.5,
	"scss":       0.5,
	"tex":        0.6,
}

// Complexity returns the weight of a language. Unknown languages weigh 1.0.
func Complexity(language string) float64 {
	if w, ok := complexity[strings.ToLower(language)]; ok {
		return w
	}
	return 1.0
}

// LanguageStats is the aggregated activity of one language across repositories.
type LanguageStats struct {
	Language      string
	Bytes         int
	Commits       int
	Repositories  int
	RecentCommits int
}

// Score computes the unnormalized intensity of a language, capped at 100.
func Score(s LanguageStats) float64 {
	if s.Bytes <= 0 && s.Commits <= 0 {
		return 0
	}
	base := volumeScore(s.Bytes) + commitScore(s.Commits) + repositoryScore(s.Repositories)

	boost := 1.0
	if s.Commits > 0 {
		ratio := math.Min(1, float64(s.RecentCommits)/float64(s.Commits))
		boost += maxRecentBoost * ratio
	}

	return math.Min(100, base*Complexity(s.Language)*boost)
}

func volumeScore(bytes int) float64 {
	if bytes <= 0 {
		return 0
	}
	return math.Min(maxVolumeScore, 8*math.Log10(1+float64(bytes)))
}

func commitScore(commits int) float64 {
	if commits <= 0 {
		return 0
	}
	return math.Min(maxCommitScore, 15*math.Log10(1+float64(commits)))
}

func repositoryScore(repos int) float64 {
	if repos <= 0 {
		return 0
	}
	return math.Min(maxRepositoryScore, 10*math.Sqrt(float64(repos)))
}

// Normalize scales scores so the largest becomes 100, preserving order.
// All-zero input is returned as zeros.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	top := 0.0
	for _, s := range scores {
		top = math.Max(top, s)
	}
	if top == 0 {
		return out
	}
	for i, s := range scores {
		out[i] = round1(s / top * 100)
	}
	return out
}

// RepoActivity is the raw data gathered for one repository.
type RepoActivity struct {
	Languages map[string]int // bytes per language
	Commits   []time.Time
}

// Aggregate folds repository activity into per-language stats. Every commit
// of a repository counts toward each of its languages.
func Aggregate(repos []RepoActivity, now time.Time) []LanguageStats {
	cutoff := now.Add(-RecentMonths * 30 * 24 * time.Hour)
	byLang := make(map[string]*LanguageStats)

	for _, r := range repos {
		recent := 0
		for _, c := range r.Commits {
			if c.After(cutoff) {
				recent++
			}
		}
		for lang, bytes := range r.Languages {
			s, ok := byLang[lang]
			if !ok {
				s = &LanguageStats{Language: lang}
				byLang[lang] = s
			}
			s.Bytes += bytes
			s.Repositories++
			s.Commits += len(r.Commits)
			s.RecentCommits += recent
		}
	}

	stats := make([]LanguageStats, 0, len(byLang))
	for _, s := range byLang {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Language < stats[j].Language })
	return stats
}

// Profile scores and normalizes stats, ordered by descending intensity.
func Profile(stats []LanguageStats) []model.LanguageIntensity {
	raw := make([]float64, len(stats))
	for i, s := range stats {
		raw[i] = Score(s)
	}
	norm := Normalize(raw)

	out := make([]model.LanguageIntensity, len(stats))
	for i, s := range stats {
		out[i] = model.LanguageIntensity{
			Language:        s.Language,
			Intensity:       norm[i],
			CommitCount:     s.Commits,
			LineCount:       s.Bytes / BytesPerLine,
			RepositoryCount: s.Repositories,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Intensity != out[j].Intensity {
			return out[i].Intensity > out[j].Intensity
		}
		return out[i].Language < out[j].Language
	})
	return out
}

// MonthlySeries builds one point per month from the first commit up to now.
// Each point holds the cumulative commit activity per language, split by the
// language's byte share in its repository and weighted by complexity, scaled
// so the largest value in the series is 100.
func MonthlySeries(repos []RepoActivity, now time.Time) []model.TimeSeriesPoint {
	monthly := make(map[string]map[string]float64)
	var first time.Time

	for _, r := range repos {
		total := 0
		for _, b := range r.Languages {
			total += b
		}
		if total == 0 {
			continue
		}
		for _, c := range r.Commits {
			if c.After(now) {
				continue
			}
			key := monthKey(c)
			if first.IsZero() || c.Before(first) {
				first = c
			}
			m, ok := monthly[key]
			if !ok {
				m = make(map[string]float64)
				monthly[key] = m
			}
			for lang, b := range r.Languages {
				m[lang] += float64(b) / float64(total) * Complexity(lang)
			}
		}
	}
	if first.IsZero() {
		return nil
	}

	var points []model.TimeSeriesPoint
	running := make(map[string]float64)
	top := 0.0
	end := monthStart(now)
	for month := monthStart(first); !month.After(end); month = month.AddDate(0, 1, 0) {
		key := monthKey(month)
		for lang, v := range monthly[key] {
			running[lang] += v
		}
		snapshot := make(map[string]float64, len(running))
		for lang, v := range running {
			snapshot[lang] = v
			top = math.Max(top, v)
		}
		points = append(points, model.TimeSeriesPoint{Date: key, Intensities: snapshot})
	}

	for _, p := range points {
		for lang, v := range p.Intensities {
			p.Intensities[lang] = round1(v / top * 100)
		}
	}
	return points
}

// LastMonths keeps the trailing n points; n <= 0 keeps all of them.
func LastMonths(points []model.TimeSeriesPoint, n int) []model.TimeSeriesPoint {
	if n <= 0 || n >= len(points) {
		return points
	}
	return points[len(points)-n:]
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
