package intensity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestScore_Bounds(t *testing.T) {
	got := Score(LanguageStats{Language: "Python", Bytes: 10000, Commits: 50, Repositories: 3, RecentCommits: 20})
	assert.Greater(t, got, 0.0)
	assert.LessOrEqual(t, got, 100.0)

	huge := Score(LanguageStats{Language: "C++", Bytes: 1 << 30, Commits: 100000, Repositories: 400, RecentCommits: 100000})
	assert.Equal(t, 100.0, huge)
}

func TestScore_ZeroActivity(t *testing.T) {
	assert.Equal(t, 0.0, Score(LanguageStats{Language: "Python", Repositories: 1}))
}

func TestScore_ComplexityWeight(t *testing.T) {
	cpp := Score(LanguageStats{Language: "C++", Bytes: 5000, Commits: 25, Repositories: 2})
	python := Score(LanguageStats{Language: "Python", Bytes: 5000, Commits: 25, Repositories: 2})
	assert.Greater(t, cpp, python)
}

func TestScore_RecentActivityBoost(t *testing.T) {
	recent := Score(LanguageStats{Language: "Python", Bytes: 5000, Commits: 50, Repositories: 2, RecentCommits: 30})
	stale := Score(LanguageStats{Language: "Python", Bytes: 5000, Commits: 50, Repositories: 2})
	assert.Greater(t, recent, stale)
}

func TestComplexity(t *testing.T) {
	assert.Equal(t, 1.4, Complexity("C++"))
	assert.Equal(t, 1.0, Complexity("Python"))
	assert.Equal(t, 0.5, Complexity("HTML"))
	assert.Equal(t, 1.0, Complexity("UnknownLang"))
}

func TestComponentScores(t *testing.T) {
	assert.Less(t, volumeScore(100), volumeScore(10000))
	assert.LessOrEqual(t, volumeScore(1<<40), maxVolumeScore)

	assert.Less(t, commitScore(5), commitScore(100))
	assert.LessOrEqual(t, commitScore(1<<20), maxCommitScore)

	assert.Less(t, repositoryScore(1), repositoryScore(9))
	assert.LessOrEqual(t, repositoryScore(1000), maxRepositoryScore)
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{10, 20, 50, 30})
	assert.Equal(t, []float64{20, 40, 100, 60}, got)

	assert.Empty(t, Normalize(nil))
	assert.Equal(t, []float64{0, 0, 0}, Normalize([]float64{0, 0, 0}))
}

func TestAggregate(t *testing.T) {
	repos := []RepoActivity{
		{
			Languages: map[string]int{"Go": 40000, "Shell": 500},
			Commits:   []time.Time{now.AddDate(0, -1, 0), now.AddDate(-2, 0, 0)},
		},
		{
			Languages: map[string]int{"Go": 10000},
			Commits:   []time.Time{now.AddDate(0, -2, 0)},
		},
	}

	stats := Aggregate(repos, now)
	require.Len(t, stats, 2)

	goStats := stats[0]
	assert.Equal(t, "Go", goStats.Language)
	assert.Equal(t, 50000, goStats.Bytes)
	assert.Equal(t, 2, goStats.Repositories)
	assert.Equal(t, 3, goStats.Commits)
	assert.Equal(t, 2, goStats.RecentCommits)

	shell := stats[1]
	assert.Equal(t, 1, shell.Repositories)
	assert.Equal(t, 2, shell.Commits)
	assert.Equal(t, 1, shell.RecentCommits)
}

func TestProfile_SortedAndNormalized(t *testing.T) {
	stats := []LanguageStats{
		{Language: "HTML", Bytes: 2000, Commits: 5, Repositories: 1},
		{Language: "Go", Bytes: 500000, Commits: 300, Repositories: 6, RecentCommits: 200},
	}

	profile := Profile(stats)
	require.Len(t, profile, 2)
	assert.Equal(t, "Go", profile[0].Language)
	assert.Equal(t, 100.0, profile[0].Intensity)
	assert.Equal(t, 10000, profile[0].LineCount)
	assert.Less(t, profile[1].Intensity, profile[0].Intensity)
	assert.GreaterOrEqual(t, profile[1].Intensity, 0.0)
}

func TestMonthlySeries_Cumulative(t *testing.T) {
	repos := []RepoActivity{
		{
			Languages: map[string]int{"Python": 300, "JavaScript": 100},
			Commits: []time.Time{
				time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	points := MonthlySeries(repos, now)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-04", points[0].Date)
	assert.Equal(t, "2024-05", points[1].Date)
	assert.Equal(t, "2024-06", points[2].Date)

	assert.Equal(t, 100.0, points[2].Intensities["Python"])
	assert.Equal(t, points[0].Intensities["Python"], points[1].Intensities["Python"], "no activity in May keeps the running total")
	assert.Less(t, points[1].Intensities["Python"], points[2].Intensities["Python"])
	assert.Less(t, points[2].Intensities["JavaScript"], points[2].Intensities["Python"])
}

func TestMonthlySeries_NoCommits(t *testing.T) {
	assert.Nil(t, MonthlySeries([]RepoActivity{{Languages: map[string]int{"Go": 10}}}, now))
}

func TestLastMonths(t *testing.T) {
	points := MonthlySeries([]RepoActivity{{
		Languages: map[string]int{"Go": 10},
		Commits:   []time.Time{time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)},
	}}, now)
	require.Len(t, points, 18)

	assert.Len(t, LastMonths(points, 6), 6)
	assert.Equal(t, "2024-06", LastMonths(points, 6)[5].Date)
	assert.Len(t, LastMonths(points, 0), 18)
	assert.Len(t, LastMonths(points, 100), 18)
}
