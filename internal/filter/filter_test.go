package filter

import (
	"testing"

	"github.com/amishk599/skillpiler/internal/model"
)

func lang(name string, intensity float64) model.LanguageIntensity {
	return model.LanguageIntensity{Language: name, Intensity: intensity}
}

func TestLanguageFilter_Match(t *testing.T) {
	tests := []struct {
		name         string
		exclude      []string
		minIntensity float64
		lang         model.LanguageIntensity
		wantMatch    bool
	}{
		{
			name:      "empty filter passes all",
			lang:      lang("Go", 0),
			wantMatch: true,
		},
		{
			name:      "excluded language",
			exclude:   []string{"HTML", "CSS"},
			lang:      lang("HTML", 90),
			wantMatch: false,
		},
		{
			name:      "case insensitive exclusion",
			exclude:   []string{"jupyter notebook"},
			lang:      lang("Jupyter Notebook", 50),
			wantMatch: false,
		},
		{
			name:      "exclusion is not a substring match",
			exclude:   []string{"C"},
			lang:      lang("C++", 50),
			wantMatch: true,
		},
		{
			name:         "below threshold",
			minIntensity: 10,
			lang:         lang("Shell", 9.9),
			wantMatch:    false,
		},
		{
			name:         "at threshold",
			minIntensity: 10,
			lang:         lang("Shell", 10),
			wantMatch:    true,
		},
		{
			name:      "blank exclude entries are ignored",
			exclude:   []string{"  ", ""},
			lang:      lang("Go", 1),
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLanguageFilter(tt.exclude, tt.minIntensity)
			if got := f.Match(tt.lang); got != tt.wantMatch {
				t.Errorf("Match(%+v) = %v, want %v", tt.lang, got, tt.wantMatch)
			}
		})
	}
}

func TestLanguageFilter_Apply(t *testing.T) {
	result := model.AnalysisResult{
		Username:          "octocat",
		TotalRepositories: 3,
		Languages:         []model.LanguageIntensity{lang("Go", 100), lang("HTML", 60), lang("Shell", 4)},
	}
	f := NewLanguageFilter([]string{"html"}, 5)

	got := f.Apply(result)
	if len(got.Languages) != 1 || got.Languages[0].Language != "Go" {
		t.Errorf("Apply() languages = %+v, want only Go", got.Languages)
	}
	if got.TotalRepositories != 3 {
		t.Errorf("TotalRepositories = %d, want 3", got.TotalRepositories)
	}
	if len(result.Languages) != 3 {
		t.Error("Apply() modified its input")
	}
}

func TestLanguageFilter_ApplySeries(t *testing.T) {
	points := []model.TimeSeriesPoint{
		{Date: "2024-05", Intensities: map[string]float64{"Go": 1, "HTML": 2}},
		{Date: "2024-06", Intensities: map[string]float64{"Go": 3}},
	}
	f := NewLanguageFilter([]string{"HTML"}, 50)

	got := f.ApplySeries(points)
	if len(got) != 2 {
		t.Fatalf("ApplySeries() len = %d, want 2", len(got))
	}
	if _, ok := got[0].Intensities["HTML"]; ok {
		t.Error("excluded language kept in series")
	}
	if got[0].Intensities["Go"] != 1 {
		t.Error("threshold must not apply to series values")
	}
	if _, ok := points[0].Intensities["HTML"]; !ok {
		t.Error("ApplySeries() modified its input")
	}
}
