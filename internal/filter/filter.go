package filter

import (
	"strings"

	"github.com/amishk599/skillpiler/internal/model"
)

// LanguageFilter hides excluded languages and languages below a minimum
// intensity. Matching on names is case-insensitive. An empty exclude list
// and a zero minimum pass everything.
type LanguageFilter struct {
	exclude      map[string]bool
	minIntensity float64
}

// NewLanguageFilter returns a filter for the given exclusions and threshold.
func NewLanguageFilter(exclude []string, minIntensity float64) *LanguageFilter {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		if name = strings.TrimSpace(name); name != "" {
			ex[strings.ToLower(name)] = true
		}
	}
	return &LanguageFilter{exclude: ex, minIntensity: minIntensity}
}

// Excluded reports whether the language is on the exclude list.
func (f *LanguageFilter) Excluded(language string) bool {
	return f.exclude[strings.ToLower(language)]
}

// Match returns true if the language is not excluded and meets the threshold.
func (f *LanguageFilter) Match(l model.LanguageIntensity) bool {
	return !f.Excluded(l.Language) && l.Intensity >= f.minIntensity
}

// Apply returns a copy of the result keeping only matching languages.
// Intensities are not renormalized and totals are left untouched.
func (f *LanguageFilter) Apply(result model.AnalysisResult) model.AnalysisResult {
	kept := make([]model.LanguageIntensity, 0, len(result.Languages))
	for _, l := range result.Languages {
		if f.Match(l) {
			kept = append(kept, l)
		}
	}
	result.Languages = kept
	return result
}

// ApplySeries returns a copy of the series without excluded languages. The
// threshold is not applied since series values are cumulative.
func (f *LanguageFilter) ApplySeries(points []model.TimeSeriesPoint) []model.TimeSeriesPoint {
	out := make([]model.TimeSeriesPoint, len(points))
	for i, p := range points {
		values := make(map[string]float64, len(p.Intensities))
		for lang, v := range p.Intensities {
			if !f.Excluded(lang) {
				values[lang] = v
			}
		}
		out[i] = model.TimeSeriesPoint{Date: p.Date, Intensities: values}
	}
	return out
}
