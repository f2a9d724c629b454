package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/skillpiler/internal/model"
)

// Palette colors languages in order of first appearance.
var Palette = []string{"#8884d8", "#82ca9d", "#ffc658", "#ff7300", "#8dd1e1", "#d084d0", "#82d982"}

// ColorFor returns the palette color for the i-th language, cycling.
func ColorFor(i int) lipgloss.Color {
	return lipgloss.Color(Palette[i%len(Palette)])
}

const (
	// TimeStep is the increment of the time-range selector, in percent.
	TimeStep   = 10
	allTimePct = 100
)

// TimeLabel describes a time-range selector position.
func TimeLabel(pct int) string {
	if pct >= allTimePct {
		return "All Time"
	}
	return fmt.Sprintf("%d%% of Timeline", pct)
}

// Timeline keeps the leading pct percent of points, at least one point.
// 100 keeps everything.
func Timeline(points []model.TimeSeriesPoint, pct int) []model.TimeSeriesPoint {
	if len(points) == 0 || pct >= allTimePct {
		return points
	}
	if pct < 0 {
		pct = 0
	}
	n := int(math.Ceil(float64(len(points)) * float64(pct) / 100))
	if n < 1 {
		n = 1
	}
	return points[:n]
}

// seriesLanguages lists every language in the series ordered by its final
// intensity, so colors stay stable while scrubbing the timeline.
func seriesLanguages(points []model.TimeSeriesPoint) []string {
	if len(points) == 0 {
		return nil
	}
	last := points[len(points)-1]
	seen := make(map[string]bool)
	var names []string
	for _, name := range last.Languages() {
		seen[name] = true
		names = append(names, name)
	}
	var rest []string
	for _, p := range points {
		for name := range p.Intensities {
			if !seen[name] {
				seen[name] = true
				rest = append(rest, name)
			}
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// RenderIntensityBars draws one horizontal bar per language scaled to width.
func RenderIntensityBars(langs []model.LanguageIntensity, width int) string {
	if len(langs) == 0 {
		return mutedStyle.Render("No languages to show.")
	}
	nameWidth := 0
	for _, l := range langs {
		nameWidth = max(nameWidth, lipgloss.Width(l.Language))
	}
	barWidth := max(width-nameWidth-8, 10)

	var b strings.Builder
	for i, l := range langs {
		filled := int(math.Round(l.Intensity / 100 * float64(barWidth)))
		bar := lipgloss.NewStyle().Foreground(ColorFor(i)).Render(strings.Repeat("█", filled))
		fmt.Fprintf(&b, "%-*s %s%s %5.1f\n", nameWidth, l.Language, bar, strings.Repeat(" ", barWidth-filled), l.Intensity)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderStackedBars draws one vertical column per month where each language
// contributes a colored segment proportional to its intensity. The tallest
// column fills height rows.
func RenderStackedBars(points []model.TimeSeriesPoint, width, height int) string {
	if len(points) == 0 {
		return mutedStyle.Render("No time series data.")
	}
	if height < 2 {
		height = 2
	}
	langs := seriesLanguages(points)
	colorOf := make(map[string]lipgloss.Color, len(langs))
	for i, name := range langs {
		colorOf[name] = ColorFor(i)
	}

	// Columns wider than the terminal keep the most recent months.
	colWidth := 2
	if maxCols := max(width/colWidth, 1); len(points) > maxCols {
		points = points[len(points)-maxCols:]
	}

	top := 0.0
	for _, p := range points {
		total := 0.0
		for _, v := range p.Intensities {
			total += v
		}
		top = math.Max(top, total)
	}

	// cells[col][row] holds the color of each cell, bottom row first.
	cells := make([][]lipgloss.Color, len(points))
	for c, p := range points {
		col := make([]lipgloss.Color, 0, height)
		for _, name := range langs {
			v, ok := p.Intensities[name]
			if !ok || top == 0 {
				continue
			}
			rows := int(math.Round(v / top * float64(height)))
			for r := 0; r < rows && len(col) < height; r++ {
				col = append(col, colorOf[name])
			}
		}
		cells[c] = col
	}

	var b strings.Builder
	for row := height - 1; row >= 0; row-- {
		for _, col := range cells {
			if row < len(col) {
				b.WriteString(lipgloss.NewStyle().Foreground(col[row]).Render("█") + " ")
			} else {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	first, last := points[0].Date, points[len(points)-1].Date
	axis := first
	if len(points) > 1 {
		// Right-align the last label under its column when the chart is wide
		// enough, otherwise keep both labels one space apart.
		span := max(len(points)*colWidth-len(first)-len(last), 1)
		axis += strings.Repeat(" ", span) + last
	}
	b.WriteString(mutedStyle.Render(axis))
	b.WriteString("\n\n")
	b.WriteString(renderLegend(langs, colorOf))
	return b.String()
}

// RenderBubbles draws each language as a circle glyph whose size follows its
// intensity, largest first.
func RenderBubbles(langs []model.LanguageIntensity, width int) string {
	if len(langs) == 0 {
		return mutedStyle.Render("No languages to show.")
	}
	var items []string
	for i, l := range langs {
		glyph := bubbleGlyph(l.Intensity)
		style := lipgloss.NewStyle().Foreground(ColorFor(i))
		items = append(items, style.Render(glyph)+" "+fmt.Sprintf("%s (%.1f)", l.Language, l.Intensity))
	}

	var lines []string
	line := ""
	for _, item := range items {
		candidate := item
		if line != "" {
			candidate = line + "   " + item
		}
		if line != "" && lipgloss.Width(candidate) > width {
			lines = append(lines, line)
			candidate = item
		}
		line = candidate
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func bubbleGlyph(intensity float64) string {
	switch {
	case intensity >= 75:
		return "⬤"
	case intensity >= 50:
		return "●"
	case intensity >= 25:
		return "•"
	default:
		return "·"
	}
}

// PointLanguages converts a series point into a profile ordered by intensity.
func PointLanguages(p model.TimeSeriesPoint) []model.LanguageIntensity {
	names := p.Languages()
	out := make([]model.LanguageIntensity, len(names))
	for i, name := range names {
		out[i] = model.LanguageIntensity{Language: name, Intensity: p.Intensities[name]}
	}
	return out
}

func renderLegend(langs []string, colorOf map[string]lipgloss.Color) string {
	parts := make([]string, len(langs))
	for i, name := range langs {
		parts[i] = lipgloss.NewStyle().Foreground(colorOf[name]).Render("■") + " " + name
	}
	return strings.Join(parts, "  ")
}
