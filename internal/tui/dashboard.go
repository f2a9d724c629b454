// Package tui renders the interactive skill dashboard on top of a job poller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/skillpiler/internal/filter"
	"github.com/amishk599/skillpiler/internal/model"
	"github.com/amishk599/skillpiler/internal/poller"
)

const (
	ChartBar    = "bar"
	ChartBubble = "bubble"
)

// Controller is the part of the job poller the dashboard drives.
type Controller interface {
	State() poller.State
	Subscribe() (<-chan poller.State, func())
	Start(ctx context.Context, req model.AnalysisRequest)
	ClearAnalysis()
	LoadTimeSeriesData(ctx context.Context, username string, months int)
	SetError(msg string)
	MaxAttempts() int
}

// Options configures a dashboard.
type Options struct {
	Username string // analyzed right away when set
	Private  bool
	Chart    string // ChartBar or ChartBubble
	Months   int    // time series window, 0 for the whole history
	Filter   *filter.LanguageFilter
}

type screen int

const (
	screenIdle screen = iota
	screenLoading
	screenResult
	screenError
)

// stateMsg carries a poller snapshot into the update loop.
type stateMsg poller.State

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx         context.Context
	ctrl        Controller
	updates     <-chan poller.State
	unsubscribe func()

	state    poller.State
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	filter   *filter.LanguageFilter

	private    bool
	chart      string
	timePct    int
	months     int
	autoStart  string
	seriesUser string // username whose series was requested

	width  int
	height int
	ready  bool
}

// NewModel subscribes to ctrl and builds a dashboard. Call Close when done.
func NewModel(ctx context.Context, ctrl Controller, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "GitHub username"
	ti.CharLimit = 39
	ti.Width = 30
	ti.Prompt = "› "
	ti.SetValue(opts.Username)
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("39"))),
	)

	if opts.Chart != ChartBubble {
		opts.Chart = ChartBar
	}
	if opts.Filter == nil {
		opts.Filter = filter.NewLanguageFilter(nil, 0)
	}

	updates, unsubscribe := ctrl.Subscribe()
	return Model{
		ctx:         ctx,
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		state:       ctrl.State(),
		input:       ti,
		spinner:     sp,
		filter:      opts.Filter,
		private:     opts.Private,
		chart:       opts.Chart,
		timePct:     100,
		months:      opts.Months,
		autoStart:   strings.TrimSpace(opts.Username),
	}
}

// Close stops receiving poller updates.
func (m Model) Close() {
	m.unsubscribe()
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitForState(m.updates)}
	if m.autoStart != "" {
		cmds = append(cmds, m.submit())
	}
	return tea.Batch(cmds...)
}

func waitForState(ch <-chan poller.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case stateMsg:
		m.state = poller.State(msg)
		cmds := []tea.Cmd{waitForState(m.updates)}
		if cmd := m.maybeLoadSeries(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		m.refresh()
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen() {
		case screenIdle:
			return m.updateIdle(msg)
		case screenLoading:
			if msg.String() == "esc" {
				m.ctrl.ClearAnalysis()
			}
			return m, nil
		case screenError:
			switch msg.String() {
			case "esc", "enter":
				m.ctrl.ClearAnalysis()
			case "q":
				return m, tea.Quit
			}
			return m, nil
		case screenResult:
			return m.updateResult(msg)
		}
	}
	return m, nil
}

func (m Model) updateIdle(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab":
		m.private = !m.private
		return m, nil
	case "enter":
		return m, m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.ctrl.ClearAnalysis()
		m.seriesUser = ""
		m.timePct = 100
		return m, nil
	case "c":
		if m.chart == ChartBar {
			m.chart = ChartBubble
		} else {
			m.chart = ChartBar
		}
		m.refresh()
		return m, nil
	case "left", "h":
		m.timePct = max(m.timePct-TimeStep, 0)
		m.refresh()
		return m, nil
	case "right", "l":
		m.timePct = min(m.timePct+TimeStep, 100)
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// submit validates the input and starts an analysis off the update loop,
// since Start blocks for the submission round trip.
func (m Model) submit() tea.Cmd {
	req, err := model.NewAnalysisRequest(m.input.Value(), m.private)
	if err != nil {
		m.ctrl.SetError(errorText(err))
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.Start(ctx, req)
		return nil
	}
}

// maybeLoadSeries requests the time series once per successful analysis.
func (m *Model) maybeLoadSeries() tea.Cmd {
	s := m.state
	if s.Phase != poller.PhaseSucceeded || s.CurrentResult == nil {
		if s.CurrentResult == nil {
			m.seriesUser = ""
		}
		return nil
	}
	username := s.CurrentResult.Username
	if username == "" || strings.EqualFold(username, m.seriesUser) {
		return nil
	}
	m.seriesUser = username
	ctx, ctrl, months := m.ctx, m.ctrl, m.months
	return func() tea.Msg {
		ctrl.LoadTimeSeriesData(ctx, username, months)
		return nil
	}
}

func (m Model) screen() screen {
	s := m.state
	switch {
	case s.IsLoading:
		return screenLoading
	case s.HasError() && (s.ErrorKind != poller.TimeSeriesError || s.CurrentResult == nil):
		return screenError
	case s.CurrentResult != nil:
		return screenResult
	default:
		return screenIdle
	}
}

func (m *Model) recalcLayout() {
	// Title (1) + blank (1) + status bar (1) = 3 lines overhead.
	w, h := max(m.width, 20), max(m.height-3, 5)
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready || m.state.CurrentResult == nil {
		return
	}
	m.viewport.SetContent(m.renderResult())
}

func (m Model) View() string {
	var body, status string
	switch m.screen() {
	case screenIdle:
		body = m.renderIdle()
		status = "enter analyze · tab private · esc quit"
	case screenLoading:
		body = m.renderLoading()
		status = "esc cancel · ctrl+c quit"
	case screenError:
		body = m.renderError()
		status = "esc start over · q quit"
	case screenResult:
		if m.ready {
			body = m.viewport.View()
		} else {
			body = m.renderResult()
		}
		status = "c chart · ←/→ time range · ↑/↓ scroll · esc new analysis · q quit"
	}

	title := titleStyle.Render("Skill Piler")
	bar := statusBarStyle.Width(max(m.width, lipgloss.Width(status)+2)).Render(status)
	return lipgloss.JoinVertical(lipgloss.Left, title, "", body, bar)
}

func (m Model) renderIdle() string {
	check := "[ ]"
	if m.private {
		check = "[x]"
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render("Analyze a GitHub account") + "\n\n")
	b.WriteString(m.input.View() + "\n\n")
	b.WriteString(valueStyle.Render(check+" include private repositories") + "\n")
	if m.private {
		b.WriteString(hintStyle.Render("requires `skillpiler auth login`") + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderLoading() string {
	s := m.state
	var line string
	switch {
	case s.Phase == poller.PhaseSubmitting || s.CurrentJob == nil:
		line = "Submitting analysis..."
	default:
		who := s.CurrentJob.Username
		if who == "" {
			who = s.CurrentJob.JobID
		}
		line = fmt.Sprintf("Analyzing %s (attempt %d/%d)", who, s.Attempts, m.ctrl.MaxAttempts())
	}
	return m.spinner.View() + " " + valueStyle.Render(line)
}

func (m Model) renderError() string {
	msg := m.state.Error
	heading := "Analysis failed"
	switch m.state.ErrorKind {
	case poller.TimeoutError:
		heading = "Analysis timed out"
	case poller.ErrorNone:
		heading = "Invalid input"
	}
	return panelStyle.BorderForeground(lipgloss.Color("196")).Render(
		errorStyle.Render(heading) + "\n\n" + valueStyle.Render(msg),
	)
}

func (m Model) renderResult() string {
	s := m.state
	result := m.filter.Apply(*s.CurrentResult)
	series := m.filter.ApplySeries(s.TimeSeries)
	width := max(m.width-4, 20)

	var b strings.Builder
	b.WriteString(renderSummary(result) + "\n\n")

	visible := Timeline(series, m.timePct)
	switch {
	case m.chart == ChartBubble && len(visible) > 0:
		b.WriteString(labelStyle.Render("Language bubbles") + "\n")
		b.WriteString(RenderBubbles(PointLanguages(visible[len(visible)-1]), width) + "\n")
	case m.chart == ChartBubble:
		b.WriteString(labelStyle.Render("Language bubbles") + "\n")
		b.WriteString(RenderBubbles(result.Languages, width) + "\n")
	case len(visible) > 0:
		b.WriteString(labelStyle.Render("Skill timeline") + "\n")
		b.WriteString(RenderStackedBars(visible, width, 10) + "\n")
	case s.IsLoadingTimeSeries:
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render("Loading timeline...") + "\n")
	}

	if len(series) > 0 {
		b.WriteString("\n" + mutedStyle.Render("Time range: ◀ ") + valueStyle.Render(TimeLabel(m.timePct)) + mutedStyle.Render(" ▶") + "\n")
	}
	if s.ErrorKind == poller.TimeSeriesError && s.HasError() {
		b.WriteString(warnStyle.Render("Timeline unavailable: "+s.Error) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("Languages") + "\n")
	b.WriteString(RenderIntensityBars(result.Languages, width))
	return b.String()
}

func renderSummary(r model.AnalysisResult) string {
	field := func(label string, value any) string {
		return labelStyle.Render(label+": ") + valueStyle.Render(fmt.Sprint(value))
	}
	return strings.Join([]string{
		field("User", r.Username),
		field("Repositories", r.TotalRepositories),
		field("Commits", r.TotalCommits),
		field("Languages", len(r.Languages)),
		field("Period", fmt.Sprintf("%d months", r.AnalysisPeriodMonths)),
	}, "   ")
}

func errorText(err error) string {
	if errors.Is(err, model.ErrEmptyUsername) {
		return "Please enter a GitHub username"
	}
	return err.Error()
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	m := NewModel(ctx, ctrl, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
