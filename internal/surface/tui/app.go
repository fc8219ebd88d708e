package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"callsync/internal/crm"
	"callsync/internal/i18n"
	"callsync/internal/session"
	"callsync/internal/surface"
)

// mode 当前输入焦点 / mode is where key presses go
type mode int

const (
	modeMain mode = iota
	modeSearch
	modeEdit
)

// --- Tea Messages ---

// eventMsg 控制器事件 / eventMsg carries a controller event
type eventMsg struct{ ev session.Event }

// actionDoneMsg 控制器操作完成 / actionDoneMsg reports a finished controller call
type actionDoneMsg struct {
	op  string
	err error
}

// searchResultMsg 防抖搜索结果 / searchResultMsg carries a debounced search result
type searchResultMsg struct {
	query string
	deals []crm.Deal
	err   error
}

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	ctx         context.Context
	ctrl        surface.Controller
	search      *crm.Debouncer
	events      chan tea.Msg
	unsubscribe func()

	// 布局 / Layout
	width  int
	height int

	// 会话快照 / Session snapshot
	view   session.View
	cursor int
	mode   mode

	// 搜索 / Search
	query        textinput.Model
	results      []crm.Deal
	resultCursor int
	searchNote   string

	// 摘要编辑 / Summary editing
	editor textarea.Model

	// 状态 / State
	spinner   spinner.Model
	busy      string
	status    string
	lastError string
	banner    []string

	// 配置 / Config
	theme  Theme
	keys   KeyMap
	locale *i18n.I18n
}

// NewApp 创建 TUI 应用并订阅控制器事件；search 可为 nil
// NewApp creates the TUI application and subscribes to controller events; search may be nil
func NewApp(ctx context.Context, ctrl surface.Controller, search *crm.Debouncer, locale *i18n.I18n) App {
	if locale == nil {
		locale = i18n.Global()
	}
	events := make(chan tea.Msg, 256)

	ti := textinput.New()
	ti.Placeholder = locale.T("search.placeholder")
	ti.CharLimit = 120

	ta := textarea.New()
	ta.CharLimit = 0
	ta.SetHeight(12)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	a := App{
		ctx:     ctx,
		ctrl:    ctrl,
		search:  search,
		events:  events,
		view:    ctrl.View(),
		query:   ti,
		editor:  ta,
		spinner: sp,
		theme:   NewTheme(),
		keys:    DefaultKeyMap(),
		locale:  locale,
	}
	a.unsubscribe = ctrl.Subscribe(func(ev session.Event) { push(events, eventMsg{ev: ev}) })
	if search != nil {
		search.OnResult = func(q string, deals []crm.Deal, err error) {
			deliver(ctx, events, searchResultMsg{query: q, deals: deals, err: err})
		}
	}
	return a
}

// push never blocks. Only controller events go through it: each one re-reads the
// view, so the next event recovers a dropped one.
func push(ch chan tea.Msg, msg tea.Msg) {
	select {
	case ch <- msg:
	default:
	}
}

// deliver 搜索结果不会重发，等到有空位或 ctx 结束
// deliver waits for room or for ctx to end; search results are never re-sent
func deliver(ctx context.Context, ch chan tea.Msg, msg tea.Msg) {
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}

func listen(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

// SetBanner sets notices shown above the session panels.
func (a *App) SetBanner(lines ...string) {
	a.banner = append([]string(nil), lines...)
}

func (a App) Init() tea.Cmd {
	return tea.Batch(listen(a.events), a.spinner.Tick)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case eventMsg:
		a.view = a.ctrl.View()
		if msg.ev.Kind == session.EventError && msg.ev.Err != nil {
			a.lastError = msg.ev.Err.Error()
		}
		if msg.ev.Kind == session.EventState && msg.ev.State == session.Failed && a.view.LastError != "" {
			a.lastError = a.view.LastError
		}
		return a, listen(a.events)

	case searchResultMsg:
		if a.mode == modeSearch && msg.query == a.query.Value() {
			a.results = msg.deals
			a.resultCursor = 0
			a.searchNote = ""
			switch {
			case msg.err != nil:
				a.searchNote = a.locale.T("search.failed", msg.err.Error())
			case len(msg.deals) == 0 && len([]rune(strings.TrimSpace(msg.query))) > 0:
				a.searchNote = a.locale.T("search.empty")
			}
		}
		return a, listen(a.events)

	case actionDoneMsg:
		return a.handleDone(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		switch a.mode {
		case modeSearch:
			return a.updateSearch(msg)
		case modeEdit:
			return a.updateEdit(msg)
		default:
			return a.updateMain(msg)
		}
	}

	if a.mode == modeEdit {
		var cmd tea.Cmd
		a.editor, cmd = a.editor.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Record):
		return a, a.act("start", func(ctx context.Context) error { return a.ctrl.Start(ctx) })
	case key.Matches(msg, a.keys.Pause):
		if a.view.State == session.Paused {
			return a, a.act("resume", func(context.Context) error { return a.ctrl.Resume() })
		}
		return a, a.act("pause", func(context.Context) error { return a.ctrl.Pause() })
	case key.Matches(msg, a.keys.Stop):
		return a, a.act("stop", func(context.Context) error { return a.ctrl.Stop() })
	case key.Matches(msg, a.keys.Process):
		a.busy = "process"
		a.status = a.locale.T("status.processing")
		return a, a.act("process", func(ctx context.Context) error { return a.ctrl.Process(ctx) })
	case key.Matches(msg, a.keys.Upload):
		a.busy = "upload"
		a.status = a.locale.T("status.uploading")
		return a, a.act("upload", func(ctx context.Context) error { return a.ctrl.Upload(ctx) })
	case key.Matches(msg, a.keys.New):
		a.lastError = ""
		a.status = ""
		return a, a.act("reset", func(context.Context) error { a.ctrl.Reset(); return nil })
	case key.Matches(msg, a.keys.Search):
		a.mode = modeSearch
		a.query.SetValue("")
		a.results = nil
		a.searchNote = ""
		return a, a.query.Focus()
	case key.Matches(msg, a.keys.Edit):
		if a.view.State != session.Ready {
			return a, nil
		}
		a.mode = modeEdit
		a.editor.SetValue(a.view.Summary)
		return a, a.editor.Focus()
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.view.Checklist)-1 {
			a.cursor++
		}
		return a, nil
	case key.Matches(msg, a.keys.Toggle):
		if a.cursor >= len(a.view.Checklist) {
			return a, nil
		}
		id := a.view.Checklist[a.cursor].ID
		return a, a.act("check", func(ctx context.Context) error {
			_, err := a.ctrl.ToggleChecklist(ctx, id)
			return err
		})
	}
	return a, nil
}

func (a App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.closeSearch()
		return a, nil
	case msg.Type == tea.KeyUp:
		if a.resultCursor > 0 {
			a.resultCursor--
		}
		return a, nil
	case msg.Type == tea.KeyDown:
		if a.resultCursor < len(a.results)-1 {
			a.resultCursor++
		}
		return a, nil
	case key.Matches(msg, a.keys.Submit):
		if a.resultCursor >= len(a.results) {
			return a, nil
		}
		deal := a.results[a.resultCursor]
		a.closeSearch()
		a.status = a.locale.T("search.linked", deal.Label())
		return a, a.act("link", func(ctx context.Context) error {
			return a.ctrl.LinkRecord(ctx, deal.ID, deal.Label())
		})
	}

	before := a.query.Value()
	var cmd tea.Cmd
	a.query, cmd = a.query.Update(msg)
	if after := a.query.Value(); after != before && a.search != nil {
		a.search.Input(after)
	}
	return a, cmd
}

func (a *App) closeSearch() {
	a.mode = modeMain
	a.query.Blur()
	a.results = nil
	a.searchNote = ""
	if a.search != nil {
		a.search.Input("")
	}
}

func (a App) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.mode = modeMain
		a.editor.Blur()
		return a, nil
	case key.Matches(msg, a.keys.Save):
		text := a.editor.Value()
		a.mode = modeMain
		a.editor.Blur()
		a.status = a.locale.T("summary.saved")
		return a, a.act("summary", func(ctx context.Context) error { return a.ctrl.EditSummary(ctx, text) })
	}
	var cmd tea.Cmd
	a.editor, cmd = a.editor.Update(msg)
	return a, cmd
}

// act runs a controller call off the update loop.
func (a App) act(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func (a App) handleDone(msg actionDoneMsg) App {
	if a.busy == msg.op {
		a.busy = ""
	}
	a.view = a.ctrl.View()
	if msg.err != nil {
		a.lastError = msg.err.Error()
		if msg.op == "process" && a.view.HasAudio() {
			a.status = a.locale.T("status.audio_saved", a.view.AudioBytes)
		} else if msg.op == "process" || msg.op == "upload" || msg.op == "link" || msg.op == "summary" {
			a.status = ""
		}
		return a
	}
	a.lastError = ""
	switch msg.op {
	case "process":
		a.status = a.locale.T("status.ready")
	case "upload":
		a.status = a.locale.T("status.uploaded", a.view.DealName)
	}
	return a
}

// --- Layout ---

func (a *App) relayout() {
	w := a.width - 4
	if w < 20 {
		w = 20
	}
	a.query.Width = w - 2
	a.editor.SetWidth(w)
	h := a.height - 8
	if h < 4 {
		h = 4
	}
	a.editor.SetHeight(h)
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	parts := []string{a.renderHeader()}
	for _, line := range a.banner {
		parts = append(parts, a.theme.Banner.Render("! "+line))
	}

	switch a.mode {
	case modeSearch:
		parts = append(parts, a.renderSearch())
	case modeEdit:
		parts = append(parts, a.theme.Heading.Render(a.locale.T("panel.summary")), a.editor.View(),
			a.theme.Dim.Render(a.locale.T("summary.edit_hint")))
	default:
		parts = append(parts, a.renderBody())
	}

	parts = append(parts, a.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a App) renderHeader() string {
	state := a.view.State.String()
	badge := a.theme.Badge(state).Render(surface.StateLabel(a.locale, state))
	deal := a.theme.Dim.Render(a.locale.T("deal.none"))
	if a.view.DealID != 0 {
		deal = a.locale.T("deal.linked", a.view.DealName)
	}
	return fmt.Sprintf("%s %s  %s  %s",
		a.theme.Heading.Render("callsync"), badge, surface.FormatElapsed(a.view.ElapsedSeconds), deal)
}

func (a App) renderBody() string {
	left := a.renderChecklist()
	right := a.renderSummary()

	leftWidth := a.width * 40 / 100
	if leftWidth < 30 {
		leftWidth = 30
	}
	if a.width < 80 {
		return lipgloss.JoinVertical(lipgloss.Left, left, right)
	}
	l := a.theme.Pane.Width(leftWidth).Render(left)
	r := a.theme.Pane.Width(a.width - leftWidth - 6).Render(right)
	return lipgloss.JoinHorizontal(lipgloss.Top, l, r)
}

func (a App) renderChecklist() string {
	lines := []string{a.theme.Heading.Render(a.locale.T("panel.checklist"))}
	done := 0
	for i, it := range a.view.Checklist {
		mark := "[ ]"
		if it.Checked {
			mark = a.theme.Done.Render("[x]")
			done++
		}
		label := it.Label
		if it.ManuallySet {
			label += a.theme.Dim.Render(" (" + a.locale.T("checklist.manual") + ")")
		}
		prefix := "  "
		if i == a.cursor {
			prefix = a.theme.Cursor.Render("> ")
		}
		lines = append(lines, prefix+mark+" "+label)
	}
	lines = append(lines, "", a.theme.Dim.Render(a.locale.T("checklist.progress", done, len(a.view.Checklist))))
	return strings.Join(lines, "\n")
}

func (a App) renderSummary() string {
	title := a.theme.Heading.Render(a.locale.T("panel.summary"))
	if a.busy != "" {
		return title + "\n" + a.spinner.View() + " " + a.status
	}
	if strings.TrimSpace(a.view.Summary) == "" {
		return title + "\n" + a.theme.Dim.Render(a.locale.T("summary.empty"))
	}
	width := a.width - a.width*40/100 - 10
	if width < 20 {
		width = 20
	}
	return title + "\n" + surface.RenderMarkdown(a.view.Summary, width)
}

func (a App) renderSearch() string {
	lines := []string{
		a.theme.Heading.Render(a.locale.T("panel.search")),
		a.theme.Query.Render(a.query.View()),
	}
	for i, d := range a.results {
		line := fmt.Sprintf("  %s  #%d", d.Label(), d.ID)
		if i == a.resultCursor {
			line = a.theme.Cursor.Render("> " + d.Label() + fmt.Sprintf("  #%d", d.ID))
		}
		lines = append(lines, line)
	}
	if a.searchNote != "" {
		lines = append(lines, a.theme.Dim.Render(a.searchNote))
	}
	lines = append(lines, a.theme.Dim.Render(a.locale.T("keys.search_help")))
	return strings.Join(lines, "\n")
}

func (a App) renderStatusBar() string {
	left := a.status
	if a.lastError != "" {
		left = a.theme.Alert.Render(a.locale.T("error.prefix", a.lastError))
	}
	help := a.theme.Dim.Render(a.locale.T("keys.help"))
	return lipgloss.JoinVertical(lipgloss.Left, left, a.theme.Footer.Width(a.width).Render(help))
}

// Run 启动 Bubble Tea TUI，直到用户退出或 ctx 结束
// Run starts the Bubble Tea program until the user quits or ctx ends
func (a App) Run(ctx context.Context) error {
	defer a.unsubscribe()
	if a.search != nil {
		defer a.search.Close()
	}
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
