package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/cleaner"
	"embroidery-template-cleaner/internal/config"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/extensions"
	"embroidery-template-cleaner/internal/session"
	"embroidery-template-cleaner/pkg/utils"
)

type status int

const (
	statusSelect status = iota
	statusRunning
	statusConfirm
	statusRetry
	statusDone
)

// recent status lines kept on the progress screen
const historySize = 5

type model struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg  config.Configuration
	opts cleaner.Options
	sp   spinner.Model

	st  status
	err error // last validation error, shown under the picker

	// extension picker (custom rendering, not using bubbles/list)
	items        []item
	cursor       int
	scrollOffset int

	// target directory editor
	target  textinput.Model
	editing bool

	// running session
	sess      *session.Session
	waiting   bool
	startedAt time.Time
	history   []string
	pending   events.Event
	cancelled bool

	result  *events.CleaningResult
	failure *events.ErrorOccurred

	// terminal size
	termW int
	termH int

	// help panel
	showHelp bool
}

type item struct {
	ext     string
	display bool
	sel     bool
}

func newModel(ctx context.Context, cfg config.Configuration, opts cleaner.Options) model {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Prompt = "Target directory: "
	ti.Placeholder = "path to your embroidery files"
	ti.SetValue(cfg.TargetDir())

	return model{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		opts:   opts,
		sp:     sp,
		st:     statusSelect,
		items:  pickerItems(cfg),
		target: ti,
	}
}

// pickerItems lists every template extension plus anything else the
// configuration already selects, preselecting the configured ones.
func pickerItems(cfg config.Configuration) []item {
	selected := cfg.ExtensionSet()
	seen := make(map[string]struct{})
	var out []item
	add := func(ext string) {
		if _, ok := seen[ext]; ok {
			return
		}
		seen[ext] = struct{}{}
		out = append(out, item{ext: ext, display: extensions.Display.Has(ext), sel: selected.Has(ext)})
	}
	for _, ext := range extensions.Template.Sorted() {
		add(ext)
	}
	for _, ext := range selected.Sorted() {
		add(ext)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].display != out[j].display {
			return !out[i].display
		}
		return out[i].ext < out[j].ext
	})
	return out
}

// Outcome is what a TUI session ends with. Config reflects the picker and
// target edits and is what the caller should persist.
type Outcome struct {
	Config  config.Configuration
	Result  *events.CleaningResult
	Failure *events.ErrorOccurred
}

// Run shows the picker, runs the cleaning session the user starts and
// returns once the user quits.
func Run(ctx context.Context, cfg config.Configuration, opts cleaner.Options) (Outcome, error) {
	m := newModel(ctx, cfg, opts)
	defer m.cancel()
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return Outcome{Config: cfg}, err
	}
	fm, ok := final.(model)
	if !ok {
		return Outcome{Config: cfg}, nil
	}
	if fm.sess != nil {
		// the program can quit before the stream drains
		fm.cancel()
		_, _ = fm.sess.Wait()
	}
	return Outcome{Config: fm.cfg, Result: fm.result, Failure: fm.failure}, nil
}

// messages
type eventMsg struct{ ev events.Event }
type streamEndMsg struct{}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditor(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			return m.quit()
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}
		switch m.st {
		case statusSelect:
			return m.updateSelect(msg)
		case statusRunning:
			if k := msg.String(); k == "q" || k == "esc" {
				return m.quit()
			}
		case statusConfirm:
			switch msg.String() {
			case "y":
				return m.respond(events.ConfirmationResponse{Accepted: true})
			case "n", "esc":
				return m.respond(events.ConfirmationResponse{Accepted: false})
			case "q":
				return m.quit()
			}
		case statusRetry:
			if choice, ok := events.ParseChoice(msg.String()); ok {
				return m.respond(events.RetrySkipAbortResponse{Choice: choice})
			}
			if msg.String() == "q" {
				return m.quit()
			}
		case statusDone:
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.termW, m.termH = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.st != statusRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case eventMsg:
		m.waiting = false
		return m.handleEvent(msg.ev)

	case streamEndMsg:
		m.waiting = false
		if m.st != statusDone {
			// stopped without a terminal event, treat as cancelled
			m.failure = &events.ErrorOccurred{Message: "cleaning cancelled", Aborted: true}
			m.st = statusDone
		}
		return m, nil
	}

	if m.editing {
		var cmd tea.Cmd
		m.target, cmd = m.target.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		// keep the selection for the next start
		if cfg, err := m.cfg.WithExtensions(m.selectedExtensions()); err == nil {
			m.cfg = cfg
		}
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
			m.adjustScroll()
		}
	case " ":
		m.toggleSelected()
	case "a":
		m.toggleAll()
	case "t":
		m.editing = true
		m.err = nil
		cmd := m.target.Focus()
		return m, cmd
	case "enter", "d":
		return m.start()
	}
	return m, nil
}

func (m model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "esc":
		m.editing = false
		m.target.Blur()
		m.target.SetValue(m.cfg.TargetDir())
		return m, nil
	case "enter":
		cfg, err := m.cfg.WithTarget(expandHome(strings.TrimSpace(m.target.Value())))
		if err != nil {
			m.err = err
			return m, nil
		}
		m.cfg = cfg
		m.err = nil
		m.editing = false
		m.target.Blur()
		m.target.SetValue(cfg.TargetDir())
		return m, nil
	}
	var cmd tea.Cmd
	m.target, cmd = m.target.Update(msg)
	return m, cmd
}

// expandHome resolves a leading "~" the way a shell would.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// start validates the picker state and launches the session.
func (m model) start() (tea.Model, tea.Cmd) {
	if !m.cfg.HasTarget() {
		m.err = errors.New("press t to choose a target directory first")
		return m, nil
	}
	if m.selectedCount() == 0 {
		m.err = errors.New("select at least one extension")
		return m, nil
	}
	cfg, err := m.cfg.WithExtensions(m.selectedExtensions())
	if err != nil {
		m.err = err
		return m, nil
	}
	m.cfg = cfg
	m.err = nil
	m.st = statusRunning
	m.startedAt = time.Now()
	m.history = nil
	m.sp = spinner.New()
	m.sp.Spinner = spinner.Dot
	m.sess = session.Start(m.ctx, cfg, m.opts)
	m.waiting = true
	return m, tea.Batch(m.sp.Tick, m.waitEvent())
}

func (m model) handleEvent(ev events.Event) (tea.Model, tea.Cmd) {
	switch e := ev.(type) {
	case events.StatusUpdate:
		m.history = append(m.history, e.Message)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
	case events.RequestConfirmation:
		if m.cancelled {
			// the worker is already unwinding, nobody will read an answer
			break
		}
		m.pending = e
		m.st = statusConfirm
		return m, nil
	case events.RequestRetrySkipAbort:
		if m.cancelled {
			break
		}
		m.pending = e
		m.st = statusRetry
		return m, nil
	case events.CleaningResult:
		m.result = &e
		m.st = statusDone
		return m, nil
	case events.ErrorOccurred:
		m.failure = &e
		m.st = statusDone
		return m, nil
	}
	m.waiting = true
	return m, m.waitEvent()
}

func (m model) respond(resp events.Response) (tea.Model, tea.Cmd) {
	if err := m.sess.Respond(resp); err != nil {
		m.err = err
		return m, nil
	}
	m.pending = nil
	m.st = statusRunning
	m.waiting = true
	return m, tea.Batch(m.sp.Tick, m.waitEvent())
}

// quit cancels a running session and keeps reading until its terminal
// event arrives; outside a run it exits right away.
func (m model) quit() (tea.Model, tea.Cmd) {
	if m.sess == nil || m.st == statusDone {
		m.cancel()
		return m, tea.Quit
	}
	m.cancel()
	m.cancelled = true
	m.pending = nil
	m.st = statusRunning
	if m.waiting {
		return m, nil
	}
	m.waiting = true
	return m, m.waitEvent()
}

// waitEvent pulls the next session event. It does not use m.ctx so the
// terminal event of a cancelled run is still delivered.
func (m model) waitEvent() tea.Cmd {
	s := m.sess
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := s.Next(context.Background())
		if !ok {
			return streamEndMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m model) View() string {
	switch m.st {
	case statusSelect:
		base := m.headerText() + m.renderList()
		if m.err != nil {
			base += "\n" + errorStyle.Render(m.err.Error()) + "\n"
		}
		if m.showHelp {
			base += "\n" + m.helpText()
		}
		return base
	case statusRunning:
		mode := ""
		if m.opts.DryRun {
			mode = " [dry-run]"
		}
		title := "Cleaning in progress"
		if m.cancelled {
			title = "Cancelling"
		}
		elapsed := time.Since(m.startedAt).Round(time.Second)
		var b strings.Builder
		b.WriteString(headerStyle.Render(title+mode) + " " + m.sp.View() + "\n")
		b.WriteString(fmt.Sprintf("Elapsed: %s\n\n", elapsed))
		for _, line := range m.history {
			b.WriteString(dimStyle.Render(line) + "\n")
		}
		b.WriteString("\nPress q to cancel.\n")
		return b.String()
	case statusConfirm:
		req, _ := m.pending.(events.RequestConfirmation)
		var b strings.Builder
		b.WriteString(headerStyle.Render("Confirm Deletion") + "\n\n")
		b.WriteString(fmt.Sprintf("The directory %q only contains display files:\n", filepath.Base(req.Path)))
		for _, f := range req.Files {
			b.WriteString("  " + pathStyleSelected.Render(f) + "\n")
		}
		b.WriteString("\nDo you want to delete the folder and its contents? (y/N)\n")
		return dialogStyle.Render(b.String()) + "\n"
	case statusRetry:
		req, _ := m.pending.(events.RequestRetrySkipAbort)
		var b strings.Builder
		b.WriteString(headerStyle.Render("Operation Failed") + "\n\n")
		b.WriteString(fmt.Sprintf("Error %s\n", req.Operation))
		b.WriteString("  " + req.Path + "\n")
		b.WriteString(errorStyle.Render("Error: "+req.Error) + "\n\n")
		b.WriteString("[r]etry  [s]kip  [a]bort\n")
		return dialogStyle.Render(b.String()) + "\n"
	case statusDone:
		return m.doneText()
	default:
		return ""
	}
}

func (m model) doneText() string {
	var b strings.Builder
	switch {
	case m.failure != nil && m.failure.Aborted:
		b.WriteString(warnStyle.Render("Cleaning stopped: "+m.failure.Message) + "\n")
	case m.failure != nil:
		b.WriteString(errorStyle.Render("Error: "+m.failure.Message) + "\n")
		b.WriteString("See the log file for details.\n")
	case m.result != nil:
		mode := ""
		if m.result.DryRun {
			mode = " (dry-run; no files removed)"
		}
		b.WriteString(headerStyle.Render("Operation Complete") + "\n")
		b.WriteString(fmt.Sprintf("Successfully deleted %d files from %s%s!\n", m.result.DeletedCount, m.result.TargetDir, mode))
		b.WriteString(fmt.Sprintf("Removed directories: %d  Display files: %d  Skipped: %d  Freed: %s\n",
			m.result.RemovedDirs, m.result.DisplayFilesRemoved, m.result.Skipped,
			sizeStyle.Render(utils.HumanizeBytes(m.result.FreedBytes))))
	}
	b.WriteString("Press any key to quit.\n")
	return b.String()
}

// Custom list rendering - no bubbles/list component
func (m *model) renderList() string {
	var b strings.Builder
	headerLines := strings.Count(m.headerText(), "\n") + 1
	visibleHeight := m.termH - headerLines - 1
	if visibleHeight < 3 {
		visibleHeight = len(m.items)
	}

	start := m.scrollOffset
	end := start + visibleHeight
	if end > len(m.items) {
		end = len(m.items)
	}

	for i := start; i < end; i++ {
		it := m.items[i]

		var prefix string
		if i == m.cursor {
			prefix = cursorStyle.Render(">") + " "
		} else {
			prefix = "  "
		}

		var mark string
		if it.sel {
			mark = markSelectedStyle.Render("[x]")
		} else {
			mark = markStyle.Render("[ ]")
		}

		name := it.ext
		if it.sel {
			name = pathStyleSelected.Render(name)
		}
		if it.display {
			name += dimStyle.Render(" (display)")
		}
		b.WriteString(prefix + mark + " " + name + "\n")
	}

	return b.String()
}

func (m *model) adjustScroll() {
	headerLines := strings.Count(m.headerText(), "\n") + 1
	visibleHeight := m.termH - headerLines - 1
	if visibleHeight < 3 {
		return
	}

	if m.cursor >= m.scrollOffset+visibleHeight {
		m.scrollOffset = m.cursor - visibleHeight + 1
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
}

func (m *model) toggleSelected() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	m.items[m.cursor].sel = !m.items[m.cursor].sel
}

// toggleAll selects every template extension, or clears the selection when
// all of them are already selected.
func (m *model) toggleAll() {
	all := true
	for _, it := range m.items {
		if !it.display && !it.sel {
			all = false
			break
		}
	}
	for i := range m.items {
		if all {
			m.items[i].sel = false
		} else if !m.items[i].display {
			m.items[i].sel = true
		}
	}
}

func (m *model) selectedCount() int {
	c := 0
	for _, it := range m.items {
		if it.sel {
			c++
		}
	}
	return c
}

func (m *model) selectedExtensions() []string {
	var out []string
	for _, it := range m.items {
		if it.sel {
			out = append(out, it.ext)
		}
	}
	return out
}

func (m *model) headerText() string {
	target := m.cfg.TargetDir()
	if target == "" {
		target = dimStyle.Render("(none)")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Embroidery Template Cleaner") + "\n")
	if m.editing {
		b.WriteString(m.target.View() + "\n")
	} else {
		b.WriteString("Target directory: " + target + "\n")
	}
	b.WriteString(fmt.Sprintf("Extensions to delete: %d selected  | Keys: ? help, ↑↓ move, space select, a all, t target, d/enter clean, q quit\n\n", m.selectedCount()))
	return b.String()
}

func (m *model) helpText() string {
	lines := []string{
		"Help (press ? to close):",
		"  ↑/k, ↓/j  Move cursor",
		"  space     Toggle extension",
		"  a         Toggle all template extensions",
		"  t         Edit target directory (enter to apply, esc to discard)",
		"  d/enter   Start cleaning",
		"  q/esc     Quit (cancels a running clean)",
	}
	return lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder()).Render(strings.Join(lines, "\n"))
}

var (
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))            // purple
	markStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))           // gray
	markSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true) // green
	sizeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))            // cyan
	pathStyleSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))            // green
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))           // dark gray
	warnStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true) // orange
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))           // red
	headerStyle       = lipgloss.NewStyle().Bold(true)
	dialogStyle       = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99"))
)
