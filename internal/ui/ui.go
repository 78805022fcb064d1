package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	InputView ViewState = iota
	DownloadsView
	SettingsView
)

// Engine is the part of [tasks.Reconciler] the TUI drives.
type Engine interface {
	Start(input string) error
	Stop() error
	Retry(trackID string) error
	Snapshot() tasks.Snapshot
	Updates() <-chan tasks.Snapshot
	Config() *shared.Config
	SetConfig(cfg *shared.Config)
}

// Model represents the TUI application state.
type Model struct {
	view       ViewState
	returnTo   ViewState
	engine     Engine
	configPath string
	width      int
	height     int
	input      textinput.Model
	items      list.Model
	bar        progress.Model
	spinner    spinner.Model
	settings   settingsForm
	snapshot   tasks.Snapshot
	notice     string
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model. Settings edits are written to configPath when it is set.
func NewModel(engine Engine, configPath string) *Model {
	in := textinput.New()
	in.Placeholder = "https://open.spotify.com/playlist/..."
	in.Prompt = "› "
	in.CharLimit = 2048
	in.Width = 60
	in.Focus()

	return &Model{
		view:       InputView,
		engine:     engine,
		configPath: configPath,
		width:      80,
		height:     24,
		input:      in,
		items:      newDownloadList(),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.active)),
		snapshot:   engine.Snapshot(),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init starts listening for engine snapshots.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForSnapshot())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.items.SetSize(msg.Width-4, max(msg.Height-10, 4))
		m.bar.Width = min(max(msg.Width-24, 10), 60)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.forceQuit) {
			return m, tea.Quit
		}
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case DownloadsView:
			return m.handleDownloadKeys(msg)
		case SettingsView:
			return m.handleSettingsKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		if bar, ok := model.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, m.updateFocused(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSnapshot:
		return m, tea.Batch(m.applySnapshot(msg.data.(tasks.Snapshot)), m.waitForSnapshot())

	case MsgStarted:
		m.err = msgErr(msg)
		if m.err == nil {
			m.view = DownloadsView
			m.input.Blur()
			m.items.Select(0)
			return m, nil
		}
		if errors.Is(m.err, shared.ErrMissingCredentials) {
			m.openSettings(InputView)
		}
		return m, nil

	case MsgStopped:
		m.err = msgErr(msg)
		return m, nil

	case MsgRetried:
		m.err = msgErr(msg)
		if m.err == nil {
			data := msg.data.(struct {
				trackID string
				err     error
			})
			m.notice = "Retrying " + data.trackID
		}
		return m, nil

	case MsgSettingsSaved:
		if err := msgErr(msg); err != nil {
			m.settings.err = err
			return m, nil
		}
		m.notice = "Settings saved"
		m.err = nil
		m.closeSettings()
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	case DownloadsView:
		return m.renderDownloads()
	case SettingsView:
		return m.renderSettings()
	default:
		return ""
	}
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.start):
		m.notice = ""
		return m, m.start(m.input.Value())
	case key.Matches(msg, m.keys.settings):
		m.openSettings(InputView)
		return m, nil
	case key.Matches(msg, m.keys.downloads):
		if len(m.snapshot.Items) > 0 {
			m.view = DownloadsView
			m.input.Blur()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleDownloadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.stop):
		return m, m.stop()
	case key.Matches(msg, m.keys.retry):
		if it, ok := m.items.SelectedItem().(downloadItem); ok {
			if it.view.Status != models.StatusFailed {
				m.err = fmt.Errorf("%w: %s is %s", shared.ErrRetryNotAllowed, it.view.Name, it.view.Status)
				return m, nil
			}
			return m, m.retry(it.view.TrackID)
		}
		return m, nil
	case key.Matches(msg, m.keys.newRun):
		m.view = InputView
		m.err = nil
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.openSet):
		m.openSettings(DownloadsView)
		return m, nil
	}

	var cmd tea.Cmd
	m.items, cmd = m.items.Update(msg)
	return m, cmd
}

func (m *Model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.closeSettings()
		return m, nil
	case key.Matches(msg, m.keys.save):
		return m, m.saveSettings(m.settings.config())
	case key.Matches(msg, m.keys.next):
		m.settings.move(1)
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.settings.move(-1)
		return m, nil
	case msg.Type == tea.KeyLeft:
		m.settings.cycle(-1)
	case msg.Type == tea.KeyRight:
		m.settings.cycle(1)
	}
	return m, m.settings.update(msg)
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.view {
	case InputView:
		m.input, cmd = m.input.Update(msg)
	case DownloadsView:
		m.items, cmd = m.items.Update(msg)
	case SettingsView:
		cmd = m.settings.update(msg)
	}
	return cmd
}

func (m *Model) openSettings(from ViewState) {
	m.returnTo = from
	m.settings = newSettingsForm(m.engine.Config())
	m.view = SettingsView
	m.input.Blur()
}

func (m *Model) closeSettings() {
	m.view = m.returnTo
	if m.view == InputView {
		m.input.Focus()
	}
}

func (m *Model) applySnapshot(snap tasks.Snapshot) tea.Cmd {
	m.snapshot = snap
	cmd := m.items.SetItems(toListItems(snap.Items))
	return tea.Batch(cmd, m.bar.SetPercent(snap.Metrics.Progress/100))
}

func (m *Model) start(input string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return startedMsg(engine.Start(input))
	}
}

func (m *Model) stop() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return stoppedMsg(engine.Stop())
	}
}

func (m *Model) retry(trackID string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return retriedMsg(trackID, engine.Retry(trackID))
	}
}

func (m *Model) saveSettings(cfg *shared.Config) tea.Cmd {
	engine := m.engine
	path := m.configPath
	return func() tea.Msg {
		if err := cfg.Validate(); err != nil {
			return settingsSavedMsg(cfg, err)
		}
		if path != "" {
			if err := cfg.Save(path); err != nil {
				return settingsSavedMsg(cfg, err)
			}
		}
		engine.SetConfig(cfg)
		return settingsSavedMsg(cfg, nil)
	}
}

func (m *Model) waitForSnapshot() tea.Cmd {
	updates := m.engine.Updates()
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m *Model) renderInput() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("sldlx"))
	b.WriteString("\nPaste a playlist, album or track URL:\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.inputHelp()))
	return b.String()
}

func (m *Model) renderDownloads() string {
	var b strings.Builder
	b.WriteString(m.items.View())
	b.WriteString("\n")
	b.WriteString(m.renderMetrics())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.downloadsHelp()))
	return b.String()
}

func (m *Model) renderSettings() string {
	return fmt.Sprintf("%s\n%s\n%s",
		styles.title.Render("Settings"),
		m.settings.view(),
		m.help.ShortHelpView(m.keys.settingsHelp()))
}

func (m *Model) renderMetrics() string {
	metrics := m.snapshot.Metrics
	counts := fmt.Sprintf("%d/%d done", metrics.Completed, metrics.Total)
	if metrics.Failed > 0 {
		counts += styles.err.Render(fmt.Sprintf(" • %d failed", metrics.Failed))
	}
	return fmt.Sprintf("%s  %s", m.bar.View(), counts)
}

func (m *Model) renderStatusLine() string {
	var parts []string

	status := m.snapshot.Status
	if status == "" {
		status = tasks.StatusReady
	}
	switch {
	case m.snapshot.Active:
		parts = append(parts, m.spinner.View()+" "+status)
	case strings.HasPrefix(status, "Error"):
		parts = append(parts, styles.err.Render(status))
	case strings.HasPrefix(status, "Done"):
		parts = append(parts, styles.ok.Render(status))
	default:
		parts = append(parts, status)
	}

	if m.err != nil && m.err.Error() != status {
		parts = append(parts, styles.err.Render(m.err.Error()))
	}
	if m.notice != "" {
		parts = append(parts, styles.help.Render(m.notice))
	}
	return strings.Join(parts, "\n")
}
