package ui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sldlx/internal/shared"
)

const (
	fieldUsername = iota
	fieldPassword
	fieldPath
	fieldFormat
	fieldBitrate
	fieldCount
)

var fieldLabels = [fieldCount]string{"Username", "Password", "Folder", "Format", "Bitrate"}

// settingsForm edits the subset of [shared.Config] a user changes between runs.
type settingsForm struct {
	inputs  [fieldPath + 1]textinput.Model
	format  int
	bitrate int
	focus   int
	base    shared.Config
	err     error
}

func newSettingsForm(cfg *shared.Config) settingsForm {
	f := settingsForm{base: *cfg}

	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		f.inputs[i] = in
	}
	f.inputs[fieldUsername].SetValue(cfg.Credentials.Soulseek.Username)
	f.inputs[fieldPassword].SetValue(cfg.Credentials.Soulseek.Password)
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldPassword].EchoCharacter = '•'
	f.inputs[fieldPath].SetValue(cfg.Download.Path)

	f.format = max(0, slices.Index(shared.AvailableFormats, strings.ToUpper(cfg.Download.Format)))
	f.bitrate = max(0, slices.Index(shared.AvailableBitrates, cfg.Download.Bitrate))

	f.inputs[fieldUsername].Focus()
	return f
}

func (f *settingsForm) move(delta int) {
	if f.focus <= fieldPath {
		f.inputs[f.focus].Blur()
	}
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	if f.focus <= fieldPath {
		f.inputs[f.focus].Focus()
	}
}

func (f *settingsForm) cycle(delta int) {
	switch f.focus {
	case fieldFormat:
		n := len(shared.AvailableFormats)
		f.format = (f.format + delta + n) % n
	case fieldBitrate:
		n := len(shared.AvailableBitrates)
		f.bitrate = (f.bitrate + delta + n) % n
	}
}

func (f *settingsForm) update(msg tea.Msg) tea.Cmd {
	if f.focus > fieldPath {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// config returns the edited settings layered over the config the form was opened with.
func (f settingsForm) config() *shared.Config {
	cfg := f.base
	cfg.Credentials.Soulseek.Username = strings.TrimSpace(f.inputs[fieldUsername].Value())
	cfg.Credentials.Soulseek.Password = f.inputs[fieldPassword].Value()
	cfg.Download.Path = strings.TrimSpace(f.inputs[fieldPath].Value())
	cfg.Download.Format = shared.AvailableFormats[f.format]
	cfg.Download.Bitrate = shared.AvailableBitrates[f.bitrate]
	return &cfg
}

func (f settingsForm) view() string {
	var b strings.Builder
	for i := range fieldCount {
		label := styles.label
		if i == f.focus {
			label = styles.focus
		}

		var value string
		switch i {
		case fieldFormat:
			value = "‹ " + shared.AvailableFormats[f.format] + " ›"
		case fieldBitrate:
			value = "‹ " + strconv.Itoa(shared.AvailableBitrates[f.bitrate]) + " kbps ›"
		default:
			value = f.inputs[i].View()
		}
		fmt.Fprintf(&b, "%s %s\n", label.Render(fieldLabels[i]), value)
	}
	if f.err != nil {
		fmt.Fprintf(&b, "\n%s\n", styles.err.Render(f.err.Error()))
	}
	return b.String()
}
