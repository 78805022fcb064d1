package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSnapshot MsgKind = iota
	MsgStarted
	MsgStopped
	MsgRetried
	MsgSettingsSaved
)

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(snap tasks.Snapshot) Msg {
	return Msg{kind: MsgSnapshot, data: snap}
}

// startedMsg is the constructor for [MsgStarted]
func startedMsg(err error) Msg {
	return Msg{kind: MsgStarted, data: err}
}

// stoppedMsg is the constructor for [MsgStopped]
func stoppedMsg(err error) Msg {
	return Msg{kind: MsgStopped, data: err}
}

// retriedMsg is the constructor for [MsgRetried]
func retriedMsg(trackID string, err error) Msg {
	return Msg{
		kind: MsgRetried,
		data: struct {
			trackID string
			err     error
		}{trackID, err},
	}
}

// settingsSavedMsg is the constructor for [MsgSettingsSaved]
func settingsSavedMsg(cfg *shared.Config, err error) Msg {
	return Msg{
		kind: MsgSettingsSaved,
		data: struct {
			cfg *shared.Config
			err error
		}{cfg, err},
	}
}

// msgErr extracts the error carried by a message, if any.
func msgErr(msg Msg) error {
	switch data := msg.data.(type) {
	case error:
		return data
	case struct {
		trackID string
		err     error
	}:
		return data.err
	case struct {
		cfg *shared.Config
		err error
	}:
		return data.err
	default:
		return nil
	}
}
