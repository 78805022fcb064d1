// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [InputView] : Paste a URL and start a batch download
//  2. [DownloadsView] : Watch per-track status, stop the run, retry failed tracks
//  3. [SettingsView] : Edit credentials, destination folder, format and bitrate
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Snapshots flow from the reconciler's update channel; the model never reads downloader state directly.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
