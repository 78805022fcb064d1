// Package worker defines the boundary between sldlx and the batch downloader it observes.
//
// A [Downloader] runs the whole batch inside [Downloader.Run] and publishes its progress only
// through three read-only accessors: the ordered track list, the set of tracks being searched and
// the in-flight transfers. Every accessor returns a copy taken under the downloader's own lock, so
// callers may hold on to the result while the downloader keeps mutating its state.
//
// [LiveState] is the lock-protected container implementations embed to satisfy those accessors.
// [Simulator] is an in-process downloader that fakes extraction, searching and transfers with
// bounded concurrency; it backs the demo mode of the CLI and TUI and the engine tests.
package worker
