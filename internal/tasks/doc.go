// Package tasks is the synchronization engine between sldlx and a batch downloader.
//
// # Components
//
//   - [Controller] starts, cancels and awaits a single [worker.Downloader] run in a detached
//     goroutine and captures its failure as data.
//   - [Item] is the per-track presentation state machine. [Item.Reconcile] applies one sample
//     of worker state with a fixed priority order so terminal states never flicker back.
//   - [Reconciler] samples the controller on a fixed cadence, feeds every [Item], recomputes
//     [Metrics] and publishes a [Snapshot].
//
// # Observation
//
// The downloader never calls back into the engine. Each tick the reconciler reads one copy of
// the track list, the searching set and the in-flight transfers, so every item in a pass sees
// the same sample. Staleness between ticks is expected.
//
// # Updates
//
// Snapshots are published on [Reconciler.Updates] without blocking. Consumers that fall behind
// only ever see the most recent snapshot; [Reconciler.Snapshot] can be read at any time.
package tasks
