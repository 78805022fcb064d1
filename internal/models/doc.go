// Package models defines domain entities and persistence interfaces for sldlx.
//
// The package contains two categories of types:
//
// 1. Worker DTOs: values copied out of the batch downloader on every sample
//   - [Track] : One unit of work with its worker-side outcome
//   - [Transfer] : A live transfer snapshot (bytes so far, file size, peer)
//   - [Source] : The peer and remote file a track was taken from
//
// 2. Persistent Entities: Database-backed records of finished sessions
//   - [SessionRecord] : One downloader run with its final counters
//   - [SessionItem] : The final presentation state of one tracked item
//
// [Status] is the closed set of presentation states shown to the user; [TrackState] and [FailureReason]
// mirror what the worker reports.
//
// All persistent entities implement the Model interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
