// Package server exposes a read-only HTTP view of the running download session.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// The [BasicRouter] implementation uses [http.ServeMux] internally with method patterns.
//
// # Status Handler
//
// [StatusHandler] renders the reconciler's latest snapshot:
//
//	GET /status  ordered items, metrics, status line and active flag
//	GET /health  liveness probe
//
// Handlers never mutate the session. Starting, stopping and retrying stay with the CLI and TUI.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
