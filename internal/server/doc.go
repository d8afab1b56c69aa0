// Package server provides HTTP routing, middleware, and the REST handlers for the administrative shell.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] executes in registration order: the first middleware added wraps outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # Resource Handlers
//
// Each resource gets one [Handler] implementation owning all of its routes:
//
//   - [ServersHandler] manages server configurations
//   - [AccountsHandler] manages account credentials (passwords are accepted on
//     input but never echoed back)
//   - [JobsHandler] manages jobs plus the run control endpoints: start queues a
//     run on the worker, pause/resume/cancel relay cooperative requests to it,
//     and logs lists the persisted run log
//   - [WorkerHandler] reports whether the single worker is idle, running, or
//     holding a queued job
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
