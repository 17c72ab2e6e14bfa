// Package server hosts the Fiber HTTP front end of the cache: the request-ID
// middleware, the origin alias registry built from config, and the handlers
// that turn a cache lookup into an HTTP response. Each request owns one
// cache.Reply; the handler waits a bounded time for the resolved payload and
// falls back to the placeholder when nothing better arrived. Diagnostics
// routes live in the routes subpackage so that this package stays free of
// metrics wiring; keep exports narrow and accept explicit dependencies.
package server
