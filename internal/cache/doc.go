// Package cache implements the in-process content cache behind any-cache.
// A Lookup normalises a URL into a Key, answers from the ResultStore
// when possible, and otherwise schedules exactly one fetch per Key. The fetch
// races the optional DiskStore against the network Fetcher; the first success
// is delivered to the caller's Reply, stored in memory, shadowed to disk and
// fanned out to every waiter that joined while the Key was in flight.
// Failures are only logged: a Reply never carries errors, callers see either
// the placeholder, the resolved payload, or nothing.
package cache
