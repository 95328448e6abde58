// Package dispatch serves the uniform cache request/response contract.
//
// A caller sends a Request naming one of eight actions (set, get, delete,
// invalidate, stats, clear, compress, list). The Dispatcher validates it
// before touching the store, runs it against a cache.Store, and answers with
// a Response carrying success, an optional error or warning, and an
// action-specific payload. A get or delete of an absent key is a soft miss:
// success is false and error is empty.
//
// Every request is traced, counted and logged through observe.Middleware.
package dispatch
