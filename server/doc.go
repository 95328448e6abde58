// Package server exposes a cache dispatcher over HTTP.
//
// Routes:
//
//	POST   /v1/cache                 any dispatch.Request as JSON
//	GET    /v1/cache/stats           store statistics
//	GET    /v1/cache/entries         entry metadata, sorted by key
//	GET    /v1/cache/entries/{key}   cached value
//	DELETE /v1/cache/entries/{key}   remove one entry
//	GET    /healthz, /readyz, /health
//	GET    /metrics                  Prometheus exposition
//
// Cache responses always use the dispatch.Response envelope. A soft miss is
// 200 with success false; a rejected request is 400; a store failure is 500.
package server
