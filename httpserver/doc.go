// Package httpserver provides the shared HTTP serving shell for the key
// server binary: request logging, health and drain endpoints, optional
// pprof, and graceful shutdown. API handlers plug in through the
// RouteRegistrar interface.
package httpserver
