// Package service implements business logic for the nodegraph server.
//
// NodeService sits between the HTTP handlers and the repository. It owns
// request validation, snapshot import/export via the codec package, and the
// node counters exported to Prometheus.
//
// # Validation
//
// Save payloads are checked against their validate tags before the store is
// touched. The store repeats the title check, so a blank title never reaches
// a write even when the service layer is bypassed.
//
// # Errors
//
// Every error returned is an *apperr.AppError. Handlers map its type to an
// HTTP status without inspecting messages.
package service
