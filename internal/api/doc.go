// Package api implements the HTTP handlers of the gateway. It maps
// routes onto the wikipedia facade, translates facade errors into
// status codes and structured error bodies, and records per-request
// metrics.
package api
