// Package common contains shared constants and sentinel errors used across
// the content admin server.
package common

// RequestIDHeaderName is the HTTP header used to carry and echo the
// per-request correlation id.
const RequestIDHeaderName = "X-Request-Id"
