// Package tracing wraps OpenTelemetry so engine packages start and end spans
// without importing the upstream API. Until Init is called spans are no-ops.
package tracing
