// Package idgen generates instance identifiers. It lives under `internal`
// because callers should treat identifiers as opaque strings.
package idgen
