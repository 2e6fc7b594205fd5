// Package executor drives workflow instances through their definition graph.
//
// Every operation reads the instance, computes the next state against the
// definition snapshot it carries and writes it back with a version
// compare-and-swap. A conflicting write is retried from a fresh read. Document
// status updates and workflow events are applied only after the write commits.
package executor
