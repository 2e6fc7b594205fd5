// Package approval aggregates approver actions recorded on an approval node
// into a node outcome. It is pure: the executor supplies the resolved
// approver slots and the records of the current node visit.
package approval
