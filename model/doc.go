// Package model contains the definition-side representation of approval
// workflows: versioned definitions, the documents they route and the forms
// bound to their nodes.
//
// Graph structure lives in the `graph` sub-package, typed instance variables
// in `state` and structured engine errors in `types`.
package model
