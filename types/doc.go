// Package types holds the lowest-level shared types of the framework.
//
// It has no internal dependencies, so any package (reasoning, hitl, sandbox,
// agent) can import it without creating cycles.
package types
