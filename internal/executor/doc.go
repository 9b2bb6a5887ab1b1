// Package executor implements the execution stage: a deterministic,
// keyword-based selector that routes a task to exactly one of four
// specialized executors and invokes it.
package executor
