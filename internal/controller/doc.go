// Package controller owns the flow state machine: it sequences the
// five pipeline stages, records per-stage results on the flow record,
// persists and caches status, emits execution metrics, and escalates
// unrecoverable stage failures to the incident reporter.
//
// Submission is asynchronous: Submit returns a flow ID immediately and
// the pipeline runs in its own goroutine. Failure is observable only
// through the persisted record or the status cache; nothing is ever
// thrown back at the submitter.
package controller
