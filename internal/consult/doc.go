// Package consult implements the consultation stage: a parallel
// fan-out to a fixed set of advisory services with per-advisor
// timeouts and a merged, partial-failure-tolerant result.
package consult
