// Package flow defines the flow record data model shared by the
// orchestration engine: stages, stage results, flow records, and the
// durable store interface. A flow record is owned and mutated only by
// the controller; everything else reads copies.
package flow
