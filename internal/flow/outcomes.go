package flow

// ConsultationStatus is the per-advisor outcome status.
type ConsultationStatus string

const (
	ConsultSuccess ConsultationStatus = "success"
	ConsultError   ConsultationStatus = "error"
	ConsultTimeout ConsultationStatus = "timeout"
)

// ConsultationOutcome is the result of consulting a single advisory
// service. An errored or timed-out advisor produces an outcome with a
// nil estimate; it never fails the consultation stage.
type ConsultationOutcome struct {
	AdvisorID       string             `json:"advisor_id"`
	Status          ConsultationStatus `json:"status"`
	Recommendations []string           `json:"recommendations,omitempty"`
	EstimateHours   *float64           `json:"estimate_hours,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// QualityVerdict is the quality gate's scoring of executor output.
// The verdict is deterministic: re-running the gate on identical input
// yields an identical verdict.
type QualityVerdict struct {
	Passed         bool                   `json:"passed"`
	Score          int                    `json:"score"`
	Violations     []string               `json:"violations"`
	DetailedChecks map[string]CheckDetail `json:"detailed_checks"`
}

// CheckDetail holds the per-ruleset breakdown inside a QualityVerdict.
type CheckDetail struct {
	Issues   []string `json:"issues"`
	Subscore int      `json:"subscore"`
}
