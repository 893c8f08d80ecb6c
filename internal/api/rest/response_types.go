package rest

import (
	"github.com/accessforge/erp-access-advisor/internal/domain/sod"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the structured application error
type ErrorBody struct {
	Type      string                 `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// ConflictCheckResponse lists every SoD rule an ad hoc role set triggers
type ConflictCheckResponse struct {
	Conflicts []sod.Rule `json:"conflicts"`
}

// PatternStateResponse reports a pattern's lifecycle state and confidence
type PatternStateResponse struct {
	AlgorithmID string  `json:"algorithm_id"`
	PatternKey  string  `json:"pattern_key"`
	State       string  `json:"state"`
	Confidence  float64 `json:"confidence"`

	// Actionable mirrors the state: only active patterns may be surfaced
	// as provisioning actions.
	Actionable bool `json:"actionable"`
}

// HealthResponse reports service liveness and snapshot readiness
type HealthResponse struct {
	Status        string `json:"status"`
	SnapshotReady bool   `json:"snapshot_ready"`
	IndexVersion  string `json:"index_version,omitempty"`
	MatrixVersion string `json:"matrix_version,omitempty"`
	RolesIndexed  int    `json:"roles_indexed"`
	ConflictRules int    `json:"conflict_rules"`
}
