package rest

// RecommendRequest asks for role sets covering the required menu items
type RecommendRequest struct {
	RequiredMenuItems []string `json:"required_menu_items" validate:"required,min=1,dive,required"`
	TopK              int      `json:"top_k" validate:"omitempty,min=1,max=10"`
	PatternKey        string   `json:"pattern_key" validate:"omitempty,max=256"`
}

// ConflictCheckRequest asks whether an ad hoc role set triggers SoD rules
type ConflictCheckRequest struct {
	Roles []string `json:"roles" validate:"required,min=2,dive,required"`
}

// RollbackRequest reports that a past recommendation was wrong
type RollbackRequest struct {
	AlgorithmID string `json:"algorithm_id" validate:"required,max=128"`
	PatternKey  string `json:"pattern_key" validate:"required,max=256"`
	Category    string `json:"category" validate:"required,oneof=algorithm_error data_quality business_exception seasonal user_preference"`
}

// ApprovalRequest sets the reviewer approval flag for a pattern
type ApprovalRequest struct {
	Approved bool `json:"approved"`
}

// ObservationReportRequest stores externally measured observation statistics
type ObservationReportRequest struct {
	EvaluatedCoverage      float64 `json:"evaluated_coverage" validate:"min=0,max=1"`
	Accuracy               float64 `json:"accuracy" validate:"min=0,max=1"`
	CriticalFalsePositives int     `json:"critical_false_positives" validate:"min=0"`
}
