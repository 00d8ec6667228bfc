package grades

import (
	"encoding/json"
	"time"
)

type courseResponse struct {
	CourseID      string          `json:"course_id"`
	GradingPolicy json.RawMessage `json:"grading_policy"`
	Start         *time.Time      `json:"start"`
	End           *time.Time      `json:"end"`
}

type progressResponse struct {
	ProgressSummary json.RawMessage `json:"progress_summary"`
}

type gradeResponse struct {
	GradeSummary json.RawMessage `json:"grade_summary"`
}

type proformaRequest struct {
	GradeSummary  json.RawMessage `json:"grade_summary"`
	GradingPolicy json.RawMessage `json:"grading_policy"`
}

type proformaResponse struct {
	ProformaGrade *float64 `json:"proforma_grade"`
}
