package database

import "time"

// SystemSetting is one row of system_settings
type SystemSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `json:"updated_by"`
}

// AnalysisType is why a symbol was analyzed
type AnalysisType string

const (
	AnalysisScan   AnalysisType = "scan"
	AnalysisManual AnalysisType = "manual"
	AnalysisExit   AnalysisType = "exit"
)

// Analysis is one recorded symbol analysis
type Analysis struct {
	ID             int64                  `json:"id"`
	Symbol         string                 `json:"symbol"`
	Type           AnalysisType           `json:"analysis_type"`
	Recommendation string                 `json:"recommendation"`
	Confidence     float64                `json:"confidence"`
	Reasoning      string                 `json:"reasoning"`
	Snapshot       map[string]interface{} `json:"snapshot,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
