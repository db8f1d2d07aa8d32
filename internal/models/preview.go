package models

// PreviewRow is one sampled record from the query backend.
type PreviewRow map[string]interface{}

// PreviewResult is the bounded sample returned for a validated criteria set.
type PreviewResult struct {
	TotalRows     int          `json:"total_rows"`
	PreviewRows   []PreviewRow `json:"preview_rows"`
	ColumnNames   []string     `json:"column_names"`
	ExecutionTime string       `json:"execution_time"`
}
