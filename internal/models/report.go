package models

// ValidationReport summarizes data quality for one validated batch.
//
// TotalRows and MissingByColumn are filled by the validation stage; the
// pipeline folds in GapsDetected and OutliersDetected from the later stages
// before the report is attached to a write. The report is read-only after the
// pipeline assembles it and is not persisted independently.
type ValidationReport struct {
	TotalRows        int            `json:"total_rows"`
	ValidRows        int            `json:"valid_rows"`
	OutliersDetected int            `json:"outliers_detected"`
	GapsDetected     int            `json:"gaps_detected"`
	MissingByColumn  map[string]int `json:"missing_by_column"`
	InconsistentRows int            `json:"inconsistent_rows"`
}

// MissingTotal returns the total count of missing values across all columns.
func (r *ValidationReport) MissingTotal() int {
	total := 0
	for _, n := range r.MissingByColumn {
		total += n
	}
	return total
}

// Clean reports whether the batch carried no anomalies of any kind.
func (r *ValidationReport) Clean() bool {
	return r.OutliersDetected == 0 &&
		r.GapsDetected == 0 &&
		r.InconsistentRows == 0 &&
		r.MissingTotal() == 0
}
