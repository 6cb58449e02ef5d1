package model

// Bundle is the aggregate of every plugin snapshot taken by one backup
type Bundle struct {
	Timestamp string              `json:"timestamp"`
	Config    *Config             `json:"config"`
	Plugins   map[string]Snapshot `json:"plugins"`
}

// RestoreReport aggregates the replay of one bundle
type RestoreReport struct {
	BackupFile string   `json:"backup_file"`
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// ToMap converts the report to an event payload
func (r RestoreReport) ToMap() map[string]interface{} {
	errs := make([]string, len(r.Errors))
	copy(errs, r.Errors)
	return map[string]interface{}{
		"backup_file": r.BackupFile,
		"total":       r.Total,
		"successful":  r.Successful,
		"failed":      r.Failed,
		"errors":      errs,
	}
}
