package models

// VesselFailure records why a single vessel could not be updated during a
// batch run. Failures never abort the batch.
type VesselFailure struct {
	VesselName string `json:"vesselName"`
	Reason     string `json:"reason"`
}

// SyncMissingReport is the result of a create-missing run.
type SyncMissingReport struct {
	Created        []string `json:"created"`
	AlreadyExisted int      `json:"alreadyExisted"`
	TotalActive    int      `json:"totalActive"`
}

// SyncHistoryReport is the result of a backfill-from-history run.
type SyncHistoryReport struct {
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
}

// UpdateReport is the result of a refresh (throttled poll) run. Every active
// vessel lands in exactly one of the four lists.
type UpdateReport struct {
	TotalActiveVessels int             `json:"totalActiveVessels"`
	Updated            []string        `json:"updated"`
	Skipped            []string        `json:"skipped"`
	Failed             []VesselFailure `json:"failed"`
	MissingIdentifiers []string        `json:"missingIdentifiers"`
}

// BalanceReport estimates the credit cost of the next refresh run without
// mutating any state.
type BalanceReport struct {
	EstimatedCost             int `json:"estimatedCost"`
	VesselsToUpdate           int `json:"vesselsToUpdate"`
	VesselsWithIdentifiers    int `json:"vesselsWithIdentifiers"`
	VesselsWithoutIdentifiers int `json:"vesselsWithoutIdentifiers"`
	VesselsSkipped            int `json:"vesselsSkipped"`
	TotalActiveVessels        int `json:"totalActiveVessels"`
}
