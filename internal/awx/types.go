package awx

// ListResponse is the paginated envelope AWX wraps list results in
type ListResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// Project is the subset of an AWX project consumed by the inventory
type Project struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	LocalPath string          `json:"local_path"`
	Status    string          `json:"status"`
	Related   ProjectRelated  `json:"related"`
	Summary   *ProjectSummary `json:"summary_fields,omitempty"`
}

// ProjectRelated holds the related links of a project.
// CurrentUpdate is only present while an SCM update is running.
type ProjectRelated struct {
	CurrentUpdate string `json:"current_update,omitempty"`
}

// ProjectSummary holds the summary fields used for logging
type ProjectSummary struct {
	CurrentUpdate *UpdateSummary `json:"current_update,omitempty"`
	LastUpdate    *UpdateSummary `json:"last_update,omitempty"`
}

// UpdateSummary describes one project update job
type UpdateSummary struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

// Updating reports whether an SCM update of the project is in flight.
func (p *Project) Updating() bool {
	return p.Related.CurrentUpdate != ""
}
