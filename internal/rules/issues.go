package rules

// IssueCount is the number of unresolved issues raised by a rule, in total
// and for the projects with the most issues.
type IssueCount struct {
	Total    int             `json:"total"`
	Projects []ProjectIssues `json:"projects,omitempty"`
}

// ProjectIssues is the issue count of one project.
type ProjectIssues struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}
