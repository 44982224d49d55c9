// Package jira talks to a Jira Server REST API (v2) with basic auth.
package jira

// Issue is a read-model of a Jira issue, flattened from the REST response.
type Issue struct {
	Key           string `json:"key"`
	Summary       string `json:"summary"`
	Status        string `json:"status"`
	Assignee      string `json:"assignee"`
	Issuetype     string `json:"issuetype"`
	Description   string `json:"description,omitempty"`
	URL           string `json:"url"`
	Created       string `json:"created,omitempty"`
	CustomEndDate string `json:"custom_end_date,omitempty"`
}

// Filter is a saved JQL filter.
type Filter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	JQL  string `json:"jql"`
	URL  string `json:"url"`
}

// ProjectMeta maps each issue type of a project to its workflow statuses.
type ProjectMeta struct {
	ProjectKey        string              `json:"project_key"`
	IssuetypeStatuses map[string][]string `json:"issuetype_statuses"`
}

// TransitionResult reports a completed status transition.
type TransitionResult struct {
	Key            string `json:"key"`
	Summary        string `json:"summary"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	DueDate        string `json:"due_date,omitempty"`
	URL            string `json:"url"`
}
