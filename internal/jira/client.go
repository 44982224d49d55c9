package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devhatch/wikigen/internal/errors"
)

// searchFields is the field list requested on every issue read.
const searchFields = "key,summary,status,assignee,description,issuetype,customfield_10833,created"

// customEndDateField holds the end date for BNFDEV issues. Other projects
// use the standard duedate field.
const customEndDateField = "customfield_10833"

// Client calls the Jira Server REST API v2 with basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a Client for the Jira instance at baseURL.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// BrowseURL returns the human-facing link for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// SearchIssues runs a JQL query and returns the matching issues.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("fields", searchFields)

	var payload struct {
		Total  int               `json:"total"`
		Issues []json.RawMessage `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/search?"+q.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	log.Printf("jira search: jql=%q total=%d", jql, payload.Total)

	issues := make([]Issue, 0, len(payload.Issues))
	for _, raw := range payload.Issues {
		issue, err := c.parseIssue(raw)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// GetIssueByKey fetches a single issue.
func (c *Client) GetIssueByKey(ctx context.Context, key string) (*Issue, error) {
	q := url.Values{}
	q.Set("fields", searchFields)

	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key)+"?"+q.Encode(), nil, &raw)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound("jira issue", key)
		}
		return nil, err
	}
	issue, err := c.parseIssue(raw)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetProjectMeta lists a project's issue types with their workflow statuses.
func (c *Client) GetProjectMeta(ctx context.Context, projectKey string) (*ProjectMeta, error) {
	var payload []struct {
		Name     string `json:"name"`
		Statuses []struct {
			Name string `json:"name"`
		} `json:"statuses"`
	}
	path := "/rest/api/2/project/" + url.PathEscape(projectKey) + "/statuses"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound("jira project", projectKey)
		}
		return nil, err
	}

	meta := &ProjectMeta{
		ProjectKey:        projectKey,
		IssuetypeStatuses: make(map[string][]string, len(payload)),
	}
	for _, item := range payload {
		statuses := make([]string, 0, len(item.Statuses))
		for _, s := range item.Statuses {
			statuses = append(statuses, s.Name)
		}
		meta.IssuetypeStatuses[item.Name] = statuses
	}
	return meta, nil
}

// CreateFilter saves a favourite JQL filter.
func (c *Client) CreateFilter(ctx context.Context, name, jql string) (*Filter, error) {
	body := map[string]any{
		"name":      name,
		"jql":       jql,
		"favourite": true,
	}

	var payload struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
		JQL  string      `json:"jql"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/filter", body, &payload); err != nil {
		return nil, err
	}

	filter := &Filter{
		ID:   payload.ID.String(),
		Name: payload.Name,
		JQL:  payload.JQL,
	}
	if filter.Name == "" {
		filter.Name = name
	}
	if filter.JQL == "" {
		filter.JQL = jql
	}
	if filter.ID != "" {
		filter.URL = c.baseURL + "/issues/?filter=" + filter.ID
	}
	log.Printf("jira filter created: id=%s name=%q", filter.ID, filter.Name)
	return filter, nil
}

// TransitionIssue moves an issue to the named status. The status must appear
// in the issue's available transitions.
func (c *Client) TransitionIssue(ctx context.Context, key, targetStatus string) (*TransitionResult, error) {
	summary, currentStatus, err := c.doTransition(ctx, key, targetStatus)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{
		Key:            key,
		Summary:        summary,
		PreviousStatus: currentStatus,
		NewStatus:      targetStatus,
		URL:            c.BrowseURL(key),
	}, nil
}

// CompleteIssue transitions an issue to the highest-priority completion
// status it can reach, then records the end date. BNFDEV issues store the
// date in a custom field, BNFMT issues skip the date, everything else uses
// the standard duedate field.
func (c *Client) CompleteIssue(ctx context.Context, key, dueDate string) (*TransitionResult, error) {
	transitions, err := c.availableTransitions(ctx, key)
	if err != nil {
		return nil, err
	}

	var targetStatus string
	for _, s := range doneStatusPriority {
		if _, ok := transitions[s]; ok {
			targetStatus = s
			break
		}
	}
	if targetStatus == "" {
		available := make([]string, 0, len(transitions))
		for name := range transitions {
			available = append(available, name)
		}
		return nil, errors.NewExternal("jira", fmt.Sprintf(
			"issue %s has no transition to a completion status, available: %v", key, available))
	}

	summary, currentStatus, err := c.doTransition(ctx, key, targetStatus)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(key, "BNFDEV-"):
		err = c.setField(ctx, key, customEndDateField, dueDate)
	case strings.HasPrefix(key, "BNFMT-"):
		// BNFMT issues carry no end date.
	default:
		err = c.setField(ctx, key, "duedate", dueDate)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("jira issue completed: key=%s status=%s", key, targetStatus)
	return &TransitionResult{
		Key:            key,
		Summary:        summary,
		PreviousStatus: currentStatus,
		NewStatus:      targetStatus,
		DueDate:        dueDate,
		URL:            c.BrowseURL(key),
	}, nil
}

// availableTransitions maps reachable status names to transition IDs.
func (c *Client) availableTransitions(ctx context.Context, key string) (map[string]string, error) {
	var payload struct {
		Transitions []struct {
			ID string `json:"id"`
			To struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "/transitions"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	transitions := make(map[string]string, len(payload.Transitions))
	for _, t := range payload.Transitions {
		transitions[t.To.Name] = t.ID
	}
	return transitions, nil
}

// doTransition reads the issue, resolves the transition for targetStatus,
// and executes it. Returns the issue summary and the status before the move.
func (c *Client) doTransition(ctx context.Context, key, targetStatus string) (summary, currentStatus string, err error) {
	var issue struct {
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
			Issuetype struct {
				Name string `json:"name"`
			} `json:"issuetype"`
		} `json:"fields"`
	}
	issuePath := "/rest/api/2/issue/" + url.PathEscape(key) + "?fields=summary,status,issuetype,project"
	if err := c.do(ctx, http.MethodGet, issuePath, nil, &issue); err != nil {
		return "", "", err
	}

	transitions, err := c.availableTransitions(ctx, key)
	if err != nil {
		return "", "", err
	}
	transitionID, ok := transitions[targetStatus]
	if !ok {
		available := make([]string, 0, len(transitions))
		for name := range transitions {
			available = append(available, name)
		}
		return "", "", errors.NewExternal("jira", fmt.Sprintf(
			"issue %s (%s) cannot transition to %q, available: %v",
			key, issue.Fields.Issuetype.Name, targetStatus, available))
	}

	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "/transitions"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return "", "", err
	}
	log.Printf("jira transition: key=%s %s -> %s", key, issue.Fields.Status.Name, targetStatus)
	return issue.Fields.Summary, issue.Fields.Status.Name, nil
}

// setField writes a single issue field.
func (c *Client) setField(ctx context.Context, key, field, value string) error {
	body := map[string]any{"fields": map[string]string{field: value}}
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), body, nil)
}

// do runs one API request. A non-nil out receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal("encode jira request: " + err.Error())
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.NewInternal("build jira request: " + err.Error())
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewExternal("jira", "connection failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.NewExternal("jira", "authentication failed, check username and password")
		case http.StatusForbidden:
			return errors.NewExternal("jira", "access denied")
		case http.StatusNotFound:
			return errors.NewNotFound("jira resource", method+" "+path)
		default:
			return errors.NewExternal("jira", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewExternal("jira", "decode response: "+err.Error())
	}
	return nil
}

// parseIssue flattens a raw issue document into an Issue.
func (c *Client) parseIssue(raw json.RawMessage) (Issue, error) {
	var doc struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
			Assignee *struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
			Issuetype struct {
				Name string `json:"name"`
			} `json:"issuetype"`
			Description   string `json:"description"`
			Created       string `json:"created"`
			CustomEndDate string `json:"customfield_10833"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Issue{}, errors.NewExternal("jira", "parse issue: "+err.Error())
	}

	issue := Issue{
		Key:           doc.Key,
		Summary:       doc.Fields.Summary,
		Status:        doc.Fields.Status.Name,
		Assignee:      "Unassigned",
		Issuetype:     doc.Fields.Issuetype.Name,
		Description:   doc.Fields.Description,
		CustomEndDate: doc.Fields.CustomEndDate,
	}
	if issue.Status == "" {
		issue.Status = "Unknown"
	}
	if issue.Issuetype == "" {
		issue.Issuetype = "Unknown"
	}
	if doc.Fields.Assignee != nil && doc.Fields.Assignee.DisplayName != "" {
		issue.Assignee = doc.Fields.Assignee.DisplayName
	}
	if len(doc.Fields.Created) >= 10 {
		issue.Created = doc.Fields.Created[:10]
	}
	if issue.Key != "" {
		issue.URL = c.BrowseURL(issue.Key)
	}
	return issue, nil
}
