package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devhatch/wikigen/internal/config"
	"github.com/devhatch/wikigen/internal/errors"
	"github.com/devhatch/wikigen/internal/gitdiff"
	"github.com/devhatch/wikigen/internal/jira"
	"github.com/devhatch/wikigen/internal/template"
	"github.com/devhatch/wikigen/internal/wiki"
	"github.com/devhatch/wikigen/internal/workflow"
)

// Handlers holds dependencies for MCP tool handlers. orch, jiraClient and
// wikiClient are nil when the corresponding integration is not configured;
// each tool checks its own requirements so the rest keeps working.
type Handlers struct {
	cfg       *config.Config
	orch      *workflow.Orchestrator
	jira      *jira.Client
	wiki      *wiki.Client
	templates *template.Repository
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *config.Config, orch *workflow.Orchestrator, jiraClient *jira.Client, wikiClient *wiki.Client, templates *template.Repository) *Handlers {
	return &Handlers{
		cfg:       cfg,
		orch:      orch,
		jira:      jiraClient,
		wiki:      wikiClient,
		templates: templates,
	}
}

// Configuration gates, checked lazily per tool.

func (h *Handlers) checkWikiCreation() error {
	if !h.cfg.HasWiki() || h.orch == nil {
		return errors.NewValidation("wiki is not configured: set WIKI_BASE_URL, WIKI_SPACE_KEY and WIKI_ROOT_PAGE_ID")
	}
	return nil
}

func (h *Handlers) checkWorkflow() error {
	if !h.cfg.HasWikiBase() || h.orch == nil {
		return errors.NewValidation("wiki is not configured: set WIKI_BASE_URL")
	}
	return nil
}

func (h *Handlers) checkWikiBase() error {
	if !h.cfg.HasWikiBase() || h.wiki == nil {
		return errors.NewValidation("wiki is not configured: set WIKI_BASE_URL")
	}
	return nil
}

func (h *Handlers) checkJira() error {
	if !h.cfg.HasJira() || h.jira == nil {
		return errors.NewValidation("jira is not configured: set JIRA_BASE_URL")
	}
	return nil
}

// Request types for each tool

// IssuePageRequest represents the arguments for create_wiki_issue_page.
type IssuePageRequest struct {
	IssueKey       string `json:"issue_key"`
	IssueTitle     string `json:"issue_title"`
	CommitList     string `json:"commit_list,omitempty"`
	ChangeSummary  string `json:"change_summary,omitempty"`
	Assignee       string `json:"assignee,omitempty"`
	ResolutionDate string `json:"resolution_date,omitempty"`
	Priority       string `json:"priority,omitempty"`
	ProjectName    string `json:"project_name,omitempty"`
}

// ContentPageRequest represents the arguments for create_wiki_page_with_content.
type ContentPageRequest struct {
	PageTitle     string `json:"page_title"`
	CommitList    string `json:"commit_list"`
	InputType     string `json:"input_type,omitempty"`
	InputValue    string `json:"input_value,omitempty"`
	BaseDate      string `json:"base_date,omitempty"`
	ChangeSummary string `json:"change_summary,omitempty"`
	JiraIssueKeys string `json:"jira_issue_keys,omitempty"`
	DiffStat      string `json:"diff_stat,omitempty"`
	ProjectName   string `json:"project_name,omitempty"`
}

// CustomPageRequest represents the arguments for create_wiki_custom_page.
type CustomPageRequest struct {
	PageTitle       string `json:"page_title"`
	Content         string `json:"content"`
	ParentPageID    string `json:"parent_page_id,omitempty"`
	ParentPageTitle string `json:"parent_page_title,omitempty"`
	SpaceKey        string `json:"space_key,omitempty"`
}

// UpdatePageRequest represents the arguments for update_wiki_page.
type UpdatePageRequest struct {
	Body      string `json:"body"`
	PageID    string `json:"page_id,omitempty"`
	PageTitle string `json:"page_title,omitempty"`
	SpaceKey  string `json:"space_key,omitempty"`
}

// ApproveRequest represents the arguments for approve_wiki_generation.
type ApproveRequest struct {
	SessionID     string `json:"session_id"`
	ApprovalToken string `json:"approval_token"`
}

// StatusRequest represents the arguments for get_wiki_generation_status.
type StatusRequest struct {
	SessionID string `json:"session_id"`
}

// GetWikiPageRequest represents the arguments for get_wiki_page.
type GetWikiPageRequest struct {
	PageID    string `json:"page_id,omitempty"`
	PageTitle string `json:"page_title,omitempty"`
	SpaceKey  string `json:"space_key,omitempty"`
}

// CollectCommitsRequest represents the arguments for collect_branch_commits.
type CollectCommitsRequest struct {
	BranchName     string `json:"branch_name"`
	RepositoryPath string `json:"repository_path,omitempty"`
	IncludeDiff    bool   `json:"include_diff,omitempty"`
}

// AnalyzeChangesRequest represents the arguments for analyze_branch_changes.
type AnalyzeChangesRequest struct {
	BranchName     string `json:"branch_name"`
	RepositoryPath string `json:"repository_path,omitempty"`
}

// GetIssueRequest represents the arguments for get_jira_issue.
type GetIssueRequest struct {
	Key string `json:"key"`
}

// GetIssuesRequest represents the arguments for get_jira_issues.
type GetIssuesRequest struct {
	Statuses   []string `json:"statuses,omitempty"`
	ProjectKey string   `json:"project_key,omitempty"`
}

// ProjectMetaRequest represents the arguments for get_jira_project_meta.
type ProjectMetaRequest struct {
	ProjectKey string `json:"project_key"`
}

// CompleteIssueRequest represents the arguments for complete_jira_issue.
type CompleteIssueRequest struct {
	Key     string `json:"key"`
	DueDate string `json:"due_date,omitempty"`
}

// TransitionIssueRequest represents the arguments for transition_jira_issue.
type TransitionIssueRequest struct {
	Key          string `json:"key"`
	TargetStatus string `json:"target_status"`
}

// CreateFilterRequest represents the arguments for create_jira_filter.
type CreateFilterRequest struct {
	Name string `json:"name"`
	JQL  string `json:"jql"`
}

// Workflow handlers

// HandleCreateIssuePage handles the create_wiki_issue_page tool call.
func (h *Handlers) HandleCreateIssuePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IssuePageRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWikiCreation(); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.IssueTitle) == "" {
		return errorResult(errors.NewValidation("issue_title is required")), nil
	}

	session, err := h.orch.StartIssuePage(ctx, workflow.IssuePageParams{
		IssueKey:       strings.ToUpper(strings.TrimSpace(input.IssueKey)),
		IssueTitle:     strings.TrimSpace(input.IssueTitle),
		Assignee:       strings.TrimSpace(input.Assignee),
		ResolutionDate: strings.TrimSpace(input.ResolutionDate),
		Priority:       strings.TrimSpace(input.Priority),
		CommitList:     input.CommitList,
		ChangeSummary:  input.ChangeSummary,
		ProjectName:    strings.TrimSpace(input.ProjectName),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return previewResult(session)
}

// HandleCreateContentPage handles the create_wiki_page_with_content tool call.
func (h *Handlers) HandleCreateContentPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContentPageRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWikiCreation(); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.CommitList) == "" {
		return errorResult(errors.NewValidation("commit_list is required")), nil
	}

	session, err := h.orch.StartContentPage(ctx, workflow.ContentPageParams{
		PageTitle:     strings.TrimSpace(input.PageTitle),
		CommitList:    input.CommitList,
		InputType:     strings.TrimSpace(input.InputType),
		InputValue:    strings.TrimSpace(input.InputValue),
		BaseDate:      strings.TrimSpace(input.BaseDate),
		ChangeSummary: input.ChangeSummary,
		JiraIssueKeys: input.JiraIssueKeys,
		DiffStat:      input.DiffStat,
		ProjectName:   strings.TrimSpace(input.ProjectName),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return previewResult(session)
}

// HandleCreateCustomPage handles the create_wiki_custom_page tool call.
func (h *Handlers) HandleCreateCustomPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CustomPageRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWorkflow(); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Content) == "" {
		return errorResult(errors.NewValidation("content is required")), nil
	}

	session, err := h.orch.StartCustomPage(ctx, workflow.CustomPageParams{
		PageTitle:       strings.TrimSpace(input.PageTitle),
		Content:         input.Content,
		ParentPageID:    strings.TrimSpace(input.ParentPageID),
		ParentPageTitle: strings.TrimSpace(input.ParentPageTitle),
		SpaceKey:        strings.TrimSpace(input.SpaceKey),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return previewResult(session)
}

// HandleUpdatePage handles the update_wiki_page tool call.
func (h *Handlers) HandleUpdatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdatePageRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWorkflow(); err != nil {
		return errorResult(err), nil
	}

	session, err := h.orch.StartUpdatePage(ctx, workflow.UpdatePageParams{
		PageID:    strings.TrimSpace(input.PageID),
		PageTitle: strings.TrimSpace(input.PageTitle),
		Content:   input.Body,
		SpaceKey:  strings.TrimSpace(input.SpaceKey),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return previewResult(session)
}

// HandleApprove handles the approve_wiki_generation tool call.
func (h *Handlers) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApproveRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWorkflow(); err != nil {
		return errorResult(err), nil
	}
	if input.SessionID == "" {
		return errorResult(errors.NewValidation("session_id is required")), nil
	}
	if input.ApprovalToken == "" {
		return errorResult(errors.NewValidation("approval_token is required")), nil
	}

	result, err := h.orch.Approve(ctx, input.SessionID, input.ApprovalToken)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStatus handles the get_wiki_generation_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWorkflow(); err != nil {
		return errorResult(err), nil
	}
	if input.SessionID == "" {
		return errorResult(errors.NewValidation("session_id is required")), nil
	}

	status, err := h.orch.GetStatus(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(status)
}

// HandleGetWikiPage handles the get_wiki_page tool call.
func (h *Handlers) HandleGetWikiPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetWikiPageRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkWikiBase(); err != nil {
		return errorResult(err), nil
	}

	spaceKey := input.SpaceKey
	if spaceKey == "" {
		spaceKey = h.cfg.WikiSpaceKey
	}

	pageID := strings.TrimSpace(input.PageID)
	if pageID == "" && input.PageTitle != "" {
		found, err := h.wiki.SearchPageByTitle(ctx, input.PageTitle, spaceKey)
		if err != nil {
			return errorResult(err), nil
		}
		if found == nil {
			return errorResult(errors.NewNotFound("wiki page", input.PageTitle)), nil
		}
		pageID = found.ID
	}
	if pageID == "" {
		return errorResult(errors.NewValidation("either page_id or page_title is required")), nil
	}

	page, err := h.wiki.GetPageWithContent(ctx, pageID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(page)
}

// Git collection handlers

// collectPayload is the result shape shared by collect_branch_commits and
// analyze_branch_changes.
type collectPayload struct {
	BranchName        string   `json:"branch_name"`
	RepositoryPath    string   `json:"repository_path"`
	Source            string   `json:"source"`
	CommitCount       int      `json:"commit_count"`
	CommitsRaw        string   `json:"commits_raw"`
	DiffStat          string   `json:"diff_stat,omitempty"`
	DiffSize          int      `json:"diff_size"`
	EstimatedTokens   int      `json:"estimated_tokens"`
	Diff              string   `json:"diff,omitempty"`
	IncludedFiles     []string `json:"included_files,omitempty"`
	ExcludedFiles     []string `json:"excluded_files,omitempty"`
	TruncatedSize     int      `json:"truncated_size,omitempty"`
	DetectedIssueKeys []string `json:"detected_issue_keys,omitempty"`
	Guidance          string   `json:"guidance,omitempty"`
}

// HandleCollectCommits handles the collect_branch_commits tool call.
func (h *Handlers) HandleCollectCommits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CollectCommitsRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	branchName := strings.TrimSpace(input.BranchName)
	if branchName == "" {
		return errorResult(errors.NewValidation("branch_name is required")), nil
	}

	repoPath, err := h.resolveRepository(ctx, branchName, strings.TrimSpace(input.RepositoryPath))
	if err != nil {
		return errorResult(err), nil
	}

	result, err := gitdiff.NewCollector(repoPath).CollectByBranch(ctx, branchName)
	if err != nil {
		return errorResult(err), nil
	}

	payload := buildCollectPayload(branchName, repoPath, result)
	if input.IncludeDiff && result.DiffRaw != "" {
		truncated := gitdiff.Truncate(result.DiffRaw, h.cfg.MaxDiffChars)
		payload.Diff = truncated.DiffText
		payload.IncludedFiles = truncated.IncludedFiles
		payload.ExcludedFiles = truncated.ExcludedFiles
		payload.TruncatedSize = truncated.TruncatedSize
	} else if payload.DiffSize > 0 {
		payload.Guidance = fmt.Sprintf(
			"the diff is %d chars (~%d tokens); call collect_branch_commits again with include_diff=true to analyze it for a change summary",
			payload.DiffSize, payload.EstimatedTokens)
	}
	return successResult(payload)
}

// HandleAnalyzeChanges handles the analyze_branch_changes tool call.
func (h *Handlers) HandleAnalyzeChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeChangesRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	branchName := strings.TrimSpace(input.BranchName)
	if branchName == "" {
		return errorResult(errors.NewValidation("branch_name is required")), nil
	}

	repoPath, err := h.resolveRepository(ctx, branchName, strings.TrimSpace(input.RepositoryPath))
	if err != nil {
		return errorResult(err), nil
	}

	result, err := gitdiff.NewCollector(repoPath).CollectByBranch(ctx, branchName)
	if err != nil {
		return errorResult(err), nil
	}

	payload := buildCollectPayload(branchName, repoPath, result)
	if result.DiffRaw != "" {
		truncated := gitdiff.Truncate(result.DiffRaw, h.cfg.MaxDiffChars)
		payload.Diff = truncated.DiffText
		payload.IncludedFiles = truncated.IncludedFiles
		payload.ExcludedFiles = truncated.ExcludedFiles
		payload.TruncatedSize = truncated.TruncatedSize
	}
	return successResult(payload)
}

func buildCollectPayload(branchName, repoPath string, result *gitdiff.DiffResult) collectPayload {
	commitCount := 0
	for _, line := range strings.Split(result.CommitsRaw, "\n") {
		if strings.TrimSpace(line) != "" {
			commitCount++
		}
	}
	return collectPayload{
		BranchName:        branchName,
		RepositoryPath:    repoPath,
		Source:            result.Source,
		CommitCount:       commitCount,
		CommitsRaw:        result.CommitsRaw,
		DiffStat:          result.DiffStat,
		DiffSize:          len(result.DiffRaw),
		EstimatedTokens:   len(result.DiffRaw) / 4,
		DetectedIssueKeys: workflow.ExtractIssueKeys(branchName + "\n" + result.CommitsRaw),
	}
}

// resolveRepository picks the repository a branch lives in. An explicit path
// must fall inside a configured repository; without one the branch is probed
// across all configured repositories and ambiguity is surfaced as an error.
func (h *Handlers) resolveRepository(ctx context.Context, branchName, repositoryPath string) (string, error) {
	if repositoryPath != "" {
		if err := validateRepositoryPath(repositoryPath, h.cfg.GitRepositories); err != nil {
			return "", err
		}
		return repositoryPath, nil
	}

	repos := h.cfg.GitRepositories
	if len(repos) == 0 {
		return "", errors.NewValidation("repository_path is required: no repositories are configured in GIT_REPOSITORIES")
	}

	matches, err := gitdiff.DetectRepositories(ctx, branchName, repos)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", errors.NewNotFound("branch", branchName)
	case 1:
		return matches[0].Path, nil
	default:
		ambiguous := errors.NewValidation(fmt.Sprintf(
			"branch %q exists in %d repositories; pass repository_path to pick one", branchName, len(matches)))
		ambiguous.Details = map[string]any{"matches": matches}
		return "", ambiguous
	}
}

// validateRepositoryPath enforces the repository allowlist. An empty
// allowlist skips the check.
func validateRepositoryPath(path string, allowed map[string]string) error {
	if len(allowed) == 0 {
		return nil
	}
	resolved, err := filepath.Abs(path)
	if err != nil {
		return errors.NewValidation("invalid repository_path: " + err.Error())
	}
	for _, allowedPath := range allowed {
		base, err := filepath.Abs(allowedPath)
		if err != nil {
			continue
		}
		if resolved == base || strings.HasPrefix(resolved, base+string(filepath.Separator)) {
			return nil
		}
	}
	return errors.NewValidation(fmt.Sprintf("repository_path %q is not a configured repository", path))
}

// Jira handlers

// HandleGetIssue handles the get_jira_issue tool call.
func (h *Handlers) HandleGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetIssueRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkJira(); err != nil {
		return errorResult(err), nil
	}
	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if key == "" {
		return errorResult(errors.NewValidation("key is required")), nil
	}

	issue, err := h.jira.GetIssueByKey(ctx, key)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(issue)
}

// issueListPayload reports an issue search together with the JQL it ran.
type issueListPayload struct {
	JQL    string       `json:"jql"`
	Count  int          `json:"count"`
	Issues []jira.Issue `json:"issues"`
}

// HandleGetIssues handles the get_jira_issues tool call.
func (h *Handlers) HandleGetIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetIssuesRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkJira(); err != nil {
		return errorResult(err), nil
	}

	conditions := []string{fmt.Sprintf("assignee=%q", h.cfg.UserID)}
	if projectKey := strings.ToUpper(strings.TrimSpace(input.ProjectKey)); projectKey != "" {
		conditions = append(conditions, fmt.Sprintf("project=%q", projectKey))
	}
	if statuses := jira.NormalizeStatuses(input.Statuses); len(statuses) > 0 {
		quoted := make([]string, len(statuses))
		for i, s := range statuses {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		conditions = append(conditions, "status in ("+strings.Join(quoted, ", ")+")")
	}
	jql := strings.Join(conditions, " AND ")

	issues, err := h.jira.SearchIssues(ctx, jql)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(issueListPayload{JQL: jql, Count: len(issues), Issues: issues})
}

// HandleProjectMeta handles the get_jira_project_meta tool call.
func (h *Handlers) HandleProjectMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectMetaRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkJira(); err != nil {
		return errorResult(err), nil
	}
	projectKey := strings.ToUpper(strings.TrimSpace(input.ProjectKey))
	if projectKey == "" {
		return errorResult(errors.NewValidation("project_key is required")), nil
	}

	meta, err := h.jira.GetProjectMeta(ctx, projectKey)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(meta)
}

// completeIssuePayload extends the transition result with a wiki follow-up
// hint when page creation is configured.
type completeIssuePayload struct {
	jira.TransitionResult
	WikiSuggestion string `json:"wiki_suggestion,omitempty"`
}

// HandleCompleteIssue handles the complete_jira_issue tool call.
func (h *Handlers) HandleCompleteIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CompleteIssueRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkJira(); err != nil {
		return errorResult(err), nil
	}
	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if key == "" {
		return errorResult(errors.NewValidation("key is required")), nil
	}
	dueDate := strings.TrimSpace(input.DueDate)
	if dueDate == "" {
		dueDate = time.Now().Format("2006-01-02")
	}

	result, err := h.jira.CompleteIssue(ctx, key, dueDate)
	if err != nil {
		return errorResult(err), nil
	}

	payload := completeIssuePayload{TransitionResult: *result}
	if h.cfg.HasWiki() {
		payload.WikiSuggestion = fmt.Sprintf(
			"ask the user whether to file a wiki summary page for %s via create_wiki_issue_page", result.Key)
	}
	return successResult(payload)
}

// HandleTransitionIssue handles the transition_jira_issue tool call.
func (h *Handlers) HandleTransitionIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TransitionIssueRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkJira(); err != nil {
		return errorResult(err), nil
	}
	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if key == "" {
		return errorResult(errors.NewValidation("key is required")), nil
	}
	if strings.TrimSpace(input.TargetStatus) == "" {
		return errorResult(errors.NewValidation("target_status is required")), nil
	}

	result, err := h.jira.TransitionIssue(ctx, key, strings.TrimSpace(input.TargetStatus))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCreateFilter handles the create_jira_filter tool call.
func (h *Handlers) HandleCreateFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateFilterRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if err := h.checkJira(); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Name) == "" {
		return errorResult(errors.NewValidation("name is required")), nil
	}
	if strings.TrimSpace(input.JQL) == "" {
		return errorResult(errors.NewValidation("jql is required")), nil
	}

	filter, err := h.jira.CreateFilter(ctx, strings.TrimSpace(input.Name), input.JQL)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(filter)
}

// HandleReloadTemplates handles the reload_wiki_templates tool call.
func (h *Handlers) HandleReloadTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.templates.Reload()
	workflows, err := h.templates.Workflows()
	if err != nil {
		return errorResult(err), nil
	}
	names := make([]string, 0, len(workflows))
	for name := range workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return successResult(map[string]any{"reloaded": true, "workflows": names})
}

// Result helpers

// workflowPreview is the result of the four workflow-starting tools. It
// carries everything the client needs for the approval follow-up call.
type workflowPreview struct {
	SessionID        string         `json:"session_id"`
	WorkflowType     workflow.Type  `json:"workflow_type"`
	State            workflow.State `json:"state"`
	PageTitle        string         `json:"page_title"`
	ApprovalToken    string         `json:"approval_token"`
	ExpiresInMinutes int            `json:"expires_in_minutes"`
	ChangeSummary    string         `json:"change_summary,omitempty"`
	JiraIssues       []jira.Issue   `json:"jira_issues,omitempty"`
	Preview          string         `json:"preview"`
	Warning          string         `json:"warning"`
	NextStep         string         `json:"next_step"`
}

const approvalWarning = "no wiki page has been created or modified yet; show the preview to the user " +
	"and call approve_wiki_generation only after the user explicitly approves"

// previewLimit bounds the preview excerpt embedded in tool results.
const previewLimit = 1000

func previewResult(session *workflow.Session) (*mcp.CallToolResult, error) {
	preview := session.RenderedPreview
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit])
	}
	return successResult(workflowPreview{
		SessionID:        session.ID,
		WorkflowType:     session.Type,
		State:            session.State,
		PageTitle:        session.DisplayTitle(),
		ApprovalToken:    session.ApprovalToken,
		ExpiresInMinutes: int(workflow.ApprovalTokenTTL.Minutes()),
		ChangeSummary:    session.ChangeSummary,
		JiraIssues:       session.JiraIssues,
		Preview:          preview,
		Warning:          approvalWarning,
		NextStep: fmt.Sprintf("approve_wiki_generation(session_id=%q, approval_token=%q)",
			session.ID, session.ApprovalToken),
	})
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var wErr *errors.WikiGenError
	if stderrors.As(err, &wErr) {
		message := wErr.Message
		if err.Error() != wErr.Error() {
			// Keep wrapper context added by callers.
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    wErr.Code,
			"message": message,
			"status":  wErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or raw API responses
		if wErr.Code != errors.ErrInternal && wErr.Details != nil {
			errorObj["details"] = wErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
