package workflow

import (
	"context"
	"fmt"
	"html"
	htmltemplate "html/template"
	"log"
	"strings"
	"time"

	"github.com/devhatch/wikigen/internal/errors"
	"github.com/devhatch/wikigen/internal/gitdiff"
	"github.com/devhatch/wikigen/internal/jira"
	"github.com/devhatch/wikigen/internal/template"
	"github.com/devhatch/wikigen/internal/wiki"
)

// WikiClient is the slice of the Confluence client the orchestrator needs.
type WikiClient interface {
	CreatePage(ctx context.Context, parentPageID, title, body, spaceKey string) (*wiki.Page, error)
	FindPageByTitle(ctx context.Context, parentPageID, title string) (*wiki.Page, error)
	SearchPageByTitle(ctx context.Context, title, spaceKey string) (*wiki.Page, error)
	GetOrCreateYearMonthPage(ctx context.Context, rootPageID string, year, month int, spaceKey, yearTitle, monthTitle string) (yearPageID, monthPageID string, err error)
	GetPageWithContent(ctx context.Context, pageID string) (*wiki.PageWithContent, error)
	UpdatePage(ctx context.Context, pageID, title, body string, version int, spaceKey string) (*wiki.Page, error)
}

// JiraClient enriches sessions with issue details. Optional.
type JiraClient interface {
	SearchIssues(ctx context.Context, jql string) ([]jira.Issue, error)
}

// DiffCollector gathers commits and diffs for a branch. Optional.
type DiffCollector interface {
	CollectByBranch(ctx context.Context, branchName string) (*gitdiff.DiffResult, error)
}

// maxUpdateRetries bounds optimistic-lock retries when appending to an
// existing page.
const maxUpdateRetries = 3

// maxEnrichmentKeys caps how many Jira issues a single session looks up.
const maxEnrichmentKeys = 5

// Orchestrator runs wiki generation sessions through the state machine.
// Nothing is written to the wiki before Approve succeeds.
type Orchestrator struct {
	wiki       WikiClient
	sessions   *Store
	renderer   *template.Renderer
	collector  DiffCollector
	jira       JiraClient
	rootPageID string
	spaceKey   string
	clock      Clock
}

// NewOrchestrator wires an Orchestrator. collector and jiraClient may be nil
// when the corresponding integration is not configured.
func NewOrchestrator(
	wikiClient WikiClient,
	sessions *Store,
	renderer *template.Renderer,
	collector DiffCollector,
	jiraClient JiraClient,
	rootPageID, spaceKey string,
	clock Clock,
) *Orchestrator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Orchestrator{
		wiki:       wikiClient,
		sessions:   sessions,
		renderer:   renderer,
		collector:  collector,
		jira:       jiraClient,
		rootPageID: rootPageID,
		spaceKey:   spaceKey,
		clock:      clock,
	}
}

// transition moves a session to target or fails with the allowed moves.
func (o *Orchestrator) transition(session *Session, target State) error {
	if !canTransition(session.State, target) {
		allowed := make([]string, 0, len(transitions[session.State]))
		for _, s := range transitions[session.State] {
			allowed = append(allowed, string(s))
		}
		return errors.NewTransition(string(session.State), string(target), allowed)
	}
	log.Printf("state transition: %s -> %s (session=%s)", session.State, target, session.ID)
	session.State = target
	session.Touch(o.clock.Now())
	return nil
}

// IssuePageParams starts an issue summary page workflow.
type IssuePageParams struct {
	IssueKey       string
	IssueTitle     string
	Assignee       string
	ResolutionDate string
	Priority       string
	CommitList     string
	ChangeSummary  string
	ProjectName    string
}

// StartIssuePage opens a session that files a completed Jira issue under the
// year/month hierarchy. When no commit list is supplied the commits are
// collected from the issue's dev_<key> branch.
func (o *Orchestrator) StartIssuePage(ctx context.Context, p IssuePageParams) (*Session, error) {
	if p.IssueKey == "" {
		return nil, errors.NewValidation("issue_key is required")
	}
	if p.Assignee == "" {
		p.Assignee = "미지정"
	}
	if p.Priority == "" {
		p.Priority = "보통"
	}

	now := o.clock.Now()
	session := NewSession(TypeIssuePage, now)
	session.IssueKey = p.IssueKey
	session.IssueTitle = p.IssueTitle
	session.Assignee = p.Assignee
	session.Priority = p.Priority
	session.ProjectName = p.ProjectName
	session.BranchName = "dev_" + p.IssueKey
	session.CommitListRaw = p.CommitList
	session.ChangeSummary = p.ChangeSummary
	session.ResolutionDate = p.ResolutionDate
	if session.ResolutionDate == "" {
		session.ResolutionDate = now.Format("2006-01-02")
	}

	o.enrichWithJira(ctx, session, []string{p.IssueKey})

	// The issue's own dates win over the default when none was given.
	if p.ResolutionDate == "" && len(session.JiraIssues) > 0 {
		if wikiDate := WikiDateForIssue(&session.JiraIssues[0]); wikiDate != "" {
			session.ResolutionDate = wikiDate
		}
	}

	if strings.TrimSpace(p.CommitList) != "" {
		session.CommitListHTML = BuildCommitListHTML(p.CommitList)
		if strings.TrimSpace(p.ChangeSummary) == "" {
			session.ChangeSummary = AutoSummarize(p.CommitList)
		}
		if err := o.transition(session, StateRenderPreview); err != nil {
			return nil, err
		}
		if err := o.renderPreview(session); err != nil {
			return nil, err
		}
	} else {
		if err := o.transition(session, StateCollectCommits); err != nil {
			return nil, err
		}
		if err := o.collectCommits(ctx, session); err != nil {
			return nil, err
		}
	}

	o.sessions.Save(session)
	return session, nil
}

// ContentPageParams starts a content page workflow from commits collected
// outside the orchestrator.
type ContentPageParams struct {
	PageTitle     string
	CommitList    string
	InputType     string
	InputValue    string
	BaseDate      string
	ChangeSummary string
	JiraIssueKeys string
	DiffStat      string
	ProjectName   string
}

// StartContentPage opens a session for an arbitrary change summary page
// under the year/month hierarchy.
func (o *Orchestrator) StartContentPage(ctx context.Context, p ContentPageParams) (*Session, error) {
	if p.PageTitle == "" {
		return nil, errors.NewValidation("page_title is required")
	}
	if p.InputType == "" {
		p.InputType = "브랜치명"
	}
	if p.InputValue == "" {
		p.InputValue = p.PageTitle
	}

	now := o.clock.Now()
	session := NewSession(TypeContentPage, now)
	session.PageTitle = p.PageTitle
	session.InputType = p.InputType
	session.InputValue = p.InputValue
	session.ProjectName = p.ProjectName
	session.CommitListRaw = p.CommitList
	session.ChangeSummary = p.ChangeSummary
	session.DiffStat = p.DiffStat
	session.BaseDate = p.BaseDate
	if session.BaseDate == "" {
		session.BaseDate = now.Format("2006-01-02")
	}

	session.CommitListHTML = BuildCommitListHTML(p.CommitList)
	if strings.TrimSpace(p.ChangeSummary) == "" {
		session.ChangeSummary = AutoSummarize(p.CommitList)
	}

	if strings.TrimSpace(p.JiraIssueKeys) != "" {
		var keys []string
		for _, k := range strings.Split(p.JiraIssueKeys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, strings.ToUpper(k))
			}
		}
		o.enrichWithJira(ctx, session, keys)

		if p.BaseDate == "" && len(session.JiraIssues) > 0 {
			if wikiDate := WikiDateForIssue(&session.JiraIssues[0]); wikiDate != "" {
				session.BaseDate = wikiDate
			}
		}
	}

	if err := o.transition(session, StateRenderPreview); err != nil {
		return nil, err
	}
	if err := o.renderPreview(session); err != nil {
		return nil, err
	}

	o.sessions.Save(session)
	return session, nil
}

// CustomPageParams starts a free-form page workflow under an explicit
// parent page.
type CustomPageParams struct {
	PageTitle       string
	Content         string
	ParentPageID    string
	ParentPageTitle string
	SpaceKey        string
}

// StartCustomPage opens a session for a free-form page. Either the parent
// page ID or its exact title must be given.
func (o *Orchestrator) StartCustomPage(ctx context.Context, p CustomPageParams) (*Session, error) {
	if p.PageTitle == "" {
		return nil, errors.NewValidation("page_title is required")
	}
	spaceKey := p.SpaceKey
	if spaceKey == "" {
		spaceKey = o.spaceKey
	}

	parentPageID := p.ParentPageID
	if parentPageID == "" && p.ParentPageTitle != "" {
		found, err := o.wiki.SearchPageByTitle(ctx, p.ParentPageTitle, spaceKey)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, errors.NewNotFound("parent page", p.ParentPageTitle)
		}
		parentPageID = found.ID
	}
	if parentPageID == "" {
		return nil, errors.NewValidation("either parent_page_id or parent_page_title is required")
	}

	session := NewSession(TypeCustomPage, o.clock.Now())
	session.PageTitle = p.PageTitle
	session.ContentRaw = p.Content
	session.ParentPageID = parentPageID
	session.CustomSpaceKey = spaceKey

	if err := o.transition(session, StateRenderPreview); err != nil {
		return nil, err
	}
	if err := o.renderPreview(session); err != nil {
		return nil, err
	}

	o.sessions.Save(session)
	return session, nil
}

// UpdatePageParams starts a page update workflow.
type UpdatePageParams struct {
	PageID    string
	PageTitle string
	Content   string
	SpaceKey  string
}

// StartUpdatePage opens a session that appends rendered content to an
// existing page. The page's version is captured now; the update itself
// happens only after approval, re-reading the page to absorb concurrent
// edits.
func (o *Orchestrator) StartUpdatePage(ctx context.Context, p UpdatePageParams) (*Session, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, errors.NewValidation("content is required")
	}
	spaceKey := p.SpaceKey
	if spaceKey == "" {
		spaceKey = o.spaceKey
	}

	pageID := p.PageID
	if pageID == "" && p.PageTitle != "" {
		found, err := o.wiki.SearchPageByTitle(ctx, p.PageTitle, spaceKey)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, errors.NewNotFound("wiki page", p.PageTitle)
		}
		pageID = found.ID
	}
	if pageID == "" {
		return nil, errors.NewValidation("either page_id or page_title is required")
	}

	page, err := o.wiki.GetPageWithContent(ctx, pageID)
	if err != nil {
		return nil, err
	}

	session := NewSession(TypeUpdatePage, o.clock.Now())
	session.PageTitle = page.Title
	session.ContentRaw = p.Content
	session.UpdateTargetPageID = page.ID
	session.UpdateTargetVersion = page.Version
	session.CustomSpaceKey = page.SpaceKey
	if session.CustomSpaceKey == "" {
		session.CustomSpaceKey = spaceKey
	}

	if err := o.transition(session, StateRenderPreview); err != nil {
		return nil, err
	}
	if err := o.renderPreview(session); err != nil {
		return nil, err
	}

	o.sessions.Save(session)
	return session, nil
}

// Approve validates the approval token and performs the session's wiki side
// effect exactly once. On creation failure the session lands in FAILED and
// cannot be approved again.
func (o *Orchestrator) Approve(ctx context.Context, sessionID, approvalToken string) (*wiki.CreationResult, error) {
	session := o.sessions.Get(sessionID)
	if session == nil {
		return nil, errors.NewNotFound("session", sessionID)
	}

	if session.State != StateWaitApproval {
		wrongState := errors.NewApproval(fmt.Sprintf(
			"session is not awaiting approval (state=%s)", session.State))
		wrongState.Details = map[string]any{"state": string(session.State)}
		return nil, wrongState
	}
	if session.ApprovalToken != approvalToken {
		return nil, errors.NewApproval("approval token mismatch")
	}
	if session.IsApprovalExpired(o.clock.Now()) {
		return nil, errors.NewApproval(fmt.Sprintf(
			"approval token expired (valid for %d minutes), restart the workflow",
			int(ApprovalTokenTTL.Minutes())))
	}

	if err := o.transition(session, StateCreateWiki); err != nil {
		return nil, err
	}

	result, err := o.createWikiPage(ctx, session)
	if err != nil {
		session.State = StateFailed
		o.sessions.Save(session)
		return nil, err
	}

	if err := o.transition(session, StateDone); err != nil {
		return nil, err
	}
	o.sessions.Save(session)
	return result, nil
}

// Status is the externally visible view of a session.
type Status struct {
	SessionID     string `json:"session_id"`
	WorkflowType  Type   `json:"workflow_type"`
	State         State  `json:"state"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	IssueKey      string `json:"issue_key,omitempty"`
	PageTitle     string `json:"page_title"`
	ApprovalToken string `json:"approval_token,omitempty"`
	Preview       string `json:"preview,omitempty"`
}

// GetStatus reports a session's state. The approval token is exposed only
// while the session is waiting for approval.
func (o *Orchestrator) GetStatus(sessionID string) (*Status, error) {
	session := o.sessions.Get(sessionID)
	if session == nil {
		return nil, errors.NewNotFound("session", sessionID)
	}

	status := &Status{
		SessionID:    session.ID,
		WorkflowType: session.Type,
		State:        session.State,
		CreatedAt:    session.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    session.UpdatedAt.Format(time.RFC3339),
		IssueKey:     session.IssueKey,
		PageTitle:    session.DisplayTitle(),
	}
	if session.State == StateWaitApproval {
		status.ApprovalToken = session.ApprovalToken
	}
	if preview := []rune(session.RenderedPreview); len(preview) > 500 {
		status.Preview = string(preview[:500])
	} else {
		status.Preview = session.RenderedPreview
	}
	return status, nil
}

// collectCommits gathers branch data for an issue page session. Collection
// failure degrades to placeholder content so the preview still renders.
func (o *Orchestrator) collectCommits(ctx context.Context, session *Session) error {
	if o.collector == nil {
		session.CommitListHTML = "<li>(커밋 수집 실패)</li>"
		if session.ChangeSummary == "" {
			session.ChangeSummary = "(Git 정보 없음)"
		}
	} else if result, err := o.collector.CollectByBranch(ctx, session.BranchName); err != nil {
		log.Printf("commit collection failed: branch=%s err=%v", session.BranchName, err)
		session.CommitListHTML = "<li>(커밋 수집 실패)</li>"
		if session.ChangeSummary == "" {
			session.ChangeSummary = "(Git 정보 없음)"
		}
	} else {
		session.CommitListRaw = result.CommitsRaw
		session.DiffRaw = result.DiffRaw
		session.DiffStat = result.DiffStat
		session.CommitListHTML = BuildCommitListHTML(result.CommitsRaw)
		if session.ChangeSummary == "" {
			session.ChangeSummary = AutoSummarize(result.CommitsRaw)
		}
	}

	if err := o.transition(session, StateRenderPreview); err != nil {
		return err
	}
	return o.renderPreview(session)
}

// renderPreview renders the page body, issues the approval token, and parks
// the session in WAIT_APPROVAL.
func (o *Orchestrator) renderPreview(session *Session) error {
	changeSummaryHTML := o.renderer.RenderChangeSummaryHTML(session.ChangeSummary)
	jiraIssuesHTML := buildJiraIssuesHTML(session.JiraIssues)
	jiraDescriptionHTML := buildJiraDescriptionHTML(session.JiraIssues)
	hasJiraIssues := len(session.JiraIssues) > 0

	var rendered string
	var err error
	switch session.Type {
	case TypeIssuePage:
		variables := map[string]any{
			"ISSUE_KEY":             session.IssueKey,
			"ISSUE_TITLE":           session.IssueTitle,
			"ASSIGNEE":              session.Assignee,
			"RESOLUTION_DATE":       session.ResolutionDate,
			"PRIORITY":              session.Priority,
			"BRANCH_NAME":           session.BranchName,
			"COMMIT_LIST":           htmltemplate.HTML(session.CommitListHTML),
			"CHANGE_SUMMARY_HTML":   changeSummaryHTML,
			"DIFF_STAT":             session.DiffStat,
			"JIRA_STATUS":           "",
			"JIRA_ISSUETYPE":        "",
			"JIRA_URL":              "",
			"JIRA_WIKI_DATE":        "",
			"JIRA_DESCRIPTION_HTML": htmltemplate.HTML(jiraDescriptionHTML),
			"HAS_JIRA_DETAIL":       hasJiraIssues,
		}
		if hasJiraIssues {
			first := &session.JiraIssues[0]
			variables["JIRA_STATUS"] = first.Status
			variables["JIRA_ISSUETYPE"] = first.Issuetype
			variables["JIRA_URL"] = first.URL
			variables["JIRA_WIKI_DATE"] = WikiDateForIssue(first)
		}
		rendered, err = o.renderer.RenderWorkflowBody("issue_page", variables)
	case TypeCustomPage, TypeUpdatePage:
		rendered = string(o.renderer.RenderChangeSummaryHTML(session.ContentRaw))
	default:
		variables := map[string]any{
			"INPUT_TYPE":            session.InputType,
			"INPUT_VALUE":           session.InputValue,
			"BASE_DATE":             session.BaseDate,
			"COMMIT_LIST":           htmltemplate.HTML(session.CommitListHTML),
			"CHANGE_SUMMARY_HTML":   changeSummaryHTML,
			"DIFF_STAT":             session.DiffStat,
			"JIRA_ISSUES_HTML":      htmltemplate.HTML(jiraIssuesHTML),
			"JIRA_DESCRIPTION_HTML": htmltemplate.HTML(jiraDescriptionHTML),
			"HAS_JIRA_ISSUES":       hasJiraIssues,
		}
		rendered, err = o.renderer.RenderWorkflowBody("content_page", variables)
	}
	if err != nil {
		return err
	}
	session.RenderedPreview = rendered

	if err := session.IssueApprovalToken(o.clock.Now()); err != nil {
		return err
	}
	return o.transition(session, StateWaitApproval)
}

// enrichWithJira loads issue details for up to maxEnrichmentKeys keys.
// Lookup failures are logged and skipped so a flaky Jira never blocks the
// workflow.
func (o *Orchestrator) enrichWithJira(ctx context.Context, session *Session, keys []string) {
	if o.jira == nil || len(keys) == 0 {
		return
	}
	if len(keys) > maxEnrichmentKeys {
		keys = keys[:maxEnrichmentKeys]
	}
	for _, key := range keys {
		issues, err := o.jira.SearchIssues(ctx, fmt.Sprintf("key=%q", key))
		if err != nil {
			log.Printf("jira enrichment failed: key=%s err=%v", key, err)
			continue
		}
		if len(issues) > 0 {
			session.JiraIssues = append(session.JiraIssues, issues[0])
		}
	}
}

// buildJiraIssuesHTML renders issues as table rows for the content page
// template.
func buildJiraIssuesHTML(issues []jira.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	rows := make([]string, 0, len(issues))
	for i := range issues {
		issue := &issues[i]
		rows = append(rows, "<tr>"+
			`<td><a href="`+html.EscapeString(issue.URL)+`">`+html.EscapeString(issue.Key)+"</a></td>"+
			"<td>"+html.EscapeString(issue.Summary)+"</td>"+
			"<td>"+html.EscapeString(issue.Status)+"</td>"+
			"<td>"+html.EscapeString(issue.Assignee)+"</td>"+
			"<td>"+html.EscapeString(issue.Issuetype)+"</td>"+
			"<td>"+html.EscapeString(WikiDateForIssue(issue))+"</td>"+
			"</tr>")
	}
	return strings.Join(rows, "\n")
}

// buildJiraDescriptionHTML renders issue descriptions, prefixing each with
// its key when more than one issue is present.
func buildJiraDescriptionHTML(issues []jira.Issue) string {
	var parts []string
	for i := range issues {
		issue := &issues[i]
		desc := strings.TrimSpace(issue.Description)
		if desc == "" {
			continue
		}
		if len(issues) > 1 {
			parts = append(parts, "<h4>"+html.EscapeString(issue.Key)+": "+html.EscapeString(issue.Summary)+"</h4>")
		}
		parts = append(parts, "<p>"+strings.ReplaceAll(html.EscapeString(desc), "\n", "<br/>")+"</p>")
	}
	return strings.Join(parts, "\n")
}

// createWikiPage performs the session's side effect. Called exactly once per
// session, from Approve.
func (o *Orchestrator) createWikiPage(ctx context.Context, session *Session) (*wiki.CreationResult, error) {
	switch session.Type {
	case TypeCustomPage:
		return o.createCustomPage(ctx, session)
	case TypeUpdatePage:
		return o.updateTargetPage(ctx, session)
	default:
		return o.createDatedPage(ctx, session)
	}
}

func (o *Orchestrator) createCustomPage(ctx context.Context, session *Session) (*wiki.CreationResult, error) {
	space := session.CustomSpaceKey
	if space == "" {
		space = o.spaceKey
	}

	existing, err := o.wiki.FindPageByTitle(ctx, session.ParentPageID, session.PageTitle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewValidation(fmt.Sprintf(
			"a page titled %q already exists: %s", session.PageTitle, existing.URL))
	}

	page, err := o.wiki.CreatePage(ctx, session.ParentPageID, session.PageTitle, session.RenderedPreview, space)
	if err != nil {
		return nil, err
	}
	return &wiki.CreationResult{
		PageID:       page.ID,
		Title:        page.Title,
		URL:          page.URL,
		ParentPageID: session.ParentPageID,
	}, nil
}

// createDatedPage files an issue or content page under the year/month
// hierarchy derived from the session's date.
func (o *Orchestrator) createDatedPage(ctx context.Context, session *Session) (*wiki.CreationResult, error) {
	dateStr := session.BaseDate
	if session.Type == TypeIssuePage {
		dateStr = session.ResolutionDate
	}
	if len(dateStr) > 10 {
		dateStr = dateStr[:10]
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, errors.NewValidation("invalid date " + dateStr + ", want YYYY-MM-DD")
	}
	year, month := date.Year(), int(date.Month())

	yearTitle, monthTitle, err := o.renderer.BuildYearMonthTitles(year, month)
	if err != nil {
		return nil, err
	}
	yearPageID, monthPageID, err := o.wiki.GetOrCreateYearMonthPage(
		ctx, o.rootPageID, year, month, o.spaceKey, yearTitle, monthTitle)
	if err != nil {
		return nil, err
	}

	pageTitle := session.DisplayTitle()
	existing, err := o.wiki.FindPageByTitle(ctx, monthPageID, pageTitle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if session.ProjectName == "" {
			return nil, errors.NewValidation(fmt.Sprintf(
				"a page titled %q already exists: %s", pageTitle, existing.URL))
		}
		// Multi-project upsert: append this project's section instead of
		// failing on the shared title.
		return o.appendToExistingPage(ctx, session, existing.ID, monthPageID, yearPageID)
	}

	page, err := o.wiki.CreatePage(ctx, monthPageID, pageTitle, session.RenderedPreview, o.spaceKey)
	if err != nil {
		return nil, err
	}
	return &wiki.CreationResult{
		PageID:       page.ID,
		Title:        page.Title,
		URL:          page.URL,
		ParentPageID: monthPageID,
		YearPageID:   yearPageID,
		MonthPageID:  monthPageID,
	}, nil
}

// appendToExistingPage adds the session's rendered body to an existing page
// as a project section. The read-merge-write cycle retries on version
// conflicts up to maxUpdateRetries times, re-reading each attempt.
func (o *Orchestrator) appendToExistingPage(ctx context.Context, session *Session, pageID, monthPageID, yearPageID string) (*wiki.CreationResult, error) {
	section := buildAppendSection(session.ProjectName, o.clock.Now().Format("2006-01-02"), session.RenderedPreview)

	var lastErr error
	for attempt := 1; attempt <= maxUpdateRetries; attempt++ {
		current, err := o.wiki.GetPageWithContent(ctx, pageID)
		if err != nil {
			return nil, err
		}
		space := current.SpaceKey
		if space == "" {
			space = o.spaceKey
		}

		page, err := o.wiki.UpdatePage(ctx, pageID, current.Title, current.Body+section, current.Version+1, space)
		if err != nil {
			if errors.Is(err, errors.ErrVersionConflict) {
				log.Printf("page append version conflict: page=%s attempt=%d/%d", pageID, attempt, maxUpdateRetries)
				lastErr = err
				continue
			}
			return nil, err
		}

		return &wiki.CreationResult{
			PageID:       page.ID,
			Title:        page.Title,
			URL:          page.URL,
			ParentPageID: monthPageID,
			YearPageID:   yearPageID,
			MonthPageID:  monthPageID,
			WasUpdated:   true,
		}, nil
	}
	return nil, lastErr
}

// updateTargetPage appends the rendered content to the page captured at
// session start, with the same conflict retry as project appends.
func (o *Orchestrator) updateTargetPage(ctx context.Context, session *Session) (*wiki.CreationResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUpdateRetries; attempt++ {
		current, err := o.wiki.GetPageWithContent(ctx, session.UpdateTargetPageID)
		if err != nil {
			return nil, err
		}
		space := current.SpaceKey
		if space == "" {
			space = session.CustomSpaceKey
		}
		if space == "" {
			space = o.spaceKey
		}

		merged := current.Body + "\n" + session.RenderedPreview
		page, err := o.wiki.UpdatePage(ctx, session.UpdateTargetPageID, current.Title, merged, current.Version+1, space)
		if err != nil {
			if errors.Is(err, errors.ErrVersionConflict) {
				log.Printf("page update version conflict: page=%s attempt=%d/%d",
					session.UpdateTargetPageID, attempt, maxUpdateRetries)
				lastErr = err
				continue
			}
			return nil, err
		}

		return &wiki.CreationResult{
			PageID:     page.ID,
			Title:      page.Title,
			URL:        page.URL,
			WasUpdated: true,
		}, nil
	}
	return nil, lastErr
}

// buildAppendSection wraps a page body in an info macro labelled with the
// project and date.
func buildAppendSection(projectName, dateStr, bodyHTML string) string {
	return "\n<hr/>\n" +
		`<ac:structured-macro ac:name="info">` + "\n" +
		`  <ac:parameter ac:name="title">` + html.EscapeString(projectName) +
		" 추가 변경사항 (" + html.EscapeString(dateStr) + ")</ac:parameter>\n" +
		"  <ac:rich-text-body>\n" +
		"    " + bodyHTML + "\n" +
		"  </ac:rich-text-body>\n" +
		"</ac:structured-macro>\n"
}
