// Package workflow drives the approval-gated wiki page generation state
// machine. No external side effect happens before an explicit approval with
// a valid single-use token.
package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/devhatch/wikigen/internal/errors"
	"github.com/devhatch/wikigen/internal/jira"
)

// ApprovalTokenTTL bounds how long an issued approval token stays valid.
const ApprovalTokenTTL = 30 * time.Minute

// Type selects which page generation workflow a session runs.
type Type string

const (
	TypeIssuePage   Type = "issue_page"
	TypeContentPage Type = "content_page"
	TypeCustomPage  Type = "custom_page"
	TypeUpdatePage  Type = "update_page"
)

// State is a workflow session's position in the state machine.
type State string

const (
	StateInit           State = "init"
	StateCollectCommits State = "collect_commits"
	StateCollectDiff    State = "collect_diff"
	StateAnalyzeDiff    State = "analyze_diff"
	StateRenderPreview  State = "render_preview"
	StateWaitApproval   State = "wait_approval"
	StateCreateWiki     State = "create_wiki"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// transitions is the set of legal state moves. DONE and FAILED are terminal.
var transitions = map[State][]State{
	StateInit:           {StateCollectCommits, StateRenderPreview},
	StateCollectCommits: {StateCollectDiff, StateRenderPreview},
	StateCollectDiff:    {StateAnalyzeDiff, StateRenderPreview},
	StateAnalyzeDiff:    {StateRenderPreview},
	StateRenderPreview:  {StateWaitApproval},
	StateWaitApproval:   {StateCreateWiki, StateFailed},
	StateCreateWiki:     {StateDone, StateFailed},
	StateDone:           {},
	StateFailed:         {},
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Session carries one workflow run from start to approval.
type Session struct {
	ID        string    `json:"session_id"`
	Type      Type      `json:"workflow_type"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Issue page workflow
	IssueKey       string `json:"issue_key,omitempty"`
	IssueTitle     string `json:"issue_title,omitempty"`
	Assignee       string `json:"assignee,omitempty"`
	ResolutionDate string `json:"resolution_date,omitempty"`
	Priority       string `json:"priority,omitempty"`

	// Content page workflow
	PageTitle  string `json:"page_title,omitempty"`
	InputType  string `json:"input_type,omitempty"`
	InputValue string `json:"input_value,omitempty"`
	BaseDate   string `json:"base_date,omitempty"`

	// Custom page workflow
	ParentPageID   string `json:"parent_page_id,omitempty"`
	ContentRaw     string `json:"-"`
	CustomSpaceKey string `json:"custom_space_key,omitempty"`

	// Multi-project append
	ProjectName string `json:"project_name,omitempty"`

	// Page update workflow
	UpdateTargetPageID  string `json:"update_target_page_id,omitempty"`
	UpdateTargetVersion int    `json:"update_target_version,omitempty"`

	// Shared collection data
	BranchName      string `json:"branch_name,omitempty"`
	CommitListRaw   string `json:"-"`
	CommitListHTML  string `json:"-"`
	DiffRaw         string `json:"-"`
	DiffStat        string `json:"-"`
	ChangeSummary   string `json:"-"`
	RenderedPreview string `json:"-"`

	// Jira enrichment
	JiraIssues []jira.Issue `json:"jira_issues,omitempty"`

	// Approval gate
	ApprovalToken     string    `json:"-"`
	ApprovalExpiresAt time.Time `json:"-"`
}

// NewSession creates a session in the INIT state with a fresh ULID.
func NewSession(workflowType Type, now time.Time) *Session {
	return &Session{
		ID:        ulid.Make().String(),
		Type:      workflowType,
		State:     StateInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the session's activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// IsApprovalExpired reports whether the approval token has lapsed. A session
// that never issued a token counts as expired.
func (s *Session) IsApprovalExpired(now time.Time) bool {
	if s.ApprovalExpiresAt.IsZero() {
		return true
	}
	return now.After(s.ApprovalExpiresAt)
}

// IssueApprovalToken mints a fresh single-use token valid for the TTL.
func (s *Session) IssueApprovalToken(now time.Time) error {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return errors.NewInternal("generate approval token: " + err.Error())
	}
	s.ApprovalToken = hex.EncodeToString(raw)
	s.ApprovalExpiresAt = now.Add(ApprovalTokenTTL)
	return nil
}

// DisplayTitle is the page title the session will publish under.
func (s *Session) DisplayTitle() string {
	if s.PageTitle != "" {
		return s.PageTitle
	}
	return fmt.Sprintf("[%s] %s", s.IssueKey, s.IssueTitle)
}

// issueKeyPattern matches the Jira projects this server manages.
var issueKeyPattern = regexp.MustCompile(`\b(?:BNFDEV|BNFMT)-\d+\b`)

// ExtractIssueKeys pulls BNFDEV/BNFMT issue keys from free text, deduplicated
// in first-seen order.
func ExtractIssueKeys(text string) []string {
	matches := issueKeyPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			keys = append(keys, m)
		}
	}
	return keys
}

// WikiDateForIssue picks the date that decides an issue's year/month filing:
// the custom end date for BNFDEV, the creation date for BNFMT, empty for
// anything else.
func WikiDateForIssue(issue *jira.Issue) string {
	switch {
	case strings.HasPrefix(issue.Key, "BNFDEV"):
		if issue.CustomEndDate != "" {
			return truncateDate(issue.CustomEndDate)
		}
	case strings.HasPrefix(issue.Key, "BNFMT"):
		if issue.Created != "" {
			return truncateDate(issue.Created)
		}
	}
	return ""
}

func truncateDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// maxCommitListLines caps the rendered commit list.
const maxCommitListLines = 100

// BuildCommitListHTML turns a newline-separated commit list into escaped
// <li> rows, at most maxCommitListLines of them.
func BuildCommitListHTML(commitList string) string {
	lines := nonEmptyLines(commitList)
	if len(lines) == 0 {
		return "<li>(커밋 없음)</li>"
	}
	if len(lines) > maxCommitListLines {
		lines = lines[:maxCommitListLines]
	}
	items := make([]string, len(lines))
	for i, line := range lines {
		items[i] = "<li>" + html.EscapeString(line) + "</li>"
	}
	return strings.Join(items, "\n")
}

// AutoSummarize derives a short change summary from the first commit
// subjects, stripping leading hashes from oneline-format rows.
func AutoSummarize(commitList string) string {
	lines := nonEmptyLines(commitList)
	if len(lines) == 0 {
		return "(변경 내용 없음)"
	}
	if len(lines) > 5 {
		lines = lines[:5]
	}
	summary := make([]string, len(lines))
	for i, line := range lines {
		msg := line
		if before, after, found := strings.Cut(line, " "); found && len(before) >= 7 {
			msg = after
		}
		summary[i] = "- " + msg
	}
	return strings.Join(summary, "\n")
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
