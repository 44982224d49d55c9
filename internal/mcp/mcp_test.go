package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/devhatch/wikigen/internal/config"
	"github.com/devhatch/wikigen/internal/errors"
	"github.com/devhatch/wikigen/internal/jira"
	"github.com/devhatch/wikigen/internal/template"
	"github.com/devhatch/wikigen/internal/wiki"
	"github.com/devhatch/wikigen/internal/workflow"
)

const testTemplates = `
title_formats:
  year: "{{.YEAR}}년"
  month: "{{.MONTH}}월"
workflows:
  issue_page:
    description: issue summary page
    body: |
      <h2>{{.ISSUE_KEY}} {{.ISSUE_TITLE}}</h2>
      <ul>{{.COMMIT_LIST}}</ul>
      {{.CHANGE_SUMMARY_HTML}}
  content_page:
    description: change summary page
    body: |
      <h2>{{.INPUT_TYPE}}: {{.INPUT_VALUE}}</h2>
      <ul>{{.COMMIT_LIST}}</ul>
      {{.CHANGE_SUMMARY_HTML}}
`

// fakeWiki is an in-memory workflow.WikiClient.
type fakeWiki struct {
	nextID   int
	children map[string][]wiki.Page
	contents map[string]*wiki.PageWithContent
	search   map[string]*wiki.Page
	created  []string
}

func newFakeWiki() *fakeWiki {
	return &fakeWiki{
		children: map[string][]wiki.Page{},
		contents: map[string]*wiki.PageWithContent{},
		search:   map[string]*wiki.Page{},
	}
}

func (f *fakeWiki) CreatePage(ctx context.Context, parentPageID, title, body, spaceKey string) (*wiki.Page, error) {
	f.nextID++
	page := wiki.Page{
		ID:       fmt.Sprintf("%d", 2000+f.nextID),
		Title:    title,
		URL:      "http://wiki.local/pages/viewpage.action?pageId=" + fmt.Sprintf("%d", 2000+f.nextID),
		SpaceKey: spaceKey,
	}
	f.children[parentPageID] = append(f.children[parentPageID], page)
	f.contents[page.ID] = &wiki.PageWithContent{Page: page, Body: body, Version: 1}
	f.created = append(f.created, title)
	return &page, nil
}

func (f *fakeWiki) FindPageByTitle(ctx context.Context, parentPageID, title string) (*wiki.Page, error) {
	for _, page := range f.children[parentPageID] {
		if page.Title == title {
			p := page
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeWiki) SearchPageByTitle(ctx context.Context, title, spaceKey string) (*wiki.Page, error) {
	return f.search[title], nil
}

func (f *fakeWiki) GetOrCreateYearMonthPage(ctx context.Context, rootPageID string, year, month int, spaceKey, yearTitle, monthTitle string) (string, string, error) {
	yearID, err := f.findOrCreate(ctx, rootPageID, yearTitle, spaceKey)
	if err != nil {
		return "", "", err
	}
	monthID, err := f.findOrCreate(ctx, yearID, monthTitle, spaceKey)
	if err != nil {
		return "", "", err
	}
	return yearID, monthID, nil
}

func (f *fakeWiki) findOrCreate(ctx context.Context, parentID, title, spaceKey string) (string, error) {
	if page, _ := f.FindPageByTitle(ctx, parentID, title); page != nil {
		return page.ID, nil
	}
	page, err := f.CreatePage(ctx, parentID, title, "<p>"+title+" 이슈 정리 목록</p>", spaceKey)
	if err != nil {
		return "", err
	}
	return page.ID, nil
}

func (f *fakeWiki) GetPageWithContent(ctx context.Context, pageID string) (*wiki.PageWithContent, error) {
	page, ok := f.contents[pageID]
	if !ok {
		return nil, errors.NewNotFound("wiki page", pageID)
	}
	copied := *page
	return &copied, nil
}

func (f *fakeWiki) UpdatePage(ctx context.Context, pageID, title, body string, version int, spaceKey string) (*wiki.Page, error) {
	page, ok := f.contents[pageID]
	if !ok {
		return nil, errors.NewNotFound("wiki page", pageID)
	}
	page.Body = body
	page.Version = version
	page.Title = title
	result := page.Page
	return &result, nil
}

// testSetup builds wiki-configured handlers backed by the in-memory fake.
func testSetup(t *testing.T) (*Handlers, *fakeWiki) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wiki_templates.yaml")
	if err := os.WriteFile(path, []byte(testTemplates), 0o644); err != nil {
		t.Fatalf("write templates: %v", err)
	}
	repo := template.NewRepository(path)
	renderer := template.NewRenderer(repo, "tester")

	cfg := config.DefaultConfig()
	cfg.WikiBaseURL = "http://wiki.local"
	cfg.WikiSpaceKey = "DEV"
	cfg.WikiRootPageID = "1000"
	cfg.TemplatePath = path

	fake := newFakeWiki()
	store := workflow.NewStore(30*time.Minute, nil)
	orch := workflow.NewOrchestrator(fake, store, renderer, nil, nil, cfg.WikiRootPageID, cfg.WikiSpaceKey, nil)

	return NewHandlers(cfg, orch, nil, nil, repo), fake
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleCreateIssuePage_PreviewThenApprove(t *testing.T) {
	h, fake := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleCreateIssuePage(ctx, makeRequest(map[string]any{
		"issue_key":       "bnfdev-1",
		"issue_title":     "Fix login",
		"commit_list":     "abc1234 fix login\ndef5678 add test",
		"resolution_date": "2026-03-10",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	preview := parseOutput(t, result)

	if preview["state"] != string(workflow.StateWaitApproval) {
		t.Errorf("state = %v, want wait_approval", preview["state"])
	}
	if preview["page_title"] != "[BNFDEV-1] Fix login" {
		t.Errorf("page_title = %v", preview["page_title"])
	}
	token, _ := preview["approval_token"].(string)
	if len(token) != 32 {
		t.Errorf("approval_token length = %d, want 32", len(token))
	}
	if preview["warning"] == "" || !strings.Contains(preview["next_step"].(string), "approve_wiki_generation") {
		t.Error("preview must carry the approval warning and follow-up call")
	}
	if len(fake.created) != 0 {
		t.Fatalf("no page may exist before approval, got %v", fake.created)
	}

	sessionID := preview["session_id"].(string)
	approveResult, err := h.HandleApprove(ctx, makeRequest(map[string]any{
		"session_id":     sessionID,
		"approval_token": token,
	}))
	if err != nil {
		t.Fatalf("approve returned error: %v", err)
	}
	created := parseOutput(t, approveResult)

	if created["title"] != "[BNFDEV-1] Fix login" {
		t.Errorf("created title = %v", created["title"])
	}
	want := []string{"2026년", "3월", "[BNFDEV-1] Fix login"}
	if len(fake.created) != len(want) {
		t.Fatalf("created pages = %v, want %v", fake.created, want)
	}
	for i, title := range want {
		if fake.created[i] != title {
			t.Errorf("created[%d] = %q, want %q", i, fake.created[i], title)
		}
	}

	// Second approval must fail: the token is single use and the session is
	// no longer awaiting approval.
	again, _ := h.HandleApprove(ctx, makeRequest(map[string]any{
		"session_id":     sessionID,
		"approval_token": token,
	}))
	assertErrorCode(t, again, string(errors.ErrApproval))
}

func TestHandleCreateIssuePage_Validation(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing issue_key", map[string]any{"issue_title": "t", "commit_list": "abc1234 x"}},
		{"missing issue_title", map[string]any{"issue_key": "BNFDEV-1", "commit_list": "abc1234 x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleCreateIssuePage(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			assertErrorCode(t, result, string(errors.ErrValidation))
		})
	}
}

func TestHandleCreateIssuePage_WikiNotConfigured(t *testing.T) {
	h := NewHandlers(config.DefaultConfig(), nil, nil, nil, nil)

	result, err := h.HandleCreateIssuePage(context.Background(), makeRequest(map[string]any{
		"issue_key":   "BNFDEV-1",
		"issue_title": "Fix login",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrValidation))
}

func TestHandleApprove_TokenMismatch(t *testing.T) {
	h, fake := testSetup(t)
	ctx := context.Background()

	result, _ := h.HandleCreateContentPage(ctx, makeRequest(map[string]any{
		"page_title":  "dev_rf",
		"commit_list": "abc1234 refactor",
	}))
	preview := parseOutput(t, result)

	denied, _ := h.HandleApprove(ctx, makeRequest(map[string]any{
		"session_id":     preview["session_id"],
		"approval_token": "0000000000000000000000000000beef",
	}))
	assertErrorCode(t, denied, string(errors.ErrApproval))
	if len(fake.created) != 0 {
		t.Errorf("denied approval must not create pages, got %v", fake.created)
	}
}

func TestHandleStatus(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	missing, _ := h.HandleStatus(ctx, makeRequest(map[string]any{"session_id": "nope"}))
	assertErrorCode(t, missing, string(errors.ErrNotFound))

	started, _ := h.HandleCreateContentPage(ctx, makeRequest(map[string]any{
		"page_title":  "dev_rf",
		"commit_list": "abc1234 refactor",
	}))
	preview := parseOutput(t, started)

	result, err := h.HandleStatus(ctx, makeRequest(map[string]any{"session_id": preview["session_id"]}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	status := parseOutput(t, result)
	if status["state"] != string(workflow.StateWaitApproval) {
		t.Errorf("state = %v, want wait_approval", status["state"])
	}
	if status["approval_token"] != preview["approval_token"] {
		t.Error("status must expose the token while waiting for approval")
	}
}

func TestHandleUpdatePage_Flow(t *testing.T) {
	h, fake := testSetup(t)
	ctx := context.Background()

	page := wiki.Page{ID: "42", Title: "Ops Notes", URL: "http://wiki.local/x", SpaceKey: "DEV"}
	fake.contents["42"] = &wiki.PageWithContent{Page: page, Body: "<p>old</p>", Version: 3}
	fake.search["Ops Notes"] = &page

	result, err := h.HandleUpdatePage(ctx, makeRequest(map[string]any{
		"page_title": "Ops Notes",
		"body":       "release note added",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	preview := parseOutput(t, result)
	if preview["workflow_type"] != string(workflow.TypeUpdatePage) {
		t.Errorf("workflow_type = %v", preview["workflow_type"])
	}

	approved, _ := h.HandleApprove(ctx, makeRequest(map[string]any{
		"session_id":     preview["session_id"],
		"approval_token": preview["approval_token"],
	}))
	updated := parseOutput(t, approved)
	if updated["was_updated"] != true {
		t.Error("update workflow must report was_updated")
	}
	if fake.contents["42"].Version != 4 {
		t.Errorf("version = %d, want 4", fake.contents["42"].Version)
	}
	if !strings.Contains(fake.contents["42"].Body, "<p>old</p>") ||
		!strings.Contains(fake.contents["42"].Body, "release note added") {
		t.Errorf("merged body = %q", fake.contents["42"].Body)
	}
}

func TestHandleCreateCustomPage_MissingContent(t *testing.T) {
	h, _ := testSetup(t)

	result, _ := h.HandleCreateCustomPage(context.Background(), makeRequest(map[string]any{
		"page_title":     "Design Draft",
		"parent_page_id": "77",
	}))
	assertErrorCode(t, result, string(errors.ErrValidation))
}

func TestHandleGetWikiPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/content/42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "42",
			"title":   "Ops Notes",
			"space":   map[string]string{"key": "DEV"},
			"body":    map[string]any{"storage": map[string]string{"value": "<p>hello</p>"}},
			"version": map[string]int{"number": 7},
			"_links":  map[string]string{"webui": "/display/DEV/Ops+Notes"},
		})
	})
	mux.HandleFunc("GET /rest/api/content", func(w http.ResponseWriter, r *http.Request) {
		results := []any{}
		if r.URL.Query().Get("title") == "Ops Notes" {
			results = append(results, map[string]any{"id": "42", "title": "Ops Notes"})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.WikiBaseURL = srv.URL
	cfg.WikiSpaceKey = "DEV"
	h := NewHandlers(cfg, nil, nil, wiki.NewClient(srv.URL, "user", "pw"), nil)
	ctx := context.Background()

	result, err := h.HandleGetWikiPage(ctx, makeRequest(map[string]any{"page_id": "42"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	page := parseOutput(t, result)
	if page["title"] != "Ops Notes" || page["version"] != float64(7) {
		t.Errorf("page = %v", page)
	}
	if page["body"] != "<p>hello</p>" {
		t.Errorf("body = %v", page["body"])
	}

	byTitle, _ := h.HandleGetWikiPage(ctx, makeRequest(map[string]any{"page_title": "Ops Notes"}))
	if parseOutput(t, byTitle)["id"] != "42" {
		t.Error("title lookup must resolve to the page id")
	}

	missing, _ := h.HandleGetWikiPage(ctx, makeRequest(map[string]any{"page_title": "Nope"}))
	assertErrorCode(t, missing, string(errors.ErrNotFound))

	neither, _ := h.HandleGetWikiPage(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, neither, string(errors.ErrValidation))
}

// Jira handlers

func jiraTestHandlers(t *testing.T, capturedJQL *string) *Handlers {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		*capturedJQL = r.URL.Query().Get("jql")
		json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"issues": []any{map[string]any{
				"key": "BNFDEV-1",
				"fields": map[string]any{
					"summary":   "Fix login",
					"status":    map[string]string{"name": "완료"},
					"assignee":  map[string]string{"displayName": "mkim"},
					"issuetype": map[string]string{"name": "Bug"},
					"created":   "2026-02-15T10:30:00.000+0900",
				},
			}},
		})
	})
	mux.HandleFunc("GET /rest/api/2/issue/{key}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("key") != "BNFDEV-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"key": "BNFDEV-1",
			"fields": map[string]any{
				"summary":   "Fix login",
				"status":    map[string]string{"name": "진행중(개발)"},
				"issuetype": map[string]string{"name": "Bug"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.JiraBaseURL = srv.URL
	cfg.UserID = "mkim"
	return NewHandlers(cfg, nil, jira.NewClient(srv.URL, "mkim", "pw"), nil, nil)
}

func TestHandleGetIssues_BuildsJQL(t *testing.T) {
	var gotJQL string
	h := jiraTestHandlers(t, &gotJQL)

	result, err := h.HandleGetIssues(context.Background(), makeRequest(map[string]any{
		"statuses":    []any{"Done"},
		"project_key": "bnfdev",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["count"] != float64(1) {
		t.Errorf("count = %v, want 1", output["count"])
	}
	for _, fragment := range []string{`assignee="mkim"`, `project="BNFDEV"`, "status in (", `"배포완료(BNF)"`, `"완료"`} {
		if !strings.Contains(gotJQL, fragment) {
			t.Errorf("jql %q missing %q", gotJQL, fragment)
		}
	}
}

func TestHandleGetIssues_NoFilters(t *testing.T) {
	var gotJQL string
	h := jiraTestHandlers(t, &gotJQL)

	result, _ := h.HandleGetIssues(context.Background(), makeRequest(map[string]any{}))
	parseOutput(t, result)

	if gotJQL != `assignee="mkim"` {
		t.Errorf("jql = %q, want bare assignee clause", gotJQL)
	}
}

func TestHandleGetIssue(t *testing.T) {
	var gotJQL string
	h := jiraTestHandlers(t, &gotJQL)
	ctx := context.Background()

	result, err := h.HandleGetIssue(ctx, makeRequest(map[string]any{"key": "bnfdev-1"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	issue := parseOutput(t, result)
	if issue["key"] != "BNFDEV-1" || issue["status"] != "진행중(개발)" {
		t.Errorf("issue = %v", issue)
	}

	missing, _ := h.HandleGetIssue(ctx, makeRequest(map[string]any{"key": "BNFDEV-9"}))
	assertErrorCode(t, missing, string(errors.ErrNotFound))

	empty, _ := h.HandleGetIssue(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, empty, string(errors.ErrValidation))
}

func TestJiraTools_NotConfigured(t *testing.T) {
	h := NewHandlers(config.DefaultConfig(), nil, nil, nil, nil)
	ctx := context.Background()

	result, _ := h.HandleGetIssues(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, string(errors.ErrValidation))

	result, _ = h.HandleTransitionIssue(ctx, makeRequest(map[string]any{
		"key": "BNFDEV-1", "target_status": "완료",
	}))
	assertErrorCode(t, result, string(errors.ErrValidation))
}

// Git collection handlers

func gitOrSkip(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")
	runGit(t, dir, "config", "commit.gpgsign", "false")
	runGit(t, dir, "checkout", "-q", "-b", "dev")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("base\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial commit")
	runGit(t, dir, "checkout", "-q", "-b", "dev_BNFDEV-7")
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("feature\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "BNFDEV-7 add feature")
	return dir
}

func TestHandleCollectCommits(t *testing.T) {
	gitOrSkip(t)

	dir := initTestRepo(t)
	cfg := config.DefaultConfig()
	cfg.GitRepositories = map[string]string{"svc": dir}
	h := NewHandlers(cfg, nil, nil, nil, nil)
	ctx := context.Background()

	result, err := h.HandleCollectCommits(ctx, makeRequest(map[string]any{
		"branch_name": "dev_BNFDEV-7",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["commit_count"] != float64(1) {
		t.Errorf("commit_count = %v, want 1", output["commit_count"])
	}
	if output["source"] != "active_branch" {
		t.Errorf("source = %v, want active_branch", output["source"])
	}
	keys, _ := output["detected_issue_keys"].([]any)
	if len(keys) != 1 || keys[0] != "BNFDEV-7" {
		t.Errorf("detected_issue_keys = %v", output["detected_issue_keys"])
	}
	if output["diff"] != nil {
		t.Error("diff must be withheld without include_diff")
	}
	if guidance, _ := output["guidance"].(string); !strings.Contains(guidance, "include_diff=true") {
		t.Errorf("guidance = %v", output["guidance"])
	}

	withDiff, _ := h.HandleCollectCommits(ctx, makeRequest(map[string]any{
		"branch_name":  "dev_BNFDEV-7",
		"include_diff": true,
	}))
	diffOutput := parseOutput(t, withDiff)
	if diff, _ := diffOutput["diff"].(string); !strings.Contains(diff, "b.txt") {
		t.Errorf("diff = %q, want b.txt hunk", diffOutput["diff"])
	}
}

func TestHandleAnalyzeChanges_AlwaysIncludesDiff(t *testing.T) {
	gitOrSkip(t)

	dir := initTestRepo(t)
	cfg := config.DefaultConfig()
	cfg.GitRepositories = map[string]string{"svc": dir}
	h := NewHandlers(cfg, nil, nil, nil, nil)

	result, err := h.HandleAnalyzeChanges(context.Background(), makeRequest(map[string]any{
		"branch_name": "dev_BNFDEV-7",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if diff, _ := output["diff"].(string); !strings.Contains(diff, "feature") {
		t.Errorf("diff = %q, want change content", output["diff"])
	}
}

func TestHandleCollectCommits_RepositoryResolution(t *testing.T) {
	ctx := context.Background()

	// No configured repositories and no explicit path.
	h := NewHandlers(config.DefaultConfig(), nil, nil, nil, nil)
	result, _ := h.HandleCollectCommits(ctx, makeRequest(map[string]any{"branch_name": "dev_x"}))
	assertErrorCode(t, result, string(errors.ErrValidation))

	// Explicit path outside the allowlist.
	cfg := config.DefaultConfig()
	cfg.GitRepositories = map[string]string{"svc": "/srv/repos/svc"}
	h = NewHandlers(cfg, nil, nil, nil, nil)
	result, _ = h.HandleCollectCommits(ctx, makeRequest(map[string]any{
		"branch_name":     "dev_x",
		"repository_path": "/tmp/elsewhere",
	}))
	assertErrorCode(t, result, string(errors.ErrValidation))

	// Missing branch name.
	result, _ = h.HandleCollectCommits(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, string(errors.ErrValidation))
}

func TestHandleReloadTemplates(t *testing.T) {
	h, _ := testSetup(t)

	result, err := h.HandleReloadTemplates(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["reloaded"] != true {
		t.Error("expected reloaded=true")
	}
	workflows, _ := output["workflows"].([]any)
	found := false
	for _, name := range workflows {
		if name == "issue_page" {
			found = true
		}
	}
	if !found {
		t.Errorf("workflows = %v, want issue_page listed", workflows)
	}
}

// Server registration

func TestServerRegistration(t *testing.T) {
	h, _ := testSetup(t)

	s := NewServer(h, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"create_wiki_issue_page",
		"create_wiki_page_with_content",
		"create_wiki_custom_page",
		"update_wiki_page",
		"approve_wiki_generation",
		"get_wiki_generation_status",
		"get_wiki_page",
		"collect_branch_commits",
		"analyze_branch_changes",
		"get_jira_issue",
		"get_jira_issues",
		"get_jira_project_meta",
		"complete_jira_issue",
		"transition_jira_issue",
		"create_jira_filter",
		"reload_wiki_templates",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}

	if len(AllToolNames()) != len(expectedTools) {
		t.Errorf("AllToolNames() returned %d names, want %d", len(AllToolNames()), len(expectedTools))
	}
}

// Error results

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	internal := errors.NewInternal("open /tmp/secret.yaml: permission denied")
	internal.Details = map[string]any{"path": "/tmp/secret.yaml"}

	r := errorResult(internal)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("session", "01XYZ"))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
	if errObj["status"] != float64(404) {
		t.Errorf("status=%v, want 404", errObj["status"])
	}
}

func TestErrorResult_PlainErrorMapsToInternal(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	if errObj["code"] != "INTERNAL" {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
	if strings.Contains(errObj["message"].(string), "boom") {
		t.Error("internal message must not leak the original error")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if result == nil || !result.IsError {
		t.Errorf("expected error result with code %s", expectedCode)
		return
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}
	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
