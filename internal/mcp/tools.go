package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are written for the LLM driving the
// server: preview tools warn that nothing is written before approval.

var issuePageToolDef = mcp.NewTool("create_wiki_issue_page",
	mcp.WithDescription("Prepare a wiki summary page for a completed Jira issue. "+
		"Nothing is created immediately: the tool returns a preview plus a session id "+
		"and approval token, and the page is only written after approve_wiki_generation. "+
		"When commit_list is omitted the commits are collected from the issue's dev_<KEY> branch."),
	mcp.WithString("issue_key", mcp.Required(),
		mcp.Description("Jira issue key, e.g. 'BNFDEV-1234'")),
	mcp.WithString("issue_title", mcp.Required(),
		mcp.Description("Jira issue title")),
	mcp.WithString("commit_list",
		mcp.Description("Newline separated commit list ('abc1234 fix: ...'). Collected automatically from local git when omitted")),
	mcp.WithString("change_summary",
		mcp.Description("Change summary; generated from commit messages when omitted")),
	mcp.WithString("assignee",
		mcp.Description("Assignee name, defaults to '미지정'")),
	mcp.WithString("resolution_date",
		mcp.Description("Resolution date (YYYY-MM-DD), defaults to today or the issue's own date")),
	mcp.WithString("priority",
		mcp.Description("Priority, defaults to '보통'")),
	mcp.WithString("project_name",
		mcp.Description("Project name. When the page title already exists the content is appended as a per-project section instead of failing")),
)

var contentPageToolDef = mcp.NewTool("create_wiki_page_with_content",
	mcp.WithDescription("Prepare a wiki change-summary page from externally collected commits. "+
		"Returns a preview; the page is only written after approve_wiki_generation. "+
		"Use collect_branch_commits to gather the commit list first."),
	mcp.WithString("page_title", mcp.Required(),
		mcp.Description("Wiki page title, e.g. 'dev_BNFDEV-1234'")),
	mcp.WithString("commit_list", mcp.Required(),
		mcp.Description("Newline separated commit list")),
	mcp.WithString("input_type",
		mcp.Description("Input kind label, defaults to '브랜치명'")),
	mcp.WithString("input_value",
		mcp.Description("Original identifier (branch name, MR number, ...)")),
	mcp.WithString("base_date",
		mcp.Description("Base date (YYYY-MM-DD) for the year/month hierarchy, defaults to today")),
	mcp.WithString("change_summary",
		mcp.Description("Change summary; generated from commit messages when omitted")),
	mcp.WithString("jira_issue_keys",
		mcp.Description("Comma separated Jira issue keys ('BNFDEV-1234,BNFDEV-1235'). Issue details are embedded and the issue's date drives the year/month path")),
	mcp.WithString("diff_stat",
		mcp.Description("git diff --stat output, included in the changed-files section")),
	mcp.WithString("project_name",
		mcp.Description("Project name; enables per-project append when the title already exists")),
)

var customPageToolDef = mcp.NewTool("create_wiki_custom_page",
	mcp.WithDescription("Prepare a free-form wiki page directly under a given parent page, outside the "+
		"year/month hierarchy. Markdown content is converted to Confluence storage HTML. "+
		"Returns a preview; the page is only written after approve_wiki_generation. "+
		"One of parent_page_id or parent_page_title is required; the id wins when both are set."),
	mcp.WithString("page_title", mcp.Required(),
		mcp.Description("Title of the page to create")),
	mcp.WithString("content", mcp.Required(),
		mcp.Description("Page content, markdown or plain text")),
	mcp.WithString("parent_page_id",
		mcp.Description("Parent page id, e.g. '339090255'")),
	mcp.WithString("parent_page_title",
		mcp.Description("Exact parent page title, resolved by search within the space")),
	mcp.WithString("space_key",
		mcp.Description("Space key, defaults to the configured space")),
)

var updatePageToolDef = mcp.NewTool("update_wiki_page",
	mcp.WithDescription("Prepare an update to an existing wiki page. Returns a preview; the update is "+
		"only applied after approve_wiki_generation. Read the page with get_wiki_page first. "+
		"One of page_id or page_title is required; the id wins when both are set."),
	mcp.WithString("body", mcp.Required(),
		mcp.Description("Content to append, markdown or Confluence storage HTML")),
	mcp.WithString("page_id",
		mcp.Description("Id of the page to update")),
	mcp.WithString("page_title",
		mcp.Description("Exact title of the page to update, resolved by search within the space")),
	mcp.WithString("space_key",
		mcp.Description("Space key used for title search, defaults to the configured space")),
)

var approveToolDef = mcp.NewTool("approve_wiki_generation",
	mcp.WithDescription("Approve a pending wiki generation session and perform the actual page "+
		"creation or update. Only valid while the session is in wait_approval; the token is "+
		"single use and expires."),
	mcp.WithString("session_id", mcp.Required(),
		mcp.Description("Wiki generation session id")),
	mcp.WithString("approval_token", mcp.Required(),
		mcp.Description("Approval token from the preview or get_wiki_generation_status")),
)

var statusToolDef = mcp.NewTool("get_wiki_generation_status",
	mcp.WithDescription("Report a wiki generation session's state, preview excerpt and, while the "+
		"session waits for approval, its approval token."),
	mcp.WithString("session_id", mcp.Required(),
		mcp.Description("Wiki generation session id")),
)

var getWikiPageToolDef = mcp.NewTool("get_wiki_page",
	mcp.WithDescription("Fetch a wiki page including its body (Confluence storage HTML) and version. "+
		"One of page_id or page_title is required; the id wins when both are set."),
	mcp.WithString("page_id",
		mcp.Description("Page id, e.g. '339090255'")),
	mcp.WithString("page_title",
		mcp.Description("Exact page title, resolved by search within the space")),
	mcp.WithString("space_key",
		mcp.Description("Space key used for title search, defaults to the configured space")),
)

var collectCommitsToolDef = mcp.NewTool("collect_branch_commits",
	mcp.WithDescription("Collect a branch's unique commits and diff statistics from a local git "+
		"repository. Prefer this over raw git commands: the base branch is auto-detected "+
		"(dev, origin/dev, develop, origin/develop, main, master) and merged branches are "+
		"reconstructed from their merge commit. Without repository_path the branch is located "+
		"across the configured repositories. include_diff defaults to false; set it to true to "+
		"receive the filtered diff for change-summary analysis."),
	mcp.WithString("branch_name", mcp.Required(),
		mcp.Description("Branch to collect, e.g. 'dev_BNFDEV-1234'")),
	mcp.WithString("repository_path",
		mcp.Description("Absolute repository path; must be inside a configured repository. Auto-detected when omitted")),
	mcp.WithBoolean("include_diff",
		mcp.Description("Include the priority-filtered diff text (larger response)")),
)

var analyzeChangesToolDef = mcp.NewTool("analyze_branch_changes",
	mcp.WithDescription("Collect and report a branch's changes for ad-hoc analysis ('what changed?'). "+
		"Always includes the priority-filtered, secret-masked diff. collect_branch_commits is the "+
		"wiki-generation variant of this tool."),
	mcp.WithString("branch_name", mcp.Required(),
		mcp.Description("Branch to analyze")),
	mcp.WithString("repository_path",
		mcp.Description("Absolute repository path; auto-detected when omitted")),
)

var getIssueToolDef = mcp.NewTool("get_jira_issue",
	mcp.WithDescription("Fetch a single Jira issue by key."),
	mcp.WithString("key", mcp.Required(),
		mcp.Description("Jira issue key, e.g. 'BNFDEV-2365' or 'BNFMT-343'")),
)

var getIssuesToolDef = mcp.NewTool("get_jira_issues",
	mcp.WithDescription("List Jira issues assigned to the configured user. Without parameters all "+
		"statuses and projects are returned. English status names are expanded to the Korean "+
		"workflow statuses: 'Done' covers 완료, 완료(개발), 완료(설계), DONE(BNF), 개발완료(BNF), "+
		"배포완료(BNF), 검수완료(BNF), 답변완료(BNF) and 기획/설계 완료(BNF); 'In Progress', "+
		"'To Do'/'Open', 'Pending' and 'In Review' expand similarly. Unknown values pass through "+
		"unchanged."),
	mcp.WithArray("statuses",
		mcp.Description("Status filter, e.g. ['완료', '진행중(개발)'] or ['Done']. Omit for all statuses"),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("project_key",
		mcp.Description("Project filter, e.g. 'BNFDEV'. Omit for all projects")),
)

var projectMetaToolDef = mcp.NewTool("get_jira_project_meta",
	mcp.WithDescription("List a Jira project's issue types and the workflow statuses of each type."),
	mcp.WithString("project_key", mcp.Required(),
		mcp.Description("Jira project key, e.g. 'BNFDEV'")),
)

var completeIssueToolDef = mcp.NewTool("complete_jira_issue",
	mcp.WithDescription("Transition a Jira issue to its completion status. The best reachable "+
		"completion status is picked in priority order (배포완료(BNF), DONE(BNF), 검수완료(BNF), "+
		"개발완료(BNF), 답변완료(BNF), 완료(개발), 완료). The end date lands in customfield_10833 "+
		"for BNFDEV issues, is skipped for BNFMT and goes to duedate otherwise."),
	mcp.WithString("key", mcp.Required(),
		mcp.Description("Issue key to complete")),
	mcp.WithString("due_date",
		mcp.Description("End date (YYYY-MM-DD), defaults to today")),
)

var transitionIssueToolDef = mcp.NewTool("transition_jira_issue",
	mcp.WithDescription("Transition a Jira issue to a target status. Only statuses reachable from "+
		"the issue's current state are accepted."),
	mcp.WithString("key", mcp.Required(),
		mcp.Description("Issue key to transition")),
	mcp.WithString("target_status", mcp.Required(),
		mcp.Description("Target status name, e.g. '진행중(개발)' or '운영검수(BNF)'")),
)

var createFilterToolDef = mcp.NewTool("create_jira_filter",
	mcp.WithDescription("Create a Jira filter from a name and a JQL query."),
	mcp.WithString("name", mcp.Required(),
		mcp.Description("Filter name")),
	mcp.WithString("jql", mcp.Required(),
		mcp.Description("JQL query, e.g. 'assignee = currentUser() AND status = \"진행중(개발)\"'")),
)

var reloadTemplatesToolDef = mcp.NewTool("reload_wiki_templates",
	mcp.WithDescription("Reload the wiki template YAML file without restarting the server."),
)
