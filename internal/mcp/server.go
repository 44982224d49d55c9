// Package mcp exposes the wiki generation workflows, git collection and
// issue tracker operations as MCP tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"create_wiki_issue_page": {
		def:     issuePageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateIssuePage },
	},
	"create_wiki_page_with_content": {
		def:     contentPageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateContentPage },
	},
	"create_wiki_custom_page": {
		def:     customPageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateCustomPage },
	},
	"update_wiki_page": {
		def:     updatePageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdatePage },
	},
	"approve_wiki_generation": {
		def:     approveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApprove },
	},
	"get_wiki_generation_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"get_wiki_page": {
		def:     getWikiPageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetWikiPage },
	},
	"collect_branch_commits": {
		def:     collectCommitsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCollectCommits },
	},
	"analyze_branch_changes": {
		def:     analyzeChangesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyzeChanges },
	},
	"get_jira_issue": {
		def:     getIssueToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetIssue },
	},
	"get_jira_issues": {
		def:     getIssuesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetIssues },
	},
	"get_jira_project_meta": {
		def:     projectMetaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectMeta },
	},
	"complete_jira_issue": {
		def:     completeIssueToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCompleteIssue },
	},
	"transition_jira_issue": {
		def:     transitionIssueToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTransitionIssue },
	},
	"create_jira_filter": {
		def:     createFilterToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateFilter },
	},
	"reload_wiki_templates": {
		def:     reloadTemplatesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReloadTemplates },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server with all wikigen tools registered.
func NewServer(h *Handlers, version string) *server.MCPServer {
	name := h.cfg.ServerName
	if name == "" {
		name = "wikigen"
	}
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run starts the MCP server using stdio transport.
func Run(h *Handlers, version string) error {
	return server.ServeStdio(NewServer(h, version))
}
