package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devhatch/wikigen/internal/config"
	"github.com/devhatch/wikigen/internal/errors"
	"github.com/devhatch/wikigen/internal/gitdiff"
	"github.com/devhatch/wikigen/internal/jira"
	"github.com/devhatch/wikigen/internal/mcp"
	"github.com/devhatch/wikigen/internal/template"
	"github.com/devhatch/wikigen/internal/wiki"
	"github.com/devhatch/wikigen/internal/workflow"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"collect": true, "analyze": true, "templates": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
             _  _     _
  __ __ __ (_)| |__ (_)  __ _  ___  _ _
  \ V  V / | || / / | | / _' |/ -_)| ' \
   \_/\_/  |_||_\_\ |_| \__, |\___||_||_|
                        |___/

  Approval-gated Confluence wiki page generator

  Usage: wikigen <command> [options]
         wikigen --help

  MCP server mode requires piped input.`)
}

// repoScanCollector locates a branch across the configured repositories and
// collects from the single matching one.
type repoScanCollector struct {
	repos map[string]string
}

func (c *repoScanCollector) CollectByBranch(ctx context.Context, branchName string) (*gitdiff.DiffResult, error) {
	matches, err := gitdiff.DetectRepositories(ctx, branchName, c.repos)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, errors.NewNotFound("branch", branchName)
	case 1:
		return gitdiff.NewCollector(matches[0].Path).CollectByBranch(ctx, branchName)
	default:
		return nil, errors.NewValidation(fmt.Sprintf(
			"branch %q exists in %d repositories", branchName, len(matches)))
	}
}

// buildHandlers wires the MCP handler dependencies from the configuration.
// Integrations without credentials stay nil; the handlers check per tool.
func buildHandlers(cfg *config.Config) *mcp.Handlers {
	repo := template.NewRepository(cfg.TemplatePath)
	renderer := template.NewRenderer(repo, cfg.AuthorName)

	var jiraClient *jira.Client
	if cfg.HasJira() {
		jiraClient = jira.NewClient(cfg.JiraBaseURL, cfg.UserID, cfg.UserPassword)
	}
	var wikiClient *wiki.Client
	if cfg.HasWikiBase() {
		wikiClient = wiki.NewClient(cfg.WikiBaseURL, cfg.UserID, cfg.UserPassword)
	}

	var orch *workflow.Orchestrator
	if wikiClient != nil {
		store := workflow.NewStore(time.Duration(cfg.SessionTTLMinutes)*time.Minute, nil)
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.CleanupExpired()
			}
		}()
		var collector workflow.DiffCollector
		if len(cfg.GitRepositories) > 0 {
			collector = &repoScanCollector{repos: cfg.GitRepositories}
		}
		var enricher workflow.JiraClient
		if jiraClient != nil {
			enricher = jiraClient
		}
		orch = workflow.NewOrchestrator(wikiClient, store, renderer, collector, enricher,
			cfg.WikiRootPageID, cfg.WikiSpaceKey, nil)
	}

	return mcp.NewHandlers(cfg, orch, jiraClient, wikiClient, repo)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before config load (no config needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".wikigen")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'wikigen --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(buildHandlers(cfg), Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
