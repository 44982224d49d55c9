package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devhatch/wikigen/internal/config"
	"github.com/devhatch/wikigen/internal/errors"
	"github.com/devhatch/wikigen/internal/gitdiff"
	"github.com/devhatch/wikigen/internal/template"
	"github.com/devhatch/wikigen/internal/workflow"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "wikigen",
		Usage:   "Approval-gated Confluence wiki page generator",
		Version: Version,
		Commands: []*cli.Command{
			collectCmd(cfg),
			analyzeCmd(cfg),
			templatesCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// collectOutput is the JSON shape of the collect and analyze commands.
type collectOutput struct {
	BranchName        string   `json:"branch_name"`
	RepositoryPath    string   `json:"repository_path"`
	Source            string   `json:"source"`
	CommitCount       int      `json:"commit_count"`
	CommitsRaw        string   `json:"commits_raw"`
	DiffStat          string   `json:"diff_stat,omitempty"`
	DiffSize          int      `json:"diff_size"`
	Diff              string   `json:"diff,omitempty"`
	IncludedFiles     []string `json:"included_files,omitempty"`
	ExcludedFiles     []string `json:"excluded_files,omitempty"`
	DetectedIssueKeys []string `json:"detected_issue_keys,omitempty"`
}

// collectCmd creates the collect command.
func collectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "collect",
		Usage:     "Collect a branch's unique commits and diff statistics",
		ArgsUsage: "<branch>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository path (auto-detected from configured repositories when omitted)"},
			&cli.BoolFlag{Name: "include-diff", Usage: "Include the filtered diff text"},
		},
		Action: func(c *cli.Context) error {
			return runCollect(cfg, c, c.Bool("include-diff"))
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Collect a branch's changes including the filtered diff",
		ArgsUsage: "<branch>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository path (auto-detected from configured repositories when omitted)"},
		},
		Action: func(c *cli.Context) error {
			return runCollect(cfg, c, true)
		},
	}
}

// runCollect is the shared action behind collect and analyze.
func runCollect(cfg *config.Config, c *cli.Context, includeDiff bool) error {
	branch := strings.TrimSpace(c.Args().First())
	if branch == "" {
		return outputError(errors.NewValidation("branch argument is required"))
	}

	repoPath, err := resolveRepoPath(cfg, c.String("repo"), branch)
	if err != nil {
		return outputError(err)
	}

	result, err := gitdiff.NewCollector(repoPath).CollectByBranch(context.Background(), branch)
	if err != nil {
		return outputError(err)
	}

	commitCount := 0
	for _, line := range strings.Split(result.CommitsRaw, "\n") {
		if strings.TrimSpace(line) != "" {
			commitCount++
		}
	}

	output := collectOutput{
		BranchName:        branch,
		RepositoryPath:    repoPath,
		Source:            result.Source,
		CommitCount:       commitCount,
		CommitsRaw:        result.CommitsRaw,
		DiffStat:          result.DiffStat,
		DiffSize:          len(result.DiffRaw),
		DetectedIssueKeys: workflow.ExtractIssueKeys(branch + "\n" + result.CommitsRaw),
	}
	if includeDiff && result.DiffRaw != "" {
		truncated := gitdiff.Truncate(result.DiffRaw, cfg.MaxDiffChars)
		output.Diff = truncated.DiffText
		output.IncludedFiles = truncated.IncludedFiles
		output.ExcludedFiles = truncated.ExcludedFiles
	}
	return outputJSON(output)
}

// resolveRepoPath picks the repository for a branch: the explicit flag when
// given, otherwise a scan across the configured repositories.
func resolveRepoPath(cfg *config.Config, explicit, branch string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if len(cfg.GitRepositories) == 0 {
		return "", errors.NewValidation("--repo is required: no repositories are configured in GIT_REPOSITORIES")
	}
	matches, err := gitdiff.DetectRepositories(context.Background(), branch, cfg.GitRepositories)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", errors.NewNotFound("branch", branch)
	case 1:
		return matches[0].Path, nil
	default:
		return "", errors.NewValidation(fmt.Sprintf(
			"branch %q exists in %d repositories; pass --repo to pick one", branch, len(matches)))
	}
}

// templateInfo is one row of the templates command output.
type templateInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// templatesCmd creates the templates command.
func templatesCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "List the configured wiki workflow templates",
		Action: func(c *cli.Context) error {
			repo := template.NewRepository(cfg.TemplatePath)
			workflows, err := repo.Workflows()
			if err != nil {
				return outputError(err)
			}

			items := make([]templateInfo, 0, len(workflows))
			for name, description := range workflows {
				items = append(items, templateInfo{Name: name, Description: description})
			}
			sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

			return outputJSON(map[string]any{
				"path":      cfg.TemplatePath,
				"workflows": items,
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if wErr, ok := err.(*errors.WikiGenError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", wErr.Code, wErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
