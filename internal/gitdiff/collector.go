package gitdiff

import (
	"bytes"
	"context"
	"log"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/devhatch/wikigen/internal/errors"
)

// BaseBranchCandidates is the ordered list of base branches probed during
// merge-commit search and active-branch fallback. The first existing
// candidate wins.
var BaseBranchCandidates = []string{
	"dev", "origin/dev",
	"develop", "origin/develop",
	"main", "origin/main",
	"master", "origin/master",
}

// GitTimeout bounds every git subprocess invocation. A timed-out process is
// killed and reported as a TIMEOUT error, never retried here.
const GitTimeout = 60 * time.Second

// DiffResult is the immutable output of one collection call.
type DiffResult struct {
	CommitsRaw string `json:"commits_raw"`
	DiffRaw    string `json:"diff_raw"`
	DiffStat   string `json:"diff_stat"`
	BranchName string `json:"branch_name"`

	// Source tags the strategy that produced the result:
	// "merge_commit" or "active_branch".
	Source string `json:"source"`
}

// Collector gathers commit lists and diffs from a local git working copy.
type Collector struct {
	workDir string
	timeout time.Duration
}

// NewCollector creates a Collector rooted at workDir.
func NewCollector(workDir string) *Collector {
	if workDir == "" {
		workDir = "."
	}
	return &Collector{workDir: workDir, timeout: GitTimeout}
}

// WithTimeout overrides the per-invocation git timeout and returns the
// collector.
func (c *Collector) WithTimeout(d time.Duration) *Collector {
	c.timeout = d
	return c
}

// gitResult holds the outcome of one git invocation.
type gitResult struct {
	stdout   string
	exitCode int
}

// runGit executes a git subcommand in the collector's working directory.
// The invocation is bounded by the collector timeout; on expiry the process
// is killed and a TIMEOUT error returned.
func (c *Collector) runGit(ctx context.Context, args ...string) (gitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return gitResult{}, errors.NewTimeout("git "+strings.Join(args, " "), int(c.timeout.Seconds()))
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return gitResult{stdout: strings.TrimSpace(stdout.String()), exitCode: exitErr.ExitCode()}, nil
		}
		return gitResult{}, errors.NewCollection("git invocation failed: " + err.Error())
	}
	return gitResult{stdout: strings.TrimSpace(stdout.String()), exitCode: 0}, nil
}

// refExists reports whether a ref resolves in the working copy.
func (c *Collector) refExists(ctx context.Context, ref string) (bool, error) {
	res, err := c.runGit(ctx, "rev-parse", "--verify", ref)
	if err != nil {
		return false, err
	}
	return res.exitCode == 0, nil
}

// mergeExtraction holds commits and diff recovered from a merge commit.
type mergeExtraction struct {
	commitsRaw string
	diffRaw    string
	diffStat   string
}

// ExtractFromMergeCommit recovers a branch's commit range and diff from the
// two-parent merge commit that incorporated it into a base branch. Base
// branch candidates are probed in order; the first candidate with at least
// one matching merge commit wins and later candidates are not consulted.
// Returns nil when no merge commit references the branch.
func (c *Collector) ExtractFromMergeCommit(ctx context.Context, branchName string) (*mergeExtraction, error) {
	var mergeLines []string

	for _, target := range BaseBranchCandidates {
		exists, err := c.refExists(ctx, target)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}

		res, err := c.runGit(ctx, "log", target, "--merges", "--oneline", "--grep="+branchName)
		if err != nil {
			return nil, err
		}
		if res.stdout != "" {
			mergeLines = strings.Split(res.stdout, "\n")
			log.Printf("merge commit found: target=%s branch=%s", target, branchName)
			break
		}
	}

	if len(mergeLines) == 0 {
		return nil, nil
	}

	// Topologically most recent merge commit referencing the branch.
	mergeSHA := strings.SplitN(mergeLines[0], " ", 2)[0]

	parentsRes, err := c.runGit(ctx, "show", mergeSHA, "--no-patch", "--format=%P")
	if err != nil {
		return nil, err
	}
	parents := strings.Fields(parentsRes.stdout)
	if len(parents) < 2 {
		return nil, nil
	}
	parent1, parent2 := parents[0], parents[1]

	// Branch-only commits live between the merge's two parents.
	logRes, err := c.runGit(ctx, "log", parent1+".."+parent2, "--oneline", "--no-merges")
	if err != nil {
		return nil, err
	}

	// The net change the merge introduced into the base branch.
	diffRes, err := c.runGit(ctx, "diff", mergeSHA+"^1", mergeSHA)
	if err != nil {
		return nil, err
	}

	statRes, err := c.runGit(ctx, "diff", "--stat", mergeSHA+"^1", mergeSHA)
	if err != nil {
		return nil, err
	}

	return &mergeExtraction{
		commitsRaw: logRes.stdout,
		diffRaw:    diffRes.stdout,
		diffStat:   statRes.stdout,
	}, nil
}

// findBaseBranch returns the first existing base branch candidate,
// falling back to HEAD when none resolve.
func (c *Collector) findBaseBranch(ctx context.Context) (string, error) {
	for _, candidate := range BaseBranchCandidates {
		exists, err := c.refExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if exists {
			return candidate, nil
		}
	}
	log.Printf("no base branch candidate resolves, using HEAD")
	return "HEAD", nil
}

// CollectByBranch gathers the commit list and diff for a branch.
//
// Strategy order:
//  1. Merge-commit reconstruction — works after the branch was merged and
//     deleted, and keeps the diff free of later base-branch history.
//  2. Active-branch fallback — the branch ref still resolves, so compute
//     base..branch commits and the merge-base-relative (three-dot) diff.
//
// Fails with NOT_FOUND when neither strategy applies.
func (c *Collector) CollectByBranch(ctx context.Context, branchName string) (*DiffResult, error) {
	extraction, err := c.ExtractFromMergeCommit(ctx, branchName)
	if err != nil {
		return nil, err
	}
	if extraction != nil {
		return &DiffResult{
			CommitsRaw: extraction.commitsRaw,
			DiffRaw:    extraction.diffRaw,
			DiffStat:   extraction.diffStat,
			BranchName: branchName,
			Source:     "merge_commit",
		}, nil
	}

	exists, err := c.refExists(ctx, branchName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewNotFound("branch", branchName)
	}

	base, err := c.findBaseBranch(ctx)
	if err != nil {
		return nil, err
	}

	logRes, err := c.runGit(ctx, "log", base+".."+branchName, "--oneline", "--no-merges")
	if err != nil {
		return nil, err
	}
	diffRes, err := c.runGit(ctx, "diff", base+"..."+branchName)
	if err != nil {
		return nil, err
	}
	statRes, err := c.runGit(ctx, "diff", "--stat", base+"..."+branchName)
	if err != nil {
		return nil, err
	}

	return &DiffResult{
		CommitsRaw: logRes.stdout,
		DiffRaw:    diffRes.stdout,
		DiffStat:   statRes.stdout,
		BranchName: branchName,
		Source:     "active_branch",
	}, nil
}

// CollectByCommitRange gathers commits and diff for an explicit ref range.
func (c *Collector) CollectByCommitRange(ctx context.Context, fromRef, toRef string) (*DiffResult, error) {
	rangeSpec := fromRef + ".." + toRef

	logRes, err := c.runGit(ctx, "log", rangeSpec, "--oneline", "--no-merges")
	if err != nil {
		return nil, err
	}
	diffRes, err := c.runGit(ctx, "diff", rangeSpec)
	if err != nil {
		return nil, err
	}
	statRes, err := c.runGit(ctx, "diff", "--stat", rangeSpec)
	if err != nil {
		return nil, err
	}

	return &DiffResult{
		CommitsRaw: logRes.stdout,
		DiffRaw:    diffRes.stdout,
		DiffStat:   statRes.stdout,
		BranchName: rangeSpec,
		Source:     "active_branch",
	}, nil
}

// RepoMatch identifies a repository containing the probed branch.
type RepoMatch struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DetectRepositories probes each configured repository for the branch.
// Merged branches (merge-commit hit) take priority over active refs; all
// matches of the first non-empty tier are returned so ambiguity is always
// surfaced to the caller instead of silently resolved.
func DetectRepositories(ctx context.Context, branchName string, repos map[string]string) ([]RepoMatch, error) {
	// Deterministic probe order: sorted by project name.
	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
	}
	sort.Strings(names)

	var mergeMatches []RepoMatch
	for _, name := range names {
		c := NewCollector(repos[name])
		extraction, err := c.ExtractFromMergeCommit(ctx, branchName)
		if err != nil {
			if errors.Is(err, errors.ErrTimeout) {
				return nil, err
			}
			continue
		}
		if extraction != nil {
			mergeMatches = append(mergeMatches, RepoMatch{Name: name, Path: repos[name]})
		}
	}
	if len(mergeMatches) > 0 {
		return mergeMatches, nil
	}

	var branchMatches []RepoMatch
	for _, name := range names {
		c := NewCollector(repos[name])
		exists, err := c.refExists(ctx, branchName)
		if err != nil {
			if errors.Is(err, errors.ErrTimeout) {
				return nil, err
			}
			continue
		}
		if exists {
			branchMatches = append(branchMatches, RepoMatch{Name: name, Path: repos[name]})
		}
	}
	return branchMatches, nil
}
