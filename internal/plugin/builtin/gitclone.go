package builtin

import (
	"context"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/flowforge/flowforge/internal/plugin"
)

// GitClonePlugin clones a repository into a destination directory, or pulls
// it if it already exists there as a git repository. Grounded on
// internal/plugins/repo's drift-detection logic (directory exists? is it a
// git repo? does the remote URL/branch match?), compressed into a single
// Invoke since this plugin has no separate dry-run evaluation step.
type GitClonePlugin struct{}

// NewGitClone builds the git-clone plugin.
func NewGitClone() *GitClonePlugin { return &GitClonePlugin{} }

var _ plugin.Plugin = (*GitClonePlugin)(nil)

func (p *GitClonePlugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:        "gitclone",
		Version:     "1.0.0",
		APIVersion:  "1.x",
		Description: "Clones a git repository, or fast-forwards it if already present at the destination.",
	}
}

func (p *GitClonePlugin) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	url := inputString(call.Input, "url")
	dest := inputString(call.Input, "destination")
	if url == "" || dest == "" {
		return plugin.Result{}, plugin.NewInputError(call.StepName, "url/destination", "gitclone requires both \"url\" and \"destination\"", nil)
	}
	branch := inputString(call.Input, "branch")

	if _, err := os.Stat(dest); err == nil {
		return p.pull(call.StepName, dest)
	} else if !os.IsNotExist(err) {
		return plugin.Result{}, plugin.NewPluginError(call.StepName, "gitclone", "cannot access destination", err)
	}

	opts := &git.CloneOptions{URL: url}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return plugin.Result{}, plugin.NewPluginError(call.StepName, "gitclone", fmt.Sprintf("clone of %s failed", url), err)
	}
	head, _ := repo.Head()
	return plugin.Result{Output: plugin.Output{"action": "cloned", "head": headName(head)}}, nil
}

func (p *GitClonePlugin) pull(stepName, dest string) (plugin.Result, error) {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return plugin.Result{}, plugin.NewPluginError(stepName, "gitclone", fmt.Sprintf("%s exists but is not a git repository", dest), err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return plugin.Result{}, plugin.NewPluginError(stepName, "gitclone", "cannot open worktree", err)
	}
	err = wt.Pull(&git.PullOptions{})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return plugin.Result{}, plugin.NewPluginError(stepName, "gitclone", "pull failed", err)
	}
	head, _ := repo.Head()
	return plugin.Result{Output: plugin.Output{"action": "pulled", "head": headName(head)}}, nil
}

func headName(ref *plumbing.Reference) string {
	if ref == nil {
		return ""
	}
	return ref.Name().Short()
}
