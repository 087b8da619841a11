// Package gitclone materializes the git working copies a project declares
// and points environment variables at them.
package gitclone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// ProviderName is the registry name of the git clone provider.
const ProviderName = "gitclone"

// KindName is the registry name of the working-copy requirement kind.
const KindName = "repo"

// Requirement is satisfied when its variable points at a git working
// copy.
type Requirement struct {
	envVar  string
	options map[string]any
}

// NewRequirement builds a working-copy requirement. Recognized options
// are "url" (required), "branch" and "depth".
func NewRequirement(envVar string, options map[string]any) (*Requirement, error) {
	if options == nil {
		options = map[string]any{}
	}
	r := &Requirement{envVar: envVar, options: options}
	if r.URL() == "" {
		return nil, fmt.Errorf("repo requirement %s has no url", envVar)
	}
	return r, nil
}

func (r *Requirement) EnvVar() string          { return r.envVar }
func (r *Requirement) Options() map[string]any { return r.options }

func (r *Requirement) Title() string {
	return fmt.Sprintf("git checkout for %s", r.envVar)
}

// URL returns the repository URL.
func (r *Requirement) URL() string {
	u, _ := r.options["url"].(string)
	return u
}

// Branch returns the branch to check out, or "" for the remote default.
func (r *Requirement) Branch() string {
	b, _ := r.options["branch"].(string)
	return b
}

// Depth returns the clone depth, 0 meaning full history.
func (r *Requirement) Depth() int {
	d, _ := r.options["depth"].(int)
	return d
}

// Dir returns the project-relative checkout directory, taken from the
// repository name in the URL. Handles both https and scp-style URLs.
func (r *Requirement) Dir() string {
	name := r.URL()
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimRight(name, "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	if name == "" || name == "." {
		return r.envVar
	}
	return name
}

func (r *Requirement) WhyNotProvided(env envmap.Map) string {
	value, ok := env[r.envVar]
	if !ok || value == "" {
		return "environment variable is not set"
	}
	if _, err := os.Stat(value); err != nil {
		return fmt.Sprintf("%s does not exist", value)
	}
	if _, err := git.PlainOpen(value); err != nil {
		return fmt.Sprintf("%s is not a git working copy", value)
	}
	return ""
}

// Provider clones requirement repositories into the project directory.
type Provider struct{}

// NewProvider returns the git clone provider.
func NewProvider() *Provider { return &Provider{} }

var _ plugin.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) MissingEnvVarsToConfigure(plugin.Requirement, envmap.Map, *state.File) []string {
	return nil
}

func (p *Provider) MissingEnvVarsToProvide(plugin.Requirement, envmap.Map, *state.File) []string {
	return nil
}

func (p *Provider) ReadConfig(req plugin.Requirement, _ *plugin.ConfigContext) (plugin.Config, error) {
	r, ok := req.(*Requirement)
	if !ok {
		return nil, fmt.Errorf("requirement %s is not a repo requirement", req.EnvVar())
	}
	return plugin.Config{"url": r.URL(), "dir": r.Dir()}, nil
}

// Provide points the variable at the checkout, cloning it first unless
// the directory already holds a checkout of the same repository.
func (p *Provider) Provide(req plugin.Requirement, ctx *plugin.ProvideContext) {
	r, ok := req.(*Requirement)
	if !ok {
		ctx.RecordErrorf("requirement %s is not a repo requirement", req.EnvVar())
		return
	}

	target := filepath.Join(ctx.ProjectDir, r.Dir())

	if repo, err := git.PlainOpen(target); err == nil {
		if why := remoteMismatch(repo, r.URL()); why != "" {
			ctx.RecordErrorf("%s: %s", target, why)
			return
		}
		ctx.Env[r.envVar] = target
		ctx.Logf("using existing checkout at %s", target)
		return
	}

	opts := &git.CloneOptions{URL: r.URL()}
	if depth := r.Depth(); depth > 0 {
		opts.Depth = depth
	}
	if branch := r.Branch(); branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(context.Background(), target, false, opts); err != nil {
		ctx.RecordErrorf("unable to clone %s: %s", r.URL(), err)
		return
	}

	ctx.Env[r.envVar] = target
	ctx.Logf("cloned %s into %s", r.URL(), target)
}

// remoteMismatch reports a directory that already tracks some other
// repository.
func remoteMismatch(repo *git.Repository, wantURL string) string {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil || len(remote.Config().URLs) == 0 {
		return ""
	}
	actual := remote.Config().URLs[0]
	if actual != wantURL {
		return fmt.Sprintf("checkout tracks %s, expected %s", actual, wantURL)
	}
	return ""
}

// Kind claims requirements declared with a url plus branch or depth,
// which is how the repos section is written relative to downloads.
func Kind() plugin.Kind {
	return plugin.Kind{
		Name: KindName,
		CanHandle: func(_ string, options map[string]any) bool {
			u, ok := options["url"].(string)
			if !ok || u == "" {
				return false
			}
			_, hasBranch := options["branch"]
			_, hasDepth := options["depth"]
			return hasBranch || hasDepth
		},
		New: func(envVar string, options map[string]any) (plugin.Requirement, error) {
			return NewRequirement(envVar, options)
		},
		Providers: []string{ProviderName},
	}
}
