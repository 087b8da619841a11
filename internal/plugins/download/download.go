// Package download fetches the files a project declares into the project
// directory and points environment variables at them. A declared sha256
// is verified both when deciding whether an existing file satisfies the
// requirement and before a fresh download is moved into place.
package download

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// ProviderName is the registry name of the download provider.
const ProviderName = "download"

// KindName is the registry name of the download requirement kind.
const KindName = "download"

// Requirement is satisfied when its variable points at an existing file
// whose checksum, if one is declared, matches.
type Requirement struct {
	envVar  string
	options map[string]any
}

// NewRequirement builds a download requirement. Recognized options are
// "url" (required), "sha256" and "filename".
func NewRequirement(envVar string, options map[string]any) (*Requirement, error) {
	if options == nil {
		options = map[string]any{}
	}
	r := &Requirement{envVar: envVar, options: options}
	if r.URL() == "" {
		return nil, fmt.Errorf("download requirement %s has no url", envVar)
	}
	return r, nil
}

func (r *Requirement) EnvVar() string          { return r.envVar }
func (r *Requirement) Options() map[string]any { return r.options }

func (r *Requirement) Title() string {
	return fmt.Sprintf("downloaded file for %s", r.envVar)
}

// URL returns the source URL.
func (r *Requirement) URL() string {
	u, _ := r.options["url"].(string)
	return u
}

// SHA256 returns the declared checksum, or "".
func (r *Requirement) SHA256() string {
	s, _ := r.options["sha256"].(string)
	return s
}

// Filename returns the project-relative target: the declared filename,
// else the URL's base name, else the variable name.
func (r *Requirement) Filename() string {
	if f, ok := r.options["filename"].(string); ok && f != "" {
		return f
	}
	if u, err := url.Parse(r.URL()); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	return r.envVar
}

func (r *Requirement) WhyNotProvided(env envmap.Map) string {
	value, ok := env[r.envVar]
	if !ok || value == "" {
		return "environment variable is not set"
	}
	return r.whyNotFile(value)
}

func (r *Requirement) whyNotFile(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Sprintf("%s does not exist", filePath)
	}
	if info.IsDir() {
		return fmt.Sprintf("%s is a directory, not a downloaded file", filePath)
	}
	if want := r.SHA256(); want != "" {
		got, err := fileSHA256(filePath)
		if err != nil {
			return fmt.Sprintf("unable to hash %s: %s", filePath, err)
		}
		if got != want {
			return fmt.Sprintf("checksum mismatch for %s", filePath)
		}
	}
	return ""
}

// Provider downloads requirement URLs over HTTP.
type Provider struct {
	client *http.Client
}

// NewProvider returns the download provider.
func NewProvider() *Provider {
	return &Provider{client: http.DefaultClient}
}

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
		return nil, fmt.Errorf("requirement %s is not a download requirement", req.EnvVar())
	}
	return plugin.Config{"url": r.URL(), "filename": r.Filename()}, nil
}

// Provide points the variable at the target file, downloading it first
// unless a satisfying copy is already in place.
func (p *Provider) Provide(req plugin.Requirement, ctx *plugin.ProvideContext) {
	r, ok := req.(*Requirement)
	if !ok {
		ctx.RecordErrorf("requirement %s is not a download requirement", req.EnvVar())
		return
	}

	target := r.Filename()
	if !filepath.IsAbs(target) {
		target = filepath.Join(ctx.ProjectDir, target)
	}

	if r.whyNotFile(target) == "" {
		ctx.Env[r.envVar] = target
		ctx.Logf("%s is already downloaded to %s", r.URL(), target)
		return
	}

	if err := p.fetch(r, target); err != nil {
		ctx.RecordErrorf("download of %s failed: %s", r.URL(), err)
		return
	}

	ctx.Env[r.envVar] = target
	ctx.Logf("downloaded %s to %s", r.URL(), target)
}

// fetch streams the URL through a temp file in the target directory,
// verifying the declared checksum before the rename makes it visible.
func (p *Provider) fetch(r *Requirement, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	resp, err := p.client.Get(r.URL())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".partial-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if want := r.SHA256(); want != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != want {
			return fmt.Errorf("checksum mismatch: expected %s, got %s", want, got)
		}
	}
	return os.Rename(tmp.Name(), target)
}

func fileSHA256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Kind claims requirements declared with a url option and none of the
// repo options, which is how the downloads section is written.
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
			return !hasBranch && !hasDepth
		},
		New: func(envVar string, options map[string]any) (plugin.Requirement, error) {
			return NewRequirement(envVar, options)
		},
		Providers: []string{ProviderName},
	}
}
