// Package plugins wires the built-in requirement kinds and providers
// into a registry, and translates a parsed project file into the
// requirement pairs the engine prepares.
package plugins

import (
	"sort"

	"github.com/preflight-sh/preflight/internal/config"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/plugins/download"
	"github.com/preflight-sh/preflight/internal/plugins/envvalue"
	"github.com/preflight-sh/preflight/internal/plugins/gitclone"
	"github.com/preflight-sh/preflight/internal/plugins/service"
)

// RegisterAll wires the built-in providers and requirement kinds into
// reg. The service specs teach the service provider which types it can
// launch.
func RegisterAll(reg *plugin.Registry, specs ...service.Spec) error {
	serviceProvider := service.NewProvider(specs...)

	providers := []plugin.Provider{
		envvalue.NewProvider(),
		serviceProvider,
		download.NewProvider(),
		gitclone.NewProvider(),
	}
	for _, p := range providers {
		if err := reg.RegisterProvider(p); err != nil {
			return err
		}
	}

	// Specific kinds first; the value kind is the fallback for every
	// variable nothing else claims.
	kinds := []plugin.Kind{
		service.Kind(serviceProvider),
		gitclone.Kind(),
		download.Kind(),
		envvalue.Kind(),
	}
	for _, k := range kinds {
		if err := reg.RegisterKind(k); err != nil {
			return err
		}
	}
	return nil
}

// FromConfig translates the project file's requirement sections into
// pairs: section by section, variables sorted inside each section, so
// the engine's initial working set is deterministic.
func FromConfig(project *config.Project, reg *plugin.Registry) ([]plugin.Pair, error) {
	var pairs []plugin.Pair

	for _, name := range sortedKeys(project.Variables) {
		v := project.Variables[name]
		options := map[string]any{}
		if v.Description != "" {
			options["description"] = v.Description
		}
		if v.Default != nil {
			options["default"] = *v.Default
		}
		if v.Encrypted != "" {
			options["encrypted"] = v.Encrypted
		}
		pair, err := reg.NewPair(envvalue.KindName, name, options)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	for _, name := range sortedKeys(project.Downloads) {
		d := project.Downloads[name]
		options := map[string]any{"url": d.URL}
		if d.SHA256 != "" {
			options["sha256"] = d.SHA256
		}
		if d.Filename != "" {
			options["filename"] = d.Filename
		}
		pair, err := reg.NewPair(download.KindName, name, options)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	for _, name := range sortedKeys(project.Repos) {
		r := project.Repos[name]
		options := map[string]any{"url": r.URL}
		if r.Branch != "" {
			options["branch"] = r.Branch
		}
		if r.Depth > 0 {
			options["depth"] = r.Depth
		}
		pair, err := reg.NewPair(gitclone.KindName, name, options)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	for _, name := range sortedKeys(project.Services) {
		options := map[string]any{"type": project.Services[name]}
		pair, err := reg.NewPair(service.KindName, name, options)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	return pairs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
