// Package state persists per-project preparation state: variable values the
// user has chosen and run state for services preflight started. The file
// lives next to the project file and is meant to stay out of version control.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileName is the state file's name inside the project directory.
const FileName = "preflight-state.yaml"

// ShutdownCommandsKey is the one run-state key with engine-defined
// meaning: a list of command argument lists teardown executes to stop the
// resource. Everything else in a RunState is provider-owned.
const ShutdownCommandsKey = "shutdown_commands"

const fileHeader = "# Preflight local state. Machine-specific; keep out of version control.\n"

// RunState describes one started service: port, pid, url, run_id and the
// shutdown_commands teardown will execute.
type RunState map[string]any

type fileDoc struct {
	Variables map[string]string   `yaml:"variables,omitempty"`
	Services  map[string]RunState `yaml:"services,omitempty"`
}

// File is the in-memory view of a project's state file.
type File struct {
	path string

	mu        sync.RWMutex
	variables map[string]string
	services  map[string]RunState
}

// LoadForDirectory reads the state file from projectDir, returning an empty
// store when no file exists yet.
func LoadForDirectory(projectDir string) (*File, error) {
	f := &File{
		path:      filepath.Join(projectDir, FileName),
		variables: map[string]string{},
		services:  map[string]RunState{},
	}
	if err := f.Reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return f, nil
}

// Path returns the absolute location of the backing file.
func (f *File) Path() string {
	return f.path
}

// Reload replaces the in-memory view with the on-disk contents.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", f.path, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.variables = doc.Variables
	if f.variables == nil {
		f.variables = map[string]string{}
	}
	f.services = doc.Services
	if f.services == nil {
		f.services = map[string]RunState{}
	}
	return nil
}

// Save writes the state file atomically via a temporary file and rename.
func (f *File) Save() error {
	f.mu.RLock()
	doc := fileDoc{Variables: f.variables, Services: f.services}
	if len(doc.Variables) == 0 {
		doc.Variables = nil
	}
	if len(doc.Services) == 0 {
		doc.Services = nil
	}
	data, err := yaml.Marshal(doc)
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, append([]byte(fileHeader), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary state file: %w", err)
	}
	return nil
}

// Value returns the stored value for a variable, if any.
func (f *File) Value(name string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.variables[name]
	return v, ok
}

// SetValue records a variable value. Save must be called to persist it.
func (f *File) SetValue(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variables[name] = value
}

// UnsetValue forgets a stored variable value.
func (f *File) UnsetValue(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.variables, name)
}

// Values returns a copy of all stored variable values.
func (f *File) Values() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.variables))
	for k, v := range f.variables {
		out[k] = v
	}
	return out
}

// ServiceRunState returns a copy of the run state recorded for envVar, or
// an empty RunState when none exists.
func (f *File) ServiceRunState(envVar string) RunState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copyRunState(f.services[envVar])
}

// SetServiceRunState replaces the run state for envVar. A nil or empty
// state removes the entry.
func (f *File) SetServiceRunState(envVar string, rs RunState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(rs) == 0 {
		delete(f.services, envVar)
		return
	}
	f.services[envVar] = copyRunState(rs)
}

// AllServiceRunStates returns a copy of every recorded service run state,
// keyed by environment variable.
func (f *File) AllServiceRunStates() map[string]RunState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]RunState, len(f.services))
	for k, v := range f.services {
		out[k] = copyRunState(v)
	}
	return out
}

func copyRunState(rs RunState) RunState {
	out := make(RunState, len(rs))
	for k, v := range rs {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
