package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// FileName is the project file preflight looks for in a project directory.
const FileName = "preflight.yaml"

// Project represents the full preflight project document.
type Project struct {
	Name        string              `yaml:"name" validate:"required,min=1,max=100"`
	Description string              `yaml:"description,omitempty"`
	Variables   map[string]Variable `yaml:"variables,omitempty" validate:"omitempty,dive"`
	Downloads   map[string]Download `yaml:"downloads,omitempty" validate:"omitempty,dive"`
	Repos       map[string]Repo     `yaml:"repos,omitempty" validate:"omitempty,dive"`
	Services    map[string]string   `yaml:"services,omitempty" validate:"omitempty,dive,required"`
	Commands    map[string]Command  `yaml:"commands,omitempty" validate:"omitempty,dive"`
}

// Variable declares an environment variable the project needs. In YAML it
// may be null (just a name), a scalar (shorthand for a default), or a
// mapping with the full options. Encrypted holds the sealed value as
// produced by the secret package; it is unlocked with the master
// password at prepare time.
type Variable struct {
	Description string  `yaml:"description,omitempty"`
	Default     *string `yaml:"default,omitempty"`
	Encrypted   string  `yaml:"encrypted,omitempty"`
}

// UnmarshalYAML accepts the three declaration shapes for a variable.
func (v *Variable) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*v = Variable{}
			return nil
		}
		def := value.Value
		*v = Variable{Default: &def}
		return nil
	case yaml.MappingNode:
		type rawVariable struct {
			Description string     `yaml:"description"`
			Default     *yaml.Node `yaml:"default"`
			Encrypted   string     `yaml:"encrypted"`
		}
		var raw rawVariable
		if err := value.Decode(&raw); err != nil {
			return err
		}
		v.Description = raw.Description
		v.Encrypted = raw.Encrypted
		v.Default = nil
		if raw.Default != nil && raw.Default.Tag != "!!null" {
			def := raw.Default.Value
			v.Default = &def
		}
		return nil
	default:
		return fmt.Errorf("variable must be null, a scalar default, or a mapping")
	}
}

// Download declares a file fetched into the project directory, exposed to
// the project through its environment variable.
type Download struct {
	URL      string `yaml:"url" validate:"required,url"`
	SHA256   string `yaml:"sha256,omitempty" validate:"omitempty,len=64,hexadecimal"`
	Filename string `yaml:"filename,omitempty"`
}

// Repo declares a git repository cloned into the project directory.
type Repo struct {
	URL    string `yaml:"url" validate:"required"`
	Branch string `yaml:"branch,omitempty"`
	Depth  int    `yaml:"depth,omitempty" validate:"omitempty,min=0"`
}

// Command is a runnable entry point, executed with the prepared
// environment. In YAML it may be a bare string (the shell line) or a
// mapping with options.
type Command struct {
	Shell       string `yaml:"shell" validate:"required,min=1"`
	Description string `yaml:"description,omitempty"`
}

// UnmarshalYAML accepts both command declaration shapes.
func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*c = Command{Shell: value.Value}
		return nil
	case yaml.MappingNode:
		type rawCommand Command
		var raw rawCommand
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*c = Command(raw)
		return nil
	default:
		return fmt.Errorf("command must be a shell line or a mapping")
	}
}

// RequirementVars returns every environment variable the project declares,
// across all sections, in lexical order.
func (p *Project) RequirementVars() []string {
	seen := make(map[string]struct{})
	for name := range p.Variables {
		seen[name] = struct{}{}
	}
	for name := range p.Downloads {
		seen[name] = struct{}{}
	}
	for name := range p.Repos {
		seen[name] = struct{}{}
	}
	for name := range p.Services {
		seen[name] = struct{}{}
	}

	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}

// DefaultCommand picks the command "run" executes when none is named: the
// command called "default", or the only command when there is exactly one.
func (p *Project) DefaultCommand() (string, Command, bool) {
	if cmd, ok := p.Commands["default"]; ok {
		return "default", cmd, true
	}
	if len(p.Commands) == 1 {
		for name, cmd := range p.Commands {
			return name, cmd, true
		}
	}
	return "", Command{}, false
}
