package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	preflighterrors "github.com/preflight-sh/preflight/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ParseProject loads a project file from disk, validates it, and returns
// the resulting model.
func ParseProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, preflighterrors.NewParseError(path, 0, err)
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, preflighterrors.NewParseError(path, extractLine(err), err)
	}

	if err := ValidateProject(&project); err != nil {
		return nil, err
	}

	return &project, nil
}

// ParseProjectDir loads the project file from its conventional location
// inside dir.
func ParseProjectDir(dir string) (*Project, error) {
	return ParseProject(filepath.Join(dir, FileName))
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
