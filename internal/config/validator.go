package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/preflight-sh/preflight/internal/secret"
	preflighterrors "github.com/preflight-sh/preflight/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	envVarPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("env_var", func(fl validator.FieldLevel) bool {
			return envVarPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidateProject performs schema and cross-section validation on the
// project document.
func ValidateProject(p *Project) error {
	if p == nil {
		return preflighterrors.NewValidationError("project", "project is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(p); err != nil {
		return convertValidationError(err)
	}

	owner := make(map[string]string)
	sections := []struct {
		name string
		vars []string
	}{
		{"variables", mapKeys(p.Variables)},
		{"downloads", mapKeys(p.Downloads)},
		{"repos", mapKeys(p.Repos)},
		{"services", mapKeys(p.Services)},
	}
	for _, section := range sections {
		for _, envVar := range section.vars {
			field := section.name + "." + envVar
			if !envVarPattern.MatchString(envVar) {
				return preflighterrors.NewValidationError(field, "not a valid environment variable name", nil)
			}
			if prev, taken := owner[envVar]; taken {
				return preflighterrors.NewValidationError(field,
					fmt.Sprintf("variable already declared under %s; each variable may appear in one section only", prev), nil)
			}
			owner[envVar] = section.name
		}
	}

	if v, ok := p.Variables[secret.MasterPasswordVar]; ok && v.Encrypted != "" {
		return preflighterrors.NewValidationError("variables."+secret.MasterPasswordVar,
			"the master password cannot itself be encrypted", nil)
	}
	for name, variable := range p.Variables {
		if variable.Encrypted != "" && variable.Default != nil {
			return preflighterrors.NewValidationError("variables."+name,
				"encrypted variables cannot carry a plaintext default", nil)
		}
	}

	for name := range p.Commands {
		if name == "" {
			return preflighterrors.NewValidationError("commands", "command name must not be empty", nil)
		}
	}

	return nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return preflighterrors.NewValidationError(field, msg, err)
	}

	return preflighterrors.NewValidationError("project", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	var lowered []string
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
