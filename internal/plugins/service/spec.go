package service

import (
	"fmt"
	"strconv"
)

// Spec describes how to launch and address one service type.
type Spec struct {
	// Type is the service type named in the project file. It doubles as
	// the scheme of the URL the provider exposes.
	Type string

	// LowerPort and UpperPort bound the scan for a free port.
	LowerPort int
	UpperPort int

	// Args returns the argv that starts the service listening on port,
	// keeping its files under dir.
	Args func(dir string, port int) []string
}

// URL returns the address a service of this type answers on.
func (s Spec) URL(port int) string {
	return fmt.Sprintf("%s://localhost:%d", s.Type, port)
}

// Redis returns the spec for a project-local redis-server. The scan range
// sits just above the system default port so a global instance is never
// reused by accident.
func Redis() Spec {
	return Spec{
		Type:      "redis",
		LowerPort: 6380,
		UpperPort: 6449,
		Args: func(dir string, port int) []string {
			return []string{"redis-server", "--port", strconv.Itoa(port), "--dir", dir}
		},
	}
}
