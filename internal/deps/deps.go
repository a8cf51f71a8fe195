// Package deps reports whether the external engine binaries openbq invokes
// can be found.
package deps

import (
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"openbq/internal/config"
	"openbq/internal/workunit"
)

// Requirement defines an external binary openbq relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// EngineRequirements lists the configured engine commands. The engine in use
// is required; the others are optional.
func EngineRequirements(cfg *config.Config, active workunit.Engine) []Requirement {
	if cfg == nil {
		return nil
	}
	names := make([]string, 0, len(cfg.Engines))
	for name := range cfg.Engines {
		names = append(names, name)
	}
	slices.Sort(names)
	reqs := make([]Requirement, 0, len(names))
	for _, name := range names {
		reqs = append(reqs, Requirement{
			Name:        strings.ToUpper(name),
			Command:     cfg.Engines[name].Command,
			Description: fmt.Sprintf("Scores inputs with the %s engine", name),
			Optional:    name != string(active),
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}
