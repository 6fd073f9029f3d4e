// Package deps reports whether the external tools the pipeline shells
// out to are actually installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/Beau253/MusicManager/internal/config"
)

// Requirement names one external binary a stage depends on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the result of probing one requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Requirements lists every binary the configured pipeline needs.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "download tool",
			Command:     cfg.Downloader.Binary,
			Description: "fetches tracks from Spotify URIs",
		},
		{
			Name:        "picard",
			Command:     cfg.Picard.Binary,
			Description: "tags and organizes downloaded files",
		},
	}
}

// Check probes each requirement on PATH.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{Requirement: req}
		command := strings.TrimSpace(req.Command)
		switch {
		case command == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}
