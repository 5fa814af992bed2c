package project

import (
	"os"
	"path/filepath"
	"strings"
)

// DisplayNamer is the external collaborator that turns a project directory
// into a human-readable label. The core never hard-codes display logic;
// DefaultDisplayNamer is a best-effort fallback, not a source of truth.
type DisplayNamer interface {
	DisplayName(projectDir string) string
}

// DefaultDisplayNamer shortens a project directory's decoded path relative
// to the user's home directory. It is deliberately partial: callers needing
// exact parity with the original source paths should supply their own
// DisplayNamer.
type DefaultDisplayNamer struct{}

// DisplayName implements DisplayNamer.
func (DefaultDisplayNamer) DisplayName(projectDir string) string {
	decoded := decodePath(filepath.Base(projectDir))

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		if rel, ok := strings.CutPrefix(decoded, home); ok {
			rel = strings.TrimPrefix(rel, "/")
			if rel == "" {
				return "~"
			}
			return "~/" + rel
		}
	}

	return decoded
}

// decodePath reverses the project-id transform on a best-effort basis: the
// transform is lossy (it cannot distinguish an original '/' from a '.' or
// '_'), so this recovers a plausible absolute path, not the exact original.
func decodePath(id string) string {
	id = strings.TrimPrefix(id, "-")
	return "/" + strings.ReplaceAll(id, "-", "/")
}
