// Package sqlitepath resolves where the SQLite archive lives.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/chainchat/pkg/dotdir"
)

// FileName is the archive database created inside the .chainchat/ directory.
const FileName = "chainchat.db"

// ResolveSQLitePath returns the archive database path. An explicit override
// wins, then an existing database in one of the well-known locations, and
// finally a new chainchat.db inside the resolved .chainchat/ directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(target, FileName), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		FileName,
		filepath.Join(".chainchat", FileName),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "chainchat", FileName))
	}

	return candidates
}
