package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath determines the actual records directory. When forceTemp is
// set, paths outside the system temp directory are re-rooted under
// <tmp>/certvault-dev/<base name>.
func ResolvePath(userPath string, forceTemp bool) string {
	if userPath == "" {
		userPath = "."
	}
	if !forceTemp {
		return userPath
	}

	// Paths already inside the temp directory (e.g. t.TempDir()) are trusted.
	cleanUserPath := filepath.Clean(userPath)
	rel, err := filepath.Rel(os.TempDir(), cleanUserPath)
	if err == nil && !strings.HasPrefix(rel, "..") && filepath.IsAbs(cleanUserPath) {
		return cleanUserPath
	}

	subName := filepath.Base(cleanUserPath)
	if subName == "." || subName == ".." || subName == string(os.PathSeparator) {
		subName = "default"
	}
	return filepath.Join(os.TempDir(), "certvault-dev", subName)
}
