package watch

import (
	"path/filepath"
	"strings"
)

// shouldIgnoreEvent filters editor and OS artefacts.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	// vim probes directory writability with a file named 4913.
	return base == "Thumbs.db" || base == "4913"
}
