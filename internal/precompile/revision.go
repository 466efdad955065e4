package precompile

import (
	"log/slog"

	"github.com/go-git/go-git/v5"
)

// Revision returns the HEAD commit of the repository containing dir, or "" when
// dir is not inside a git work tree.
func Revision(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		slog.Debug("No git repository for manifest revision", "dir", dir, "error", err)
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		slog.Debug("Unable to resolve HEAD for manifest revision", "dir", dir, "error", err)
		return ""
	}
	return head.Hash().String()
}
