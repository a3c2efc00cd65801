package backport

import (
	"context"
	"fmt"
	"strings"

	"github.com/rancher/backport-action/internal/git"
)

// ChangedPaths lists the files that differ between the current checkout and the
// remote target branch. Paths inside submodule (and the submodule pointer itself)
// are left out since the submodule is advanced separately. The repository and its
// configuration are not modified.
func ChangedPaths(ctx context.Context, repo *git.Repository, targetBranch, submodule string) ([]string, error) {
	out, err := repo.DiffNameOnly(ctx, repo.RemoteRef(targetBranch))
	if err != nil {
		return nil, fmt.Errorf("diff against %s: %w", repo.RemoteRef(targetBranch), err)
	}
	return FilterSubmodulePaths(out, submodule), nil
}

// FilterSubmodulePaths splits name-only diff output into paths. Empty output yields
// an empty slice. When submodule is non-empty, paths under "<submodule>/" are dropped.
func FilterSubmodulePaths(diff, submodule string) []string {
	submodule = strings.Trim(strings.TrimSpace(submodule), "/")
	prefix := submodule + "/"

	paths := make([]string, 0)
	for _, line := range strings.Split(diff, "\n") {
		path := strings.TrimSpace(line)
		if path == "" {
			continue
		}
		if submodule != "" && (path == submodule || strings.HasPrefix(path, prefix)) {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}
