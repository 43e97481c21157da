package gateway

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyCompositionRootsImportBackends ensures that concrete backends are only wired
// by this factory and the commands. Everything else depends on domain.Gateway.
func TestOnlyCompositionRootsImportBackends(t *testing.T) {
	const infraPrefix = "applicantsync/internal/infra"
	allowedPrefixes := []string{infraPrefix, "applicantsync/cmd/"}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "applicantsync/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if hasAnyPrefix(pkg.PkgPath, allowedPrefixes) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == infraPrefix || strings.HasPrefix(importPath, infraPrefix+"/") {
				seen[filepath.Join(pkg.PkgPath, "...")+": "+importPath] = struct{}{}
			}
		}
	}
	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of backend package: %s", v)
		}
		t.Fatalf("found %d forbidden imports of backend packages", len(violations))
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
