package model

import (
	"sort"
	"strings"
)

// keyFileMarkers are substrings that identify important files (README,
// build config, etc.) when summarizing a repository.
var keyFileMarkers = []string{
	"readme",
	"license",
	"makefile",
	"dockerfile",
	"requirements",
	"package.json",
	"go.mod",
	".gitignore",
}

// RepositorySnapshot is the full recursive blob listing of a repository at
// one reference. It is immutable once fetched and re-fetched per planning
// session; staleness across sessions is accepted.
type RepositorySnapshot struct {
	Owner string   `json:"owner"`
	Repo  string   `json:"repo"`
	Ref   string   `json:"ref"`
	Paths []string `json:"paths"`
}

// FullName returns "owner/repo".
func (s *RepositorySnapshot) FullName() string {
	return s.Owner + "/" + s.Repo
}

// Contains reports whether path exists in the snapshot.
func (s *RepositorySnapshot) Contains(path string) bool {
	for _, p := range s.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// SortedPaths returns the paths in lexical order without mutating the
// snapshot.
func (s *RepositorySnapshot) SortedPaths() []string {
	out := make([]string, len(s.Paths))
	copy(out, s.Paths)
	sort.Strings(out)
	return out
}

// ExtensionHistogram counts files per extension (".go" -> 12). Files
// without a dot are skipped.
func (s *RepositorySnapshot) ExtensionHistogram() map[string]int {
	hist := make(map[string]int)
	for _, p := range s.Paths {
		base := p
		if idx := strings.LastIndex(p, "/"); idx >= 0 {
			base = p[idx+1:]
		}
		if idx := strings.LastIndex(base, "."); idx >= 0 {
			hist[base[idx:]]++
		}
	}
	return hist
}

// TopLevelDirs returns the sorted set of top-level directory names.
func (s *RepositorySnapshot) TopLevelDirs() []string {
	set := make(map[string]bool)
	for _, p := range s.Paths {
		if idx := strings.Index(p, "/"); idx > 0 {
			set[p[:idx]] = true
		}
	}
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// KeyFiles returns the sorted paths that look like project-defining files
// (README, LICENSE, build and config files).
func (s *RepositorySnapshot) KeyFiles() []string {
	var out []string
	for _, p := range s.Paths {
		lower := strings.ToLower(p)
		for _, marker := range keyFileMarkers {
			if strings.Contains(lower, marker) {
				out = append(out, p)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
