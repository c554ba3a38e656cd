// Package tools provides the bounded read-only operations an LLM agent may
// invoke while exploring a repository.
//
// The tool set is a fixed enumerated capability set: each tool is a pure
// handler over (context, params) -> text, registered once at construction.
// Every handler returns plain text and never an error, because invocations
// happen inside an LLM's reasoning loop where a raised error would abort
// the whole exploration; failures must be content the model can read and
// react to.
//
// A Registry is bound to exactly one repository via RepoContext, created
// per request. There is no process-wide repository state.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jxucoder/gitpilot/internal/model"
)

// Reader is the read-only repository surface the tool set consumes.
type Reader interface {
	Snapshot(ctx context.Context, owner, repo, ref string) (*model.RepositorySnapshot, error)
	ReadFile(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// RepoContext binds a tool registry to one repository for one request.
type RepoContext struct {
	Owner  string
	Repo   string
	Reader Reader
}

// FullName returns "owner/repo".
func (rc RepoContext) FullName() string {
	return rc.Owner + "/" + rc.Repo
}

// Handler executes one tool call and returns text for the model.
type Handler func(ctx context.Context, params map[string]string) string

// Tool describes one callable capability.
type Tool struct {
	Name        string
	Description string
	// Params lists the accepted parameter names, in order, for the prompt
	// catalog. Empty means the tool takes no parameters.
	Params []string
	Run    Handler
}

// Registry holds the fixed tool set for one repository context.
type Registry struct {
	rc     RepoContext
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds the tool set bound to rc.
func NewRegistry(rc RepoContext) *Registry {
	r := &Registry{rc: rc, byName: make(map[string]Tool)}
	r.register(Tool{
		Name:        "list_files",
		Description: "List every file path in the repository.",
		Run:         r.listFiles,
	})
	r.register(Tool{
		Name:        "get_directory_structure",
		Description: "Show the repository's files grouped by directory.",
		Run:         r.directoryStructure,
	})
	r.register(Tool{
		Name:        "read_file",
		Description: "Read the decoded text content of one file.",
		Params:      []string{"path"},
		Run:         r.readFile,
	})
	r.register(Tool{
		Name:        "search_files",
		Description: "List file paths containing a substring (case-insensitive).",
		Params:      []string{"pattern"},
		Run:         r.searchFiles,
	})
	r.register(Tool{
		Name:        "list_directory_files",
		Description: "List the direct children of one directory.",
		Params:      []string{"directory"},
		Run:         r.listDirectoryFiles,
	})
	r.register(Tool{
		Name:        "get_repository_summary",
		Description: "Summarize the repository: file count, file types, top directories, key files.",
		Run:         r.repositorySummary,
	})
	return r
}

func (r *Registry) register(t Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	return r.tools
}

// Invoke dispatches one tool call by name. An unknown tool name produces an
// error string the model can recover from, not a Go error.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]string) string {
	tool, ok := r.byName[name]
	if !ok {
		known := make([]string, 0, len(r.tools))
		for _, t := range r.tools {
			known = append(known, t.Name)
		}
		return fmt.Sprintf("Error: unknown tool %q. Available tools: %s", name, strings.Join(known, ", "))
	}
	return tool.Run(ctx, params)
}

func (r *Registry) snapshot(ctx context.Context) (*model.RepositorySnapshot, string) {
	snap, err := r.rc.Reader.Snapshot(ctx, r.rc.Owner, r.rc.Repo, "")
	if err != nil {
		return nil, fmt.Sprintf("Error listing repository files: %v", err)
	}
	return snap, ""
}

func (r *Registry) listFiles(ctx context.Context, _ map[string]string) string {
	snap, errText := r.snapshot(ctx)
	if errText != "" {
		return errText
	}
	if len(snap.Paths) == 0 {
		return "Repository is empty - no files found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", r.rc.FullName())
	fmt.Fprintf(&b, "Total files: %d\n\nFiles:\n", len(snap.Paths))
	for _, p := range snap.SortedPaths() {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	return b.String()
}

func (r *Registry) directoryStructure(ctx context.Context, _ map[string]string) string {
	snap, errText := r.snapshot(ctx)
	if errText != "" {
		return errText
	}
	if len(snap.Paths) == 0 {
		return "Repository is empty - no files found."
	}

	dirs := make(map[string][]string)
	var rootFiles []string
	for _, p := range snap.Paths {
		if idx := strings.LastIndex(p, "/"); idx >= 0 {
			dir := p[:idx]
			dirs[dir] = append(dirs[dir], p[idx+1:])
		} else {
			rootFiles = append(rootFiles, p)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n\nDirectory Structure:\n.\n", r.rc.FullName())
	sort.Strings(rootFiles)
	for _, f := range rootFiles {
		fmt.Fprintf(&b, "├── %s\n", f)
	}
	dirNames := make([]string, 0, len(dirs))
	for d := range dirs {
		dirNames = append(dirNames, d)
	}
	sort.Strings(dirNames)
	for _, d := range dirNames {
		fmt.Fprintf(&b, "├── %s/\n", d)
		files := dirs[d]
		sort.Strings(files)
		for _, f := range files {
			fmt.Fprintf(&b, "│   ├── %s\n", f)
		}
	}
	return b.String()
}

func (r *Registry) readFile(ctx context.Context, params map[string]string) string {
	path := params["path"]
	if path == "" {
		return "Error reading file: missing required parameter \"path\""
	}
	content, err := r.rc.Reader.ReadFile(ctx, r.rc.Owner, r.rc.Repo, path, "")
	if err != nil {
		return fmt.Sprintf("Error reading file %s: %v", path, err)
	}
	return fmt.Sprintf("Content of %s:\n---\n%s\n---", path, content)
}

func (r *Registry) searchFiles(ctx context.Context, params map[string]string) string {
	pattern := params["pattern"]
	if pattern == "" {
		return "Error searching for files: missing required parameter \"pattern\""
	}
	snap, errText := r.snapshot(ctx)
	if errText != "" {
		return errText
	}

	needle := strings.ToLower(pattern)
	var matches []string
	for _, p := range snap.Paths {
		if strings.Contains(strings.ToLower(p), needle) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching pattern: %s", pattern)
	}

	sort.Strings(matches)
	var b strings.Builder
	fmt.Fprintf(&b, "Files matching %q (%d found):\n", pattern, len(matches))
	for _, p := range matches {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	return b.String()
}

func (r *Registry) listDirectoryFiles(ctx context.Context, params map[string]string) string {
	directory := params["directory"]
	if directory == "" {
		return "Error listing directory: missing required parameter \"directory\""
	}
	snap, errText := r.snapshot(ctx)
	if errText != "" {
		return errText
	}

	prefix := strings.TrimSuffix(directory, "/") + "/"
	var children []string
	for _, p := range snap.Paths {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") {
			children = append(children, p[len(prefix):])
		}
	}
	if len(children) == 0 {
		return fmt.Sprintf("Directory %q not found or is empty.", directory)
	}

	sort.Strings(children)
	var b strings.Builder
	fmt.Fprintf(&b, "Files in directory %q (%d files):\n", directory, len(children))
	for _, f := range children {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	return b.String()
}

func (r *Registry) repositorySummary(ctx context.Context, _ map[string]string) string {
	snap, errText := r.snapshot(ctx)
	if errText != "" {
		return errText
	}
	if len(snap.Paths) == 0 {
		return "Repository is empty - no files found."
	}

	dirs := snap.TopLevelDirs()
	var b strings.Builder
	fmt.Fprintf(&b, "Repository Summary: %s\n", r.rc.FullName())
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Total Files: %d\n", len(snap.Paths))
	fmt.Fprintf(&b, "Total Directories: %d\n\n", len(dirs))

	b.WriteString("Top Directories:\n")
	for i, d := range dirs {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "  - %s/\n", d)
	}

	b.WriteString("\nFile Types:\n")
	hist := snap.ExtensionHistogram()
	type extCount struct {
		ext   string
		count int
	}
	counts := make([]extCount, 0, len(hist))
	for ext, n := range hist {
		counts = append(counts, extCount{ext, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].ext < counts[j].ext
	})
	for i, c := range counts {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "  %s: %d files\n", c.ext, c.count)
	}

	if keys := snap.KeyFiles(); len(keys) > 0 {
		b.WriteString("\nKey Files:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  - %s\n", k)
		}
	}
	return b.String()
}
