// Package project implements the path-to-id transform, directory
// enumeration, and allow-list filtering that sit below both query
// coordinators and the watcher adapter.
package project

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/convolog/convolog/internal/domain"
)

// EncodeID applies the path-to-project-id transform: strip the leading
// separator, replace every '/', '.', '_' with '-', then prepend a single
// '-'. An input that is already an id (leading '-', no '/', '.' or '_') is
// returned unchanged, so the transform is idempotent and total but not
// required to round-trip.
func EncodeID(path string) string {
	if strings.HasPrefix(path, "-") && !strings.ContainsAny(path, "/._") {
		return path
	}
	cleaned := strings.TrimPrefix(filepath.Clean(path), "/")
	replacer := strings.NewReplacer("/", "-", ".", "-", "_", "-")
	return "-" + replacer.Replace(cleaned)
}

// Registry enumerates project directories under a root path and resolves
// project ids against an optional allow-list of source paths.
type Registry struct {
	root         string
	allowedIDs   map[string]struct{} // nil means "allow everything"
	displayNamer DisplayNamer
}

// NewRegistry creates a Registry rooted at root. allowedPaths, when
// non-empty, is a list of original source paths (not ids); each is encoded
// with EncodeID to build the allow-list.
func NewRegistry(root string, allowedPaths []string, namer DisplayNamer) *Registry {
	r := &Registry{root: root, displayNamer: namer}
	if namer == nil {
		r.displayNamer = DefaultDisplayNamer{}
	}
	if len(allowedPaths) > 0 {
		r.allowedIDs = make(map[string]struct{}, len(allowedPaths))
		for _, p := range allowedPaths {
			r.allowedIDs[EncodeID(p)] = struct{}{}
		}
	}
	return r
}

// Root returns the configured projects root directory.
func (r *Registry) Root() string {
	return r.root
}

// IsAllowed reports whether a project id passes the configured allow-list.
// An empty allow-list permits every project.
func (r *Registry) IsAllowed(id string) bool {
	if r.allowedIDs == nil {
		return true
	}
	_, ok := r.allowedIDs[id]
	return ok
}

// ListProjects enumerates non-hidden project directories under root,
// filtered by the allow-list. A non-empty allow-list matching nothing
// yields an empty result, not an error.
func (r *Registry) ListProjects() ([]domain.Project, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	projects := make([]domain.Project, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !r.IsAllowed(name) {
			continue
		}
		dirPath := filepath.Join(r.root, name)
		projects = append(projects, domain.Project{
			ID:          name,
			DisplayName: r.displayNamer.DisplayName(dirPath),
			Path:        dirPath,
		})
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

// Resolve returns the Project for a given id, or false if it doesn't exist
// or isn't allowed.
func (r *Registry) Resolve(id string) (domain.Project, bool) {
	if !r.IsAllowed(id) {
		return domain.Project{}, false
	}
	dirPath := filepath.Join(r.root, id)
	info, err := os.Stat(dirPath)
	if err != nil || !info.IsDir() {
		return domain.Project{}, false
	}
	return domain.Project{
		ID:          id,
		DisplayName: r.displayNamer.DisplayName(dirPath),
		Path:        dirPath,
	}, true
}

// ProjectDir joins the root with the raw project id, without validating
// that the directory exists.
func (r *Registry) ProjectDir(id string) string {
	return filepath.Join(r.root, id)
}

// JSONLFiles enumerates *.jsonl files directly under dir, sorted by path.
// A missing directory yields an empty list, not an error.
func JSONLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
