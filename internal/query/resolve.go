package query

import "github.com/convolog/convolog/internal/domain"

// registry is the subset of project.Registry the coordinators depend on,
// named here to avoid an import cycle and to let tests substitute a fake.
type registry interface {
	ListProjects() ([]domain.Project, error)
}

// resolveProjects implements §4.8 step 1: the caller-provided subset
// intersected with known projects, or all known projects when none was
// requested. Unknown ids are silently dropped (§4.8 Errors).
func resolveProjects(reg registry, requested []string) ([]domain.Project, error) {
	known, err := reg.ListProjects()
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return known, nil
	}

	wanted := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		wanted[id] = struct{}{}
	}

	var out []domain.Project
	for _, p := range known {
		if _, ok := wanted[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
