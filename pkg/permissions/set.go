package permissions

import (
	"sort"

	"github.com/codexlibris/codex/pkg/models"
)

// Set is a user's effective permissions: the union of everything their roles
// carry and every direct grant. Grants can be scoped to a single resource;
// role permissions are always global.
type Set struct {
	global map[string]struct{}
	scoped map[string]map[int]struct{}
}

// NewSet builds a set from global permission names and scoped grants.
func NewSet(global []string, scoped map[string][]int) *Set {
	s := &Set{
		global: make(map[string]struct{}, len(global)),
		scoped: make(map[string]map[int]struct{}, len(scoped)),
	}
	for _, name := range global {
		s.global[name] = struct{}{}
	}
	for name, resources := range scoped {
		ids := make(map[int]struct{}, len(resources))
		for _, id := range resources {
			ids[id] = struct{}{}
		}
		s.scoped[name] = ids
	}
	return s
}

// Has reports whether the set carries the permission through any path: a
// role, an unscoped grant, or a grant scoped to any resource.
func (s *Set) Has(name string) bool {
	if s == nil {
		return false
	}
	if s.hasGlobal(models.PermissionAdminFull) || s.hasGlobal(name) {
		return true
	}
	return len(s.scoped[name]) > 0
}

// HasForResource reports whether the set carries the permission for one
// specific resource. Global permissions cover every resource; a scoped grant
// covers only its own.
func (s *Set) HasForResource(name string, resourceID int) bool {
	if s == nil {
		return false
	}
	if s.hasGlobal(models.PermissionAdminFull) || s.hasGlobal(name) {
		return true
	}
	_, ok := s.scoped[name][resourceID]
	return ok
}

// HasAny reports whether at least one of the names is held.
func (s *Set) HasAny(names ...string) bool {
	for _, name := range names {
		if s.Has(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of the names is held.
func (s *Set) HasAll(names ...string) bool {
	for _, name := range names {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// IsAdmin reports whether the set carries admin.full.
func (s *Set) IsAdmin() bool {
	if s == nil {
		return false
	}
	return s.hasGlobal(models.PermissionAdminFull)
}

// Names returns every held permission name, sorted, with scoped grants
// included once regardless of how many resources they cover.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(s.global)+len(s.scoped))
	for name := range s.global {
		seen[name] = struct{}{}
	}
	for name, resources := range s.scoped {
		if len(resources) > 0 {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Set) hasGlobal(name string) bool {
	_, ok := s.global[name]
	return ok
}
