// Package registry implements C3: the template/fragment/style catalogue
// loaded from a directory hierarchy, with directory↔metadata group
// validation, a one-time flat-layout migration, and lazy fragment-
// reference resolution for embedded fragments at render time.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/parrisma/gofr-doc/internal/model"
)

// Registry holds the in-memory catalogue loaded from the three root
// directories named in spec.md §6. Reload is a full re-scan; callers that
// need live-reload should call Load again (it is safe to call repeatedly).
type Registry struct {
	templatesRoot string
	fragmentsRoot string
	stylesRoot    string

	mu        sync.RWMutex
	templates map[string]map[string]*model.Template
	fragments map[string]map[string]*model.Fragment
	styles    map[string]map[string]*model.Style
}

func New(templatesRoot, fragmentsRoot, stylesRoot string) *Registry {
	return &Registry{
		templatesRoot: templatesRoot,
		fragmentsRoot: fragmentsRoot,
		stylesRoot:    stylesRoot,
		templates:     map[string]map[string]*model.Template{},
		fragments:     map[string]map[string]*model.Fragment{},
		styles:        map[string]map[string]*model.Style{},
	}
}

// Load scans all three roots, migrating any legacy flat layout into the
// "public" group first (see migrate.go), and populates the in-memory
// catalogue. A directory whose metadata group does not match its parent
// directory name fails the whole load with GroupMismatch, since serving a
// partially-loaded catalogue risks leaking items into the wrong group.
func (r *Registry) Load() error {
	if err := migrateFlatLayout(r.templatesRoot); err != nil {
		return fmt.Errorf("migrate templates root: %w", err)
	}
	if err := migrateFlatLayout(r.fragmentsRoot); err != nil {
		return fmt.Errorf("migrate fragments root: %w", err)
	}
	if err := migrateFlatLayout(r.stylesRoot); err != nil {
		return fmt.Errorf("migrate styles root: %w", err)
	}

	templates, err := loadTemplates(r.templatesRoot)
	if err != nil {
		return err
	}
	fragments, err := loadFragments(r.fragmentsRoot)
	if err != nil {
		return err
	}
	styles, err := loadStyles(r.stylesRoot)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = templates
	r.fragments = fragments
	r.styles = styles
	r.mu.Unlock()

	return nil
}

func (r *Registry) ListGroups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	for g := range r.templates {
		seen[g] = true
	}
	for g := range r.fragments {
		seen[g] = true
	}
	for g := range r.styles {
		seen[g] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

func (r *Registry) ListTemplates(group string) []model.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Summary
	for id, t := range r.templates[group] {
		out = append(out, model.Summary{ID: id, Name: t.Name, Description: t.Description, Group: group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) GetTemplate(group, templateID string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[group][templateID]
	if !ok {
		return nil, model.ErrNotFound(model.KindTemplateNotFound, fmt.Sprintf("template %q not found in group %q", templateID, group))
	}
	return t, nil
}

// ListTemplateFragments returns the embedded fragment definitions declared
// by a template, in document order.
func (r *Registry) ListTemplateFragments(group, templateID string) ([]model.Fragment, error) {
	t, err := r.GetTemplate(group, templateID)
	if err != nil {
		return nil, err
	}
	return t.Fragments, nil
}

func (r *Registry) ListStyles(group string) []model.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Summary
	for id, s := range r.styles[group] {
		out = append(out, model.Summary{ID: id, Name: s.Name, Description: s.Description, Group: group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) GetStyle(group, styleID string) (*model.Style, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.styles[group][styleID]
	if !ok {
		return nil, model.ErrNotFound(model.KindStyleNotFound, fmt.Sprintf("style %q not found in group %q", styleID, group))
	}
	return s, nil
}

// GetFragmentDetails resolves a fragment by ID within a group. It first
// checks the standalone fragment registry, then falls back to any
// template's embedded fragments (lazy resolution, Design Note §9: the
// embedded-vs-standalone catalogues are kept separate, but lookup by ID
// is unified for callers).
func (r *Registry) GetFragmentDetails(group, fragmentID string) (*model.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.fragments[group][fragmentID]; ok {
		return f, nil
	}

	for _, t := range r.templates[group] {
		for i := range t.Fragments {
			if t.Fragments[i].FragmentID == fragmentID {
				return &t.Fragments[i], nil
			}
		}
	}

	return nil, model.ErrNotFound(model.KindFragmentNotFound, fmt.Sprintf("fragment %q not found in group %q", fragmentID, group))
}

// GetJinjaDocument returns the raw structural template text for a
// document, to be expanded by the rendering pipeline (C6).
func (r *Registry) GetJinjaDocument(group, templateID string) (string, error) {
	t, err := r.GetTemplate(group, templateID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(t.DocumentTemplatePath)
	if err != nil {
		return "", fmt.Errorf("read document template: %w", err)
	}
	return string(data), nil
}

// GetJinjaFragment returns the raw content text for a fragment.
func (r *Registry) GetJinjaFragment(group, fragmentID string) (string, error) {
	f, err := r.GetFragmentDetails(group, fragmentID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("read fragment content: %w", err)
	}
	return string(data), nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func groupDirs(root string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read root %s: %w", root, err)
	}

	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	return dirs, nil
}

func join(parts ...string) string {
	return filepath.Join(parts...)
}
