package registry

import (
	"fmt"
	"os"
	"strings"

	"github.com/parrisma/gofr-doc/internal/model"
)

// templateMeta mirrors template.yaml's on-disk shape.
type templateMeta struct {
	TemplateID   string                  `yaml:"template_id"`
	Group        string                  `yaml:"group"`
	Name         string                  `yaml:"name"`
	Description  string                  `yaml:"description"`
	GlobalParams []model.ParameterSchema `yaml:"global_parameters"`
}

type fragmentMeta struct {
	FragmentID  string                  `yaml:"fragment_id"`
	Group       string                  `yaml:"group"`
	Name        string                  `yaml:"name"`
	Description string                  `yaml:"description"`
	Parameters  []model.ParameterSchema `yaml:"parameters"`
}

type styleMeta struct {
	StyleID     string `yaml:"style_id"`
	Group       string `yaml:"group"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func loadTemplates(root string) (map[string]map[string]*model.Template, error) {
	out := map[string]map[string]*model.Template{}

	groups, err := groupDirs(root)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		group := g.Name()
		groupDir := join(root, group)

		ids, err := groupDirs(groupDir)
		if err != nil {
			return nil, err
		}

		for _, idEntry := range ids {
			templateID := idEntry.Name()
			dir := join(groupDir, templateID)

			metaPath := join(dir, "template.yaml")
			var meta templateMeta
			if err := readYAML(metaPath, &meta); err != nil {
				return nil, fmt.Errorf("read %s: %w", metaPath, err)
			}

			if meta.Group != "" && meta.Group != group {
				return nil, model.NewError(model.KindGroupMismatch,
					fmt.Sprintf("template %q metadata group %q does not match directory group %q", templateID, meta.Group, group),
					"fix the template.yaml group field or move the directory",
					map[string]any{"template_id": templateID, "declared_group": meta.Group, "directory_group": group})
			}

			docPath := firstExisting(join(dir, "document.html"), join(dir, "document.txt"), join(dir, "document.md"))
			if docPath == "" {
				return nil, fmt.Errorf("template %q has no document.* file", templateID)
			}

			fragments, err := loadEmbeddedFragments(join(dir, "fragments"), group)
			if err != nil {
				return nil, fmt.Errorf("template %q embedded fragments: %w", templateID, err)
			}

			t := &model.Template{
				TemplateID:           templateID,
				Group:                group,
				Name:                 meta.Name,
				Description:          meta.Description,
				GlobalParams:         meta.GlobalParams,
				Fragments:            fragments,
				DocumentTemplatePath: docPath,
			}

			if out[group] == nil {
				out[group] = map[string]*model.Template{}
			}
			out[group][templateID] = t
		}
	}

	return out, nil
}

// loadEmbeddedFragments reads the <fragment_id>.yaml / <fragment_id>.* pairs
// under a template's fragments/ directory. Embedded fragments inherit the
// owning template's group and are never entered into the standalone
// fragment registry (I2).
func loadEmbeddedFragments(dir, group string) ([]model.Fragment, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var fragments []model.Fragment

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		fragmentID := strings.TrimSuffix(e.Name(), ".yaml")
		if seen[fragmentID] {
			continue
		}
		seen[fragmentID] = true

		var meta fragmentMeta
		if err := readYAML(join(dir, e.Name()), &meta); err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		contentPath := firstExisting(
			join(dir, fragmentID+".html"),
			join(dir, fragmentID+".txt"),
			join(dir, fragmentID+".md"),
		)
		if contentPath == "" {
			return nil, fmt.Errorf("fragment %q has no content file", fragmentID)
		}

		fragments = append(fragments, model.Fragment{
			FragmentID:   fragmentID,
			Group:        group,
			Name:         meta.Name,
			Description:  meta.Description,
			Parameters:   meta.Parameters,
			TemplatePath: contentPath,
		})
	}

	return fragments, nil
}

func loadFragments(root string) (map[string]map[string]*model.Fragment, error) {
	out := map[string]map[string]*model.Fragment{}

	groups, err := groupDirs(root)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		group := g.Name()
		groupDir := join(root, group)

		ids, err := groupDirs(groupDir)
		if err != nil {
			return nil, err
		}

		for _, idEntry := range ids {
			fragmentID := idEntry.Name()
			dir := join(groupDir, fragmentID)

			metaPath := join(dir, "fragment.yaml")
			var meta fragmentMeta
			if err := readYAML(metaPath, &meta); err != nil {
				return nil, fmt.Errorf("read %s: %w", metaPath, err)
			}

			if meta.Group != "" && meta.Group != group {
				return nil, model.NewError(model.KindGroupMismatch,
					fmt.Sprintf("fragment %q metadata group %q does not match directory group %q", fragmentID, meta.Group, group),
					"fix the fragment.yaml group field or move the directory",
					map[string]any{"fragment_id": fragmentID, "declared_group": meta.Group, "directory_group": group})
			}

			contentPath := firstExisting(join(dir, "fragment.html"), join(dir, "fragment.txt"), join(dir, "fragment.md"))
			if contentPath == "" {
				return nil, fmt.Errorf("fragment %q has no fragment.* content file", fragmentID)
			}

			f := &model.Fragment{
				FragmentID:   fragmentID,
				Group:        group,
				Name:         meta.Name,
				Description:  meta.Description,
				Parameters:   meta.Parameters,
				TemplatePath: contentPath,
			}

			if out[group] == nil {
				out[group] = map[string]*model.Fragment{}
			}
			out[group][fragmentID] = f
		}
	}

	return out, nil
}

func loadStyles(root string) (map[string]map[string]*model.Style, error) {
	out := map[string]map[string]*model.Style{}

	groups, err := groupDirs(root)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		group := g.Name()
		groupDir := join(root, group)

		ids, err := groupDirs(groupDir)
		if err != nil {
			return nil, err
		}

		for _, idEntry := range ids {
			styleID := idEntry.Name()
			dir := join(groupDir, styleID)

			metaPath := join(dir, "style.yaml")
			var meta styleMeta
			if err := readYAML(metaPath, &meta); err != nil {
				return nil, fmt.Errorf("read %s: %w", metaPath, err)
			}

			if meta.Group != "" && meta.Group != group {
				return nil, model.NewError(model.KindGroupMismatch,
					fmt.Sprintf("style %q metadata group %q does not match directory group %q", styleID, meta.Group, group),
					"fix the style.yaml group field or move the directory",
					map[string]any{"style_id": styleID, "declared_group": meta.Group, "directory_group": group})
			}

			cssPath := join(dir, "style.css")
			css, err := os.ReadFile(cssPath)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", cssPath, err)
			}

			s := &model.Style{
				StyleID:     styleID,
				Group:       group,
				Name:        meta.Name,
				Description: meta.Description,
				CSS:         string(css),
			}

			if out[group] == nil {
				out[group] = map[string]*model.Style{}
			}
			out[group][styleID] = s
		}
	}

	return out, nil
}
