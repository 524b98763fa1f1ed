// Package prompt holds the repair stage prompts. Stage definitions are YAML
// files baked into the binary; each names the bag keys it reads and renders
// them through text/template.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"mender/internal/logging"
)

//go:embed stages
var embeddedStages embed.FS

// Stage identifiers, in pipeline order.
const (
	StageAnalyze    = "analyze"
	StageClassify   = "classify"
	StageStrategize = "strategize"
	StagePropose    = "propose"
	StageGenerate   = "generate"
)

// Order lists the stages in the order the repair loop runs them.
var Order = []string{StageAnalyze, StageClassify, StageStrategize, StagePropose, StageGenerate}

// BugCategories are the defect classes the classifier chooses from.
var BugCategories = []string{
	"Incorrect assignment operator",
	"Incorrect comparison operator",
	"Incorrect variable",
	"Missing / Incorrect condition",
	"Off-by-one",
	"Variable swap",
	"Incorrect array slice / index",
	"Variable prepend",
	"Incorrect data-structure constant",
	"Incorrect method call",
	"Incorrect field dereference",
	"Missing arithmetic expression",
	"Missing function call",
	"Missing line",
}

var funcs = template.FuncMap{
	"categories": func() []string { return BugCategories },
	"inc":        func(i int) int { return i + 1 },
}

// Stage is one prompt definition.
type Stage struct {
	ID       string   `yaml:"id"`
	Output   string   `yaml:"output"`
	Requires []string `yaml:"requires"`
	Role     string   `yaml:"role"`
	System   string   `yaml:"system"`
	Template string   `yaml:"template"`

	tmpl *template.Template
}

// Render fills the stage template from vars. Every required key must be
// present and non-blank.
func (s *Stage) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, key := range s.Requires {
		if strings.TrimSpace(vars[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("stage %s: missing inputs: %s", s.ID, strings.Join(missing, ", "))
	}

	var sb strings.Builder
	if err := s.tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("stage %s: render failed: %w", s.ID, err)
	}
	return sb.String(), nil
}

// Catalog is the set of loaded stages keyed by id.
type Catalog struct {
	stages map[string]*Stage
}

// Get returns the stage with the given id.
func (c *Catalog) Get(id string) (*Stage, error) {
	s, ok := c.stages[id]
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", id)
	}
	return s, nil
}

// IDs returns the loaded stage ids, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.stages))
	for id := range c.stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load parses every embedded stage definition and checks that the whole
// pipeline is present.
func Load() (*Catalog, error) {
	return loadFS(embeddedStages, "stages")
}

func loadFS(fsys fs.FS, root string) (*Catalog, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "LoadStagePrompts")
	defer timer.Stop()

	catalog := &Catalog{stages: make(map[string]*Stage)}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".yaml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		var s Stage
		if err := yaml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}
		if s.ID == "" {
			return fmt.Errorf("%s: stage id is required", p)
		}
		if _, dup := catalog.stages[s.ID]; dup {
			return fmt.Errorf("%s: duplicate stage %q", p, s.ID)
		}
		s.tmpl, err = template.New(s.ID).Funcs(funcs).Parse(s.Template)
		if err != nil {
			return fmt.Errorf("%s: bad template: %w", p, err)
		}
		catalog.stages[s.ID] = &s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stage prompts: %w", err)
	}

	for _, id := range Order {
		if _, ok := catalog.stages[id]; !ok {
			return nil, fmt.Errorf("stage prompt %q is missing", id)
		}
	}

	logging.BootDebug("loaded %d stage prompts", len(catalog.stages))
	return catalog, nil
}
