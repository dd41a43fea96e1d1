package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
	"jordanella.com/rmac/internal/cv"
)

// DefaultThreshold applies to templates that do not set one.
const DefaultThreshold = 0.8

// Registry holds named template sets described in YAML files.
type Registry struct {
	mu       sync.RWMutex
	sets     map[string]*Set
	basePath string // image paths in YAML files are relative to this, or to the YAML file when empty
	cache    *ImageCache
}

// TemplateDefinition represents a template in the YAML file
type TemplateDefinition struct {
	Name      string     `yaml:"name"`
	Path      string     `yaml:"path"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Region    *RegionDef `yaml:"region,omitempty"`
	Scale     float64    `yaml:"scale,omitempty"`
}

// RegionDef represents a region in the YAML file
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// SetDefinition is one named set in the YAML file
type SetDefinition struct {
	Name      string               `yaml:"name"`
	Threshold float64              `yaml:"threshold,omitempty"`
	Templates []TemplateDefinition `yaml:"templates"`
}

// TemplateFile represents the structure of a template YAML file. A file
// with only a top-level templates list defines one set named after the file.
type TemplateFile struct {
	Sets      []SetDefinition      `yaml:"sets,omitempty"`
	Templates []TemplateDefinition `yaml:"templates,omitempty"`
}

// NewRegistry creates a registry sharing cache. A nil cache gets a private one.
func NewRegistry(basePath string, cache *ImageCache) *Registry {
	if cache == nil {
		cache = NewImageCache()
	}
	return &Registry{sets: make(map[string]*Set), basePath: basePath, cache: cache}
}

// LoadFromFile loads every set in a YAML file, decoding all images.
func (r *Registry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return &ResourceLoadError{Path: filePath, Reason: "read template file", Err: err}
	}

	var file TemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return &ResourceLoadError{Path: filePath, Reason: "parse template YAML", Err: err}
	}

	defs := file.Sets
	if len(file.Templates) > 0 {
		name := trimExt(filepath.Base(filePath))
		defs = append(defs, SetDefinition{Name: name, Templates: file.Templates})
	}
	if len(defs) == 0 {
		return &ResourceLoadError{Path: filePath, Reason: "no sets or templates defined"}
	}

	base := r.basePath
	if base == "" {
		base = filepath.Dir(filePath)
	}

	loaded := make([]*Set, 0, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return &ResourceLoadError{Path: filePath, Reason: fmt.Sprintf("set %d: name cannot be empty", i+1)}
		}
		set, err := r.buildSet(filePath, base, def)
		if err != nil {
			return err
		}
		loaded = append(loaded, set)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range loaded {
		r.sets[s.Name] = s
	}
	return nil
}

func (r *Registry) buildSet(filePath, base string, def SetDefinition) (*Set, error) {
	threshold := def.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	set := &Set{Name: def.Name, Threshold: threshold}

	for i, td := range def.Templates {
		if td.Path == "" {
			return nil, &ResourceLoadError{Path: filePath, Reason: fmt.Sprintf("set %s template %d: path cannot be empty", def.Name, i+1)}
		}
		t := cv.Template{
			Name:      td.Name,
			Path:      filepath.Join(base, td.Path),
			Threshold: td.Threshold,
			Scale:     td.Scale,
		}
		if t.Name == "" {
			t.Name = trimExt(filepath.Base(td.Path))
		}
		if t.Threshold == 0 {
			t.Threshold = threshold
		}
		if td.Region != nil {
			region := cv.NewRegion(td.Region.X1, td.Region.Y1, td.Region.X2, td.Region.Y2)
			t.Region = &region
		}

		img, err := r.cache.Load(t.Path, t.Scale)
		if err != nil {
			return nil, &ResourceLoadError{Path: t.Path, Reason: "load template image", Err: err}
		}
		set.Templates = append(set.Templates, t.WithImage(img))
	}

	if len(set.Templates) == 0 {
		return nil, &ResourceLoadError{Path: filePath, Reason: fmt.Sprintf("set %s has no templates", def.Name)}
	}
	return set, nil
}

// LoadFromDirectory loads all YAML files from a directory
func (r *Registry) LoadFromDirectory(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return &ResourceLoadError{Path: dirPath, Reason: "read template directory", Err: err}
	}

	var loadErrors []error
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		if err := r.LoadFromFile(filepath.Join(dirPath, entry.Name())); err != nil {
			loadErrors = append(loadErrors, err)
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d template files (first error): %w", len(loadErrors), loadErrors[0])
	}
	return nil
}

// Get retrieves a set by name
func (r *Registry) Get(name string) (*Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sets[name]
	return s, ok
}

// Names returns all set names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of sets in the registry
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// Cache returns the shared image cache
func (r *Registry) Cache() *ImageCache {
	return r.cache
}
