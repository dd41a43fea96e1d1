package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jordanella.com/rmac/internal/cv"
)

// Set is a group of alternative templates for one kind of object, e.g.
// several poses of the same enemy. Matching a set yields its single best
// member placement.
type Set struct {
	Name      string
	Threshold float64
	Templates []cv.Template
}

// Len returns the number of templates
func (s *Set) Len() int { return len(s.Templates) }

// First returns the first template; sets used as single markers call this.
func (s *Set) First() cv.Template { return s.Templates[0] }

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".bmp": true}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Loader turns a settings path into a Set. Paths take three forms:
//
//	enemies/            every image in the directory, sorted by file name
//	enemy.png           a single image
//	hunt.yaml#enemies   a named set from a YAML registry file; without the
//	                    fragment the file must define exactly one set
type Loader struct {
	cache *ImageCache
}

// NewLoader creates a loader sharing cache. A nil cache gets a private one.
func NewLoader(cache *ImageCache) *Loader {
	if cache == nil {
		cache = NewImageCache()
	}
	return &Loader{cache: cache}
}

// Load resolves path into a non-empty set. threshold is used for images
// loaded directly; YAML sets carry their own.
func (l *Loader) Load(path string, threshold float64) (*Set, error) {
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	file, fragment, _ := strings.Cut(path, "#")
	if isYAML(file) {
		return l.loadYAML(file, fragment)
	}

	info, err := os.Stat(file)
	if err != nil {
		return nil, &ResourceLoadError{Path: file, Reason: "stat", Err: err}
	}
	if info.IsDir() {
		return l.loadDirectory(file, threshold)
	}
	if !IsImage(file) {
		return nil, &ResourceLoadError{Path: file, Reason: "not a png, jpeg or bmp image"}
	}
	t, err := l.loadImage(file, threshold)
	if err != nil {
		return nil, err
	}
	return &Set{Name: t.Name, Threshold: threshold, Templates: []cv.Template{t}}, nil
}

func (l *Loader) loadImage(path string, threshold float64) (cv.Template, error) {
	img, err := l.cache.Load(path, 1)
	if err != nil {
		return cv.Template{}, &ResourceLoadError{Path: path, Reason: "load template image", Err: err}
	}
	return cv.Template{
		Name:      trimExt(filepath.Base(path)),
		Path:      path,
		Threshold: threshold,
		Image:     img,
	}, nil
}

func (l *Loader) loadDirectory(dir string, threshold float64) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ResourceLoadError{Path: dir, Reason: "read template directory", Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	set := &Set{Name: filepath.Base(filepath.Clean(dir)), Threshold: threshold}
	for _, name := range names {
		t, err := l.loadImage(filepath.Join(dir, name), threshold)
		if err != nil {
			return nil, err
		}
		set.Templates = append(set.Templates, t)
	}
	if len(set.Templates) == 0 {
		return nil, &ResourceLoadError{Path: dir, Reason: "directory contains no template images"}
	}
	return set, nil
}

func (l *Loader) loadYAML(file, name string) (*Set, error) {
	reg := NewRegistry("", l.cache)
	if err := reg.LoadFromFile(file); err != nil {
		return nil, err
	}

	if name == "" {
		names := reg.Names()
		if len(names) != 1 {
			return nil, &ResourceLoadError{Path: file, Reason: fmt.Sprintf("file defines %d sets, select one with #name", len(names))}
		}
		name = names[0]
	}
	set, ok := reg.Get(name)
	if !ok {
		return nil, &ResourceLoadError{Path: file, Reason: fmt.Sprintf("no set named %q", name), Err: errors.New("unknown set")}
	}
	return set, nil
}
