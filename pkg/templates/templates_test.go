package templates

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if filepath.Ext(path) == ".bmp" {
		err = bmp.Encode(f, img)
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestLoadDirectoryFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "b_slime.png"), 8, 6)
	writeImage(t, filepath.Join(dir, "a_bat.bmp"), 5, 5)
	writeImage(t, filepath.Join(dir, "c_wolf.PNG"), 4, 4)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644)
	os.Mkdir(filepath.Join(dir, "nested.png"), 0755)

	set, err := NewLoader(nil).Load(dir, 0.7)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Expected 3 templates, got %d", set.Len())
	}
	want := []string{"a_bat", "b_slime", "c_wolf"}
	for i, name := range want {
		if set.Templates[i].Name != name {
			t.Errorf("template %d: expected %s, got %s", i, name, set.Templates[i].Name)
		}
		if set.Templates[i].Threshold != 0.7 {
			t.Errorf("template %d: expected threshold 0.7, got %f", i, set.Templates[i].Threshold)
		}
	}
	if got := set.Templates[1].Size(); got != image.Pt(8, 6) {
		t.Errorf("Expected 8x6 slime, got %v", got)
	}
	if c := set.Templates[0].Image.RGBAAt(1, 0); c.R != 20 || c.B != 90 {
		t.Errorf("Unexpected decoded bmp pixel %v", c)
	}
}

func TestLoadSingleImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marker.png")
	writeImage(t, path, 10, 3)

	set, err := NewLoader(nil).Load(path, 0)
	if err != nil {
		t.Fatalf("Failed to load image: %v", err)
	}
	if set.Len() != 1 || set.First().Name != "marker" || set.Threshold != DefaultThreshold {
		t.Errorf("Unexpected set %+v", set)
	}
}

func TestLoadFailuresAreResourceLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	os.Mkdir(empty, 0755)
	os.WriteFile(filepath.Join(empty, "readme.md"), []byte("#"), 0644)

	corrupt := filepath.Join(dir, "corrupt.png")
	os.WriteFile(corrupt, []byte("definitely not a png"), 0644)

	text := filepath.Join(dir, "list.txt")
	os.WriteFile(text, []byte("x"), 0644)

	for _, path := range []string{empty, corrupt, text, filepath.Join(dir, "missing.png"), filepath.Join(dir, "missing.yaml")} {
		_, err := NewLoader(nil).Load(path, 0.8)
		var rle *ResourceLoadError
		if !errors.As(err, &rle) {
			t.Errorf("%s: expected ResourceLoadError, got %v", filepath.Base(path), err)
		}
	}
}

func TestLoadYAMLSets(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "slime.png"), 10, 10)
	writeImage(t, filepath.Join(dir, "battle.png"), 6, 4)

	yamlPath := filepath.Join(dir, "hunt.yaml")
	os.WriteFile(yamlPath, []byte(`
sets:
  - name: enemies
    threshold: 0.75
    templates:
      - path: slime.png
      - name: slime_small
        path: slime.png
        scale: 0.5
        threshold: 0.9
        region: {x1: 0, y1: 0, x2: 800, y2: 600}
  - name: battle
    templates:
      - path: battle.png
`), 0644)

	cache := NewImageCache()
	loader := NewLoader(cache)

	set, err := loader.Load(yamlPath+"#enemies", 0)
	if err != nil {
		t.Fatalf("Failed to load enemies: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 templates, got %d", set.Len())
	}
	if set.Templates[0].Name != "slime" || set.Templates[0].Threshold != 0.75 {
		t.Errorf("Unexpected first template %+v", set.Templates[0])
	}
	small := set.Templates[1]
	if small.Size() != image.Pt(5, 5) {
		t.Errorf("Expected scaled 5x5 template, got %v", small.Size())
	}
	if small.Region == nil || small.Region.X2 != 800 || small.Threshold != 0.9 {
		t.Errorf("Unexpected region/threshold %+v", small)
	}

	battle, err := loader.Load(yamlPath+"#battle", 0)
	if err != nil {
		t.Fatalf("Failed to load battle: %v", err)
	}
	if battle.Threshold != DefaultThreshold {
		t.Errorf("Expected default threshold, got %f", battle.Threshold)
	}

	if _, err := loader.Load(yamlPath, 0); err == nil {
		t.Error("Expected ambiguity error without a set name")
	}
	if _, err := loader.Load(yamlPath+"#bosses", 0); err == nil {
		t.Error("Expected error for unknown set")
	}

	if stats := cache.Stats(); stats.Hits == 0 {
		t.Errorf("Expected repeated loads to hit the cache, got %+v", stats)
	}
}

func TestRegistryLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "cursor.png"), 4, 4)
	os.WriteFile(filepath.Join(dir, "cursor.yml"), []byte("templates:\n  - path: cursor.png\n"), 0644)
	os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0644)

	reg := NewRegistry("", nil)
	if err := reg.LoadFromDirectory(dir); err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}
	set, ok := reg.Get("cursor")
	if !ok || set.Len() != 1 {
		t.Fatalf("Expected cursor set, got %v %v", set, ok)
	}
	if reg.Count() != 1 {
		t.Errorf("Expected 1 set, got %d", reg.Count())
	}
}
