// Package template defines screen layouts. A layout divides the screen into
// rectangular zones; every zone runs its own gapless controller over its own
// play-list directory.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
)

// ErrUnknownLayout is returned by Resolve for a name that is neither a
// built-in layout nor a readable file.
var ErrUnknownLayout = errors.New("unknown layout")

// Zone is a rectangular region of the screen. Coordinates are percentages
// (0-100) of the screen.
type Zone struct {
	ID          string `json:"id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PlaylistDir string `json:"playlist_dir"`
	Zindex      int    `json:"zindex"`
	// Looping overrides the player default for this zone when set.
	Looping *bool `json:"looping,omitempty"`
}

// Rect is a zone in pixels.
type Rect struct {
	X, Y, Width, Height int
}

// Full reports whether the zone covers the whole screen.
func (z Zone) Full() bool {
	return z.X == 0 && z.Y == 0 && z.Width >= 100 && z.Height >= 100
}

// Pixels converts the zone to pixels on a screenW x screenH display.
func (z Zone) Pixels(screenW, screenH int) Rect {
	if z.Full() {
		return Rect{Width: screenW, Height: screenH}
	}
	return Rect{
		X:      z.X * screenW / 100,
		Y:      z.Y * screenH / 100,
		Width:  z.Width * screenW / 100,
		Height: z.Height * screenH / 100,
	}
}

// Template is a named layout with one or more zones.
type Template struct {
	Name  string `json:"name"`
	Zones []Zone `json:"zones"`
}

// LoadFromFile reads and validates a JSON layout.
func LoadFromFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that there is at least one zone, that ids are unique and
// that every zone lies on screen.
func (t *Template) Validate() error {
	if len(t.Zones) == 0 {
		return fmt.Errorf("template %q has no zones", t.Name)
	}
	for _, z := range t.Zones {
		switch {
		case z.ID == "":
			return errors.New("zone missing id")
		case z.Width <= 0 || z.Height <= 0:
			return fmt.Errorf("zone %q has invalid dimensions: %dx%d", z.ID, z.Width, z.Height)
		case z.X < 0 || z.Y < 0 || z.X+z.Width > 100 || z.Y+z.Height > 100:
			return fmt.Errorf("zone %q exceeds screen bounds", z.ID)
		}
	}
	if dup := lo.FindDuplicatesBy(t.Zones, func(z Zone) string { return z.ID }); len(dup) > 0 {
		return fmt.Errorf("duplicate zone id: %s", dup[0].ID)
	}
	return nil
}

// ByZindex returns the zones bottom-most first.
func (t *Template) ByZindex() []Zone {
	zones := append([]Zone(nil), t.Zones...)
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Zindex < zones[j].Zindex })
	return zones
}

// Zone returns the zone with the given id.
func (t *Template) Zone(id string) (Zone, bool) {
	return lo.Find(t.Zones, func(z Zone) bool { return z.ID == id })
}

func zone(id string, x, y, w, h int, dir string, z int) Zone {
	return Zone{ID: id, X: x, Y: y, Width: w, Height: h, PlaylistDir: dir, Zindex: z}
}

// Fullscreen is a single zone covering the screen.
func Fullscreen(playlistDir string) *Template {
	return &Template{Name: "fullscreen", Zones: []Zone{
		zone("main", 0, 0, 100, 100, playlistDir, 0),
	}}
}

// MainWithFooter is a main area above a 15% footer strip.
func MainWithFooter(mainDir, footerDir string) *Template {
	return &Template{Name: "main-with-footer", Zones: []Zone{
		zone("main", 0, 0, 100, 85, mainDir, 0),
		zone("footer", 0, 85, 100, 15, footerDir, 1),
	}}
}

// MainWithSidebar is a main area with a 25% sidebar on the right.
func MainWithSidebar(mainDir, sideDir string) *Template {
	return &Template{Name: "main-with-sidebar", Zones: []Zone{
		zone("main", 0, 0, 75, 100, mainDir, 0),
		zone("sidebar", 75, 0, 25, 100, sideDir, 1),
	}}
}

// LShape is main content with a sidebar and a footer.
func LShape(mainDir, footerDir, sideDir string) *Template {
	return &Template{Name: "l-shape", Zones: []Zone{
		zone("main", 0, 0, 75, 85, mainDir, 0),
		zone("sidebar", 75, 0, 25, 100, sideDir, 1),
		zone("footer", 0, 85, 75, 15, footerDir, 2),
	}}
}

// Resolve turns a layout reference into a template. An empty ref or
// "fullscreen" gives the fullscreen layout over root; the other built-in
// names use one sub-directory of root per zone; anything else is read as a
// JSON file.
func Resolve(ref, root string) (*Template, error) {
	sub := func(id string) string { return filepath.Join(root, id) }
	switch ref {
	case "", "fullscreen":
		return Fullscreen(root), nil
	case "main-with-footer":
		return MainWithFooter(sub("main"), sub("footer")), nil
	case "main-with-sidebar":
		return MainWithSidebar(sub("main"), sub("sidebar")), nil
	case "l-shape":
		return LShape(sub("main"), sub("footer"), sub("sidebar")), nil
	}
	if _, err := os.Stat(ref); err != nil {
		return nil, fmt.Errorf("%s: %w", ref, ErrUnknownLayout)
	}
	return LoadFromFile(ref)
}
