package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinLayoutsAreValid(t *testing.T) {
	for _, tmpl := range []*Template{
		Fullscreen("/p"),
		MainWithFooter("/m", "/f"),
		MainWithSidebar("/m", "/s"),
		LShape("/m", "/f", "/s"),
	} {
		assert.NoError(t, tmpl.Validate(), tmpl.Name)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		zones []Zone
	}{
		{"no zones", nil},
		{"missing id", []Zone{{Width: 10, Height: 10}}},
		{"zero size", []Zone{{ID: "a"}}},
		{"off screen", []Zone{{ID: "a", X: 50, Width: 60, Height: 10}}},
		{"duplicate", []Zone{{ID: "a", Width: 10, Height: 10}, {ID: "a", Width: 10, Height: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, (&Template{Name: tt.name, Zones: tt.zones}).Validate())
		})
	}
}

func TestPixels(t *testing.T) {
	tmpl := MainWithFooter("/m", "/f")

	main, ok := tmpl.Zone("main")
	require.True(t, ok)
	assert.Equal(t, Rect{Width: 1920, Height: 918}, main.Pixels(1920, 1080))

	footer, _ := tmpl.Zone("footer")
	assert.Equal(t, Rect{Y: 918, Width: 1920, Height: 162}, footer.Pixels(1920, 1080))

	full := Fullscreen("/p").Zones[0]
	assert.True(t, full.Full())
	assert.Equal(t, Rect{Width: 3840, Height: 2160}, full.Pixels(3840, 2160))
}

func TestByZindex(t *testing.T) {
	tmpl := &Template{Zones: []Zone{
		{ID: "top", Zindex: 2},
		{ID: "bottom", Zindex: 0},
		{ID: "middle", Zindex: 1},
	}}
	ids := []string{}
	for _, z := range tmpl.ByZindex() {
		ids = append(ids, z.ID)
	}
	assert.Equal(t, []string{"bottom", "middle", "top"}, ids)
	assert.Equal(t, "top", tmpl.Zones[0].ID, "original order untouched")
}

func TestResolve(t *testing.T) {
	tmpl, err := Resolve("", "/playlist")
	require.NoError(t, err)
	assert.Equal(t, "fullscreen", tmpl.Name)
	assert.Equal(t, "/playlist", tmpl.Zones[0].PlaylistDir)

	tmpl, err = Resolve("l-shape", "/playlist")
	require.NoError(t, err)
	side, _ := tmpl.Zone("sidebar")
	assert.Equal(t, filepath.Join("/playlist", "sidebar"), side.PlaylistDir)

	_, err = Resolve("no-such-layout", "/playlist")
	assert.ErrorIs(t, err, ErrUnknownLayout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	data := `{"name":"split","zones":[
		{"id":"left","x":0,"y":0,"width":50,"height":100,"playlist_dir":"/l"},
		{"id":"right","x":50,"y":0,"width":50,"height":100,"playlist_dir":"/r","looping":false}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	tmpl, err := Resolve(path, "/ignored")
	require.NoError(t, err)
	assert.Equal(t, "split", tmpl.Name)
	require.Len(t, tmpl.Zones, 2)
	assert.Nil(t, tmpl.Zones[0].Looping)
	require.NotNil(t, tmpl.Zones[1].Looping)
	assert.False(t, *tmpl.Zones[1].Looping)

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"bad","zones":[]}`), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}
