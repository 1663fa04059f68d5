package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal/camera"
	"trackamole/internal/models"
	"trackamole/internal/scene"
)

var overview = camera.Pose{Camera: camera.DefaultCamera, Target: camera.DefaultTarget}

func pointAsset(points ...mgl64.Vec3) *scene.Asset {
	return &scene.Asset{Name: "points", Root: scene.NewGroup("root", scene.NewMesh("body", points))}
}

func TestRender_DrawsBodyAtTarget(t *testing.T) {
	r := New(DefaultConfig())
	img := r.Render(Frame{Pose: overview, Asset: pointAsset(mgl64.Vec3{0, 0.3, 0})})

	cfg := r.Config()
	require.Equal(t, cfg.Width, img.Bounds().Dx())
	require.Equal(t, cfg.Height, img.Bounds().Dy())

	x, y, ok := r.Project(overview, r3.Vec{Y: 0.3})
	require.True(t, ok)
	assert.InDelta(t, float64(cfg.Width)/2, x, 1e-6)
	assert.InDelta(t, float64(cfg.Height)/2, y, 1e-6)

	assert.Equal(t, cfg.Body, img.RGBAAt(int(x), int(y)))
	assert.Equal(t, cfg.Background, img.RGBAAt(0, 0))
}

func TestRender_HighlightsSelectedMarker(t *testing.T) {
	r := New(DefaultConfig())
	cfg := r.Config()
	m := models.Marker{ID: 9, Position: r3.Vec{X: 0.2, Y: 0.3}}
	other := models.Marker{ID: 10, Position: r3.Vec{X: -0.2, Y: 0.3}}
	img := r.Render(Frame{Pose: overview, Markers: []models.Marker{m, other}, Selected: 9})

	x, y, ok := r.Project(overview, m.Position)
	require.True(t, ok)
	assert.Equal(t, cfg.Marker, img.RGBAAt(int(x), int(y)))
	assert.Equal(t, cfg.Selected, img.RGBAAt(int(x)+6, int(y)))

	ox, oy, ok := r.Project(overview, other.Position)
	require.True(t, ok)
	assert.Equal(t, cfg.Marker, img.RGBAAt(int(ox), int(oy)))
	assert.Equal(t, cfg.Background, img.RGBAAt(int(ox)+6, int(oy)))
}

func TestRender_PendingAndLabel(t *testing.T) {
	r := New(DefaultConfig())
	cfg := r.Config()
	p := r3.Vec{Y: 0.6}
	img := r.Render(Frame{Pose: overview, Pending: &p, Label: "Mole #3"})

	x, y, ok := r.Project(overview, p)
	require.True(t, ok)
	assert.Equal(t, cfg.Pending, img.RGBAAt(int(x), int(y)))

	found := false
	for py := cfg.Height - 22; py < cfg.Height-4 && !found; py++ {
		for px := 8; px < 80; px++ {
			if img.RGBAAt(px, py) == cfg.Text {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "label text not drawn")
}

func TestRender_PointsBehindCameraSkipped(t *testing.T) {
	r := New(DefaultConfig())
	_, _, ok := r.Project(overview, r3.Vec{Z: 10})
	assert.False(t, ok)
	assert.NotPanics(t, func() {
		r.Render(Frame{Pose: overview, Asset: pointAsset(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{50, 0, 0})})
	})
}

func TestRenderPNG_Decodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 64, 48
	r := New(cfg)
	data, err := r.RenderPNG(Frame{Pose: overview, Asset: pointAsset(mgl64.Vec3{0, 0.3, 0})})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestPick_ReturnsFrontMostVertex(t *testing.T) {
	r := New(DefaultConfig())
	front := mgl64.Vec3{0, 0.3, 0.5}
	back := mgl64.Vec3{0, 0.3, -0.5}
	level := camera.Pose{Camera: r3.Vec{Y: 0.3, Z: 4}, Target: r3.Vec{Y: 0.3}}
	f := Frame{Pose: level, Asset: pointAsset(back, front)}

	cx, cy := float64(r.Config().Width)/2, float64(r.Config().Height)/2
	got, ok := r.Pick(f, cx+2, cy-1)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.Z, 1e-9)
	assert.InDelta(t, 0.3, got.Y, 1e-9)

	_, ok = r.Pick(f, 0, 0)
	assert.False(t, ok)

	_, ok = r.Pick(Frame{Pose: level}, cx, cy)
	assert.False(t, ok)
}

func TestNew_FillsDefaults(t *testing.T) {
	r := New(Config{})
	cfg := r.Config()
	assert.Equal(t, DefaultConfig().Width, cfg.Width)
	assert.Equal(t, DefaultConfig().FOV, cfg.FOV)
	assert.False(t, math.IsInf(cfg.Far, 0))
	assert.Greater(t, cfg.Far, cfg.Near)
}
