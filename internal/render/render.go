// Package render draws the body model and its markers into an image with a
// small software point rasterizer, and maps screen taps back to the surface.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal/camera"
	"trackamole/internal/models"
	"trackamole/internal/scene"
)

// Config defines the frame size, lens and palette.
type Config struct {
	Width      int
	Height     int
	FOV        float64 // vertical field of view in degrees
	Near, Far  float64
	Background color.RGBA
	Body       color.RGBA
	Marker     color.RGBA
	Selected   color.RGBA
	Pending    color.RGBA
	Text       color.RGBA
	PickRadius float64 // pixels
}

func DefaultConfig() Config {
	return Config{
		Width:      480,
		Height:     640,
		FOV:        50,
		Near:       0.1,
		Far:        100,
		Background: color.RGBA{R: 18, G: 18, B: 24, A: 255},
		Body:       color.RGBA{R: 230, G: 190, B: 160, A: 255},
		Marker:     color.RGBA{R: 120, G: 60, B: 30, A: 255},
		Selected:   color.RGBA{R: 220, G: 40, B: 40, A: 255},
		Pending:    color.RGBA{R: 40, G: 160, B: 220, A: 255},
		Text:       color.RGBA{R: 240, G: 240, B: 240, A: 255},
		PickRadius: 6,
	}
}

// Frame is everything visible in one render.
type Frame struct {
	Pose     camera.Pose
	Asset    *scene.Asset
	Markers  []models.Marker
	Selected int64
	Pending  *r3.Vec
	Label    string
}

// Renderer rasterizes frames. It holds no per-frame state and may be shared.
type Renderer struct {
	cfg  Config
	face font.Face
}

func New(cfg Config) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.FOV <= 0 {
		cfg.FOV = DefaultConfig().FOV
	}
	if cfg.Near <= 0 {
		cfg.Near = 0.1
	}
	if cfg.Far <= cfg.Near {
		cfg.Far = cfg.Near * 1000
	}
	return &Renderer{cfg: cfg, face: basicfont.Face7x13}
}

func (r *Renderer) Config() Config { return r.cfg }

type projector struct {
	mvp  mgl64.Mat4
	w, h float64
}

func (r *Renderer) projector(p camera.Pose) projector {
	view := mgl64.LookAtV(vec3(p.Camera), vec3(p.Target), mgl64.Vec3{0, 1, 0})
	proj := mgl64.Perspective(mgl64.DegToRad(r.cfg.FOV), float64(r.cfg.Width)/float64(r.cfg.Height), r.cfg.Near, r.cfg.Far)
	return projector{mvp: proj.Mul4(view), w: float64(r.cfg.Width), h: float64(r.cfg.Height)}
}

// project maps a world point to pixel coordinates and view depth. ok is
// false behind the camera or outside the depth range.
func (pr projector) project(p mgl64.Vec3) (x, y, depth float64, ok bool) {
	c := pr.mvp.Mul4x1(p.Vec4(1))
	if c.W() <= 0 {
		return 0, 0, 0, false
	}
	ndc := c.Vec3().Mul(1 / c.W())
	if ndc.Z() < -1 || ndc.Z() > 1 {
		return 0, 0, 0, false
	}
	x = (ndc.X() + 1) / 2 * pr.w
	y = (1 - ndc.Y()) / 2 * pr.h
	return x, y, c.W(), true
}

// Project returns the pixel position of p under pose.
func (r *Renderer) Project(pose camera.Pose, p r3.Vec) (x, y float64, ok bool) {
	x, y, _, ok = r.projector(pose).project(vec3(p))
	return x, y, ok
}

// Render draws f into a new image.
func (r *Renderer) Render(f Frame) *image.RGBA {
	w, h := r.cfg.Width, r.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r.cfg.Background.R, r.cfg.Background.G, r.cfg.Background.B, r.cfg.Background.A
	}
	depth := make([]float64, w*h)
	for i := range depth {
		depth[i] = math.Inf(1)
	}
	pr := r.projector(f.Pose)

	if f.Asset != nil {
		near, far := math.Inf(1), math.Inf(-1)
		pts := worldPoints(f.Asset)
		for _, p := range pts {
			if _, _, d, ok := pr.project(p); ok {
				near, far = math.Min(near, d), math.Max(far, d)
			}
		}
		for _, p := range pts {
			x, y, d, ok := pr.project(p)
			if !ok {
				continue
			}
			shade := 1.0
			if far > near {
				shade = 1 - 0.5*(d-near)/(far-near)
			}
			c := scale(r.cfg.Body, shade)
			splat(img, depth, int(x), int(y), 1, d, c)
		}
	}

	for _, m := range f.Markers {
		x, y, d, ok := pr.project(vec3(m.Position))
		if !ok {
			continue
		}
		if m.ID == f.Selected {
			disc(img, int(x), int(y), 7, r.cfg.Selected)
			disc(img, int(x), int(y), 4, r.cfg.Marker)
			continue
		}
		// markers slightly behind the surface still show
		splat(img, depth, int(x), int(y), 3, d-0.05, r.cfg.Marker)
	}
	if f.Pending != nil {
		if x, y, _, ok := pr.project(vec3(*f.Pending)); ok {
			disc(img, int(x), int(y), 6, r.cfg.Pending)
		}
	}
	if f.Label != "" {
		d := &font.Drawer{Dst: img, Src: image.NewUniform(r.cfg.Text), Face: r.face}
		d.Dot = fixed.P(8, h-8)
		d.DrawString(f.Label)
	}
	return img
}

// RenderPNG renders f and encodes it as PNG.
func (r *Renderer) RenderPNG(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Render(f)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Pick returns the body surface point under pixel (x, y): the front-most
// vertex projecting within PickRadius pixels.
func (r *Renderer) Pick(f Frame, x, y float64) (r3.Vec, bool) {
	if f.Asset == nil {
		return r3.Vec{}, false
	}
	pr := r.projector(f.Pose)
	best, bestDepth := mgl64.Vec3{}, math.Inf(1)
	found := false
	for _, p := range worldPoints(f.Asset) {
		px, py, d, ok := pr.project(p)
		if !ok || math.Hypot(px-x, py-y) > r.cfg.PickRadius {
			continue
		}
		if d < bestDepth {
			best, bestDepth, found = p, d, true
		}
	}
	return r3.Vec{X: best.X(), Y: best.Y(), Z: best.Z()}, found
}

func worldPoints(a *scene.Asset) []mgl64.Vec3 {
	var out []mgl64.Vec3
	_ = scene.Walk(a.Root, func(n *scene.Node, world mgl64.Mat4) error {
		if n.Kind != scene.KindMesh || n.Mesh == nil {
			return nil
		}
		for _, p := range n.Mesh.Positions {
			out = append(out, mgl64.TransformCoordinate(p, world))
		}
		return nil
	})
	return out
}

func vec3(v r3.Vec) mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func scale(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{R: uint8(float64(c.R) * f), G: uint8(float64(c.G) * f), B: uint8(float64(c.B) * f), A: c.A}
}

// splat draws a depth-tested square of half-size r.
func splat(img *image.RGBA, depth []float64, cx, cy, r int, d float64, c color.RGBA) {
	b := img.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < b.Min.X || y < b.Min.Y || x >= b.Max.X || y >= b.Max.Y {
				continue
			}
			i := y*b.Dx() + x
			if d >= depth[i] {
				continue
			}
			depth[i] = d
			img.SetRGBA(x, y, c)
		}
	}
}

// disc draws an overlay circle ignoring depth.
func disc(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y > r*r {
				continue
			}
			if (image.Point{X: cx + x, Y: cy + y}).In(img.Bounds()) {
				img.SetRGBA(cx+x, cy+y, c)
			}
		}
	}
}
