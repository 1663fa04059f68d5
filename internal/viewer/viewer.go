// Package viewer ties the body model, marker list, selection and camera
// together and exposes them as a renderable, tappable surface.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal/assets"
	"trackamole/internal/camera"
	"trackamole/internal/markers"
	"trackamole/internal/models"
	"trackamole/internal/render"
	"trackamole/internal/scene"
	"trackamole/internal/state"
	"trackamole/internal/utils"
)

var (
	ErrNoModel   = errors.New("viewer: no model loaded")
	ErrNotAdding = errors.New("viewer: not in adding mode")
	ErrMissed    = errors.New("viewer: tap missed the body")
	ErrNoPending = errors.New("viewer: no pending marker position")
)

// Options wires a Viewer to its collaborators. All fields except Category
// and Logger are required.
type Options struct {
	BaseURL  string
	State    *state.Store
	Store    *markers.Store
	Loader   *assets.Loader
	Camera   *camera.Choreographer
	Renderer *render.Renderer
	Category models.Category // marker filter, "" for all
	Logger   *utils.Logger
}

type Viewer struct {
	opts    Options
	state   *state.Store
	adapter *markers.Adapter
	cam     *camera.Choreographer
	log     *utils.Logger

	mu          sync.Mutex
	model       *scene.Normalized
	markers     []models.Marker
	watchCancel context.CancelFunc
	watchGen    int
	unsubscribe func()
}

func New(opts Options) *Viewer {
	v := &Viewer{
		opts:    opts,
		state:   opts.State,
		adapter: markers.NewAdapter(opts.Store, opts.Logger),
		cam:     opts.Camera,
		log:     opts.Logger,
	}
	v.unsubscribe = v.state.Subscribe(v.onStateChange)
	return v
}

// Start warms the model cache for every variant and shows the current one.
func (v *Viewer) Start(ctx context.Context) error {
	urls := make([]string, 0, len(models.Variants))
	for _, variant := range models.Variants {
		urls = append(urls, assets.ModelURL(v.opts.BaseURL, variant))
	}
	v.opts.Loader.Preload(ctx, urls...)
	return v.SwitchVariant(ctx, v.state.Get().Variant)
}

// SwitchVariant loads and normalizes variant's model and re-targets the
// marker query. On error the previous model stays on screen.
func (v *Viewer) SwitchVariant(ctx context.Context, variant models.BodyVariant) error {
	asset, err := v.opts.Loader.Load(ctx, assets.ModelURL(v.opts.BaseURL, variant))
	if err != nil {
		return fmt.Errorf("load %s model: %w", variant, err)
	}
	norm, err := scene.Normalize(asset)
	if errors.Is(err, scene.ErrDegenerateGeometry) {
		v.log.Warnf("%s model: %v; showing unscaled", variant, err)
	} else if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	updates, err := v.adapter.Watch(watchCtx, variant, v.opts.Category)
	if err != nil {
		cancel()
		return fmt.Errorf("watch %s markers: %w", variant, err)
	}
	initial := <-updates

	v.mu.Lock()
	if v.watchCancel != nil {
		v.watchCancel()
	}
	v.watchCancel = cancel
	v.watchGen++
	gen := v.watchGen
	v.model = norm
	v.markers = initial
	v.mu.Unlock()

	v.state.SetVariant(variant)
	go v.follow(gen, updates)
	v.log.Infof("showing %s model, %d markers", variant, len(initial))
	return nil
}

// follow keeps the marker list current and drops a selection whose marker
// disappeared.
func (v *Viewer) follow(gen int, updates <-chan []models.Marker) {
	for list := range updates {
		v.mu.Lock()
		stale := gen != v.watchGen
		if !stale {
			v.markers = list
		}
		v.mu.Unlock()
		if stale {
			return
		}

		sel := v.state.Get().Selected
		if sel == 0 {
			continue
		}
		if _, ok := find(list, sel); !ok {
			v.state.Deselect()
		}
	}
}

func (v *Viewer) onStateChange(prev, next state.Snapshot) {
	if prev.Selected == next.Selected {
		return
	}
	v.focus(next.Selected)
}

// focus points the camera at marker id, or back at the overview for 0.
func (v *Viewer) focus(id int64) {
	if id == 0 {
		v.cam.Select(nil)
		return
	}
	m, ok := find(v.Markers(), id)
	if !ok {
		var err error
		if m, err = v.adapter.Resolve(context.Background(), id); err != nil {
			v.log.Warnf("select marker %d: %v", id, err)
			v.cam.Select(nil)
			return
		}
	}
	pos := m.Position
	v.cam.Select(&pos)
}

func find(list []models.Marker, id int64) (models.Marker, bool) {
	for _, m := range list {
		if m.ID == id {
			return m, true
		}
	}
	return models.Marker{}, false
}

// Markers returns the visible markers.
func (v *Viewer) Markers() []models.Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Marker(nil), v.markers...)
}

// Model returns the normalized model on screen, or nil.
func (v *Viewer) Model() *scene.Normalized {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.model
}

// SelectMarker selects id; 0 deselects. Selecting the current marker again
// flies the camera back to it after the user orbited away.
func (v *Viewer) SelectMarker(id int64) {
	if id != 0 && v.state.Get().Selected == id {
		v.focus(id)
		return
	}
	v.state.Select(id)
}

// Orbit applies direct user camera manipulation.
func (v *Viewer) Orbit(cam r3.Vec) { v.cam.Orbit(cam) }

// Tick advances the camera by dt seconds.
func (v *Viewer) Tick(dt float64) camera.Pose { return v.cam.Update(dt) }

// Run drives Tick at fps until ctx is done.
func (v *Viewer) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			v.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Frame describes what is currently on screen.
func (v *Viewer) Frame() render.Frame {
	snap := v.state.Get()
	v.mu.Lock()
	defer v.mu.Unlock()
	f := render.Frame{
		Pose:     v.cam.Pose(),
		Markers:  append([]models.Marker(nil), v.markers...),
		Selected: snap.Selected,
		Pending:  snap.Pending,
	}
	if v.model != nil {
		f.Asset = v.model.Asset
	}
	if m, ok := find(v.markers, snap.Selected); ok {
		f.Label = m.Label
		if f.Label == "" {
			f.Label = fmt.Sprintf("%s #%d", m.Category, m.ID)
		}
	}
	return f
}

// RenderCurrentFrame renders the current view as PNG.
func (v *Viewer) RenderCurrentFrame() ([]byte, error) {
	if v.Model() == nil {
		return nil, ErrNoModel
	}
	return v.opts.Renderer.RenderPNG(v.Frame())
}

// Pick maps a screen position to the body surface.
func (v *Viewer) Pick(x, y float64) (r3.Vec, bool) {
	if v.Model() == nil {
		return r3.Vec{}, false
	}
	return v.opts.Renderer.Pick(v.Frame(), x, y)
}

// PlaceMarker records the tapped surface point as the pending marker.
func (v *Viewer) PlaceMarker(x, y float64) (r3.Vec, error) {
	if !v.state.Get().Adding {
		return r3.Vec{}, ErrNotAdding
	}
	p, ok := v.Pick(x, y)
	if !ok {
		return r3.Vec{}, ErrMissed
	}
	v.state.SetPending(p)
	return p, nil
}

// ConfirmMarker saves the pending marker, leaves adding mode and selects it.
func (v *Viewer) ConfirmMarker(ctx context.Context, category models.Category, label string) (models.Marker, error) {
	snap := v.state.Get()
	if snap.Pending == nil {
		return models.Marker{}, ErrNoPending
	}
	m, err := v.opts.Store.CreateMarker(ctx, models.Marker{
		Variant:  snap.Variant,
		Position: *snap.Pending,
		Category: category,
		Label:    label,
	})
	if err != nil {
		return models.Marker{}, err
	}
	v.mu.Lock()
	if _, ok := find(v.markers, m.ID); !ok {
		v.markers = append(v.markers, m)
	}
	v.mu.Unlock()
	v.state.SetAdding(false)
	v.state.Select(m.ID)
	return m, nil
}

// Close stops following the store.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.watchCancel != nil {
		v.watchCancel()
		v.watchCancel = nil
	}
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}
