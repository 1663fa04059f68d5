package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal"
	"trackamole/internal/assets"
	"trackamole/internal/backup"
	"trackamole/internal/camera"
	"trackamole/internal/capture"
	"trackamole/internal/markers"
	"trackamole/internal/models"
	"trackamole/internal/reminder"
	"trackamole/internal/render"
	"trackamole/internal/report"
	"trackamole/internal/state"
	"trackamole/internal/utils"
	"trackamole/internal/viewer"
)

type app struct {
	cfg     internal.AppConfig
	log     *utils.Logger
	store   *markers.Store
	variant models.BodyVariant
}

// openViewer loads the body model and starts the camera loop. The returned
// func stops both.
func (a *app) openViewer(ctx context.Context) (*viewer.Viewer, *state.Store, func(), error) {
	key, err := internal.ReadAssetKey()
	if err != nil {
		return nil, nil, nil, err
	}
	reg := prometheus.NewRegistry()
	loader, err := assets.NewLoader(key, assets.Options{
		Client:  &http.Client{Timeout: time.Duration(a.cfg.FetchTimeout)},
		Logger:  a.log,
		Metrics: assets.NewMetrics(reg),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	st := state.New(a.variant)
	v := viewer.New(viewer.Options{
		BaseURL:  a.cfg.AssetBaseURL,
		State:    st,
		Store:    a.store,
		Loader:   loader,
		Camera:   camera.New(),
		Renderer: render.New(render.DefaultConfig()),
		Logger:   a.log,
	})
	if err := v.Start(ctx); err != nil {
		v.Close()
		return nil, nil, nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := v.Run(runCtx, a.cfg.FrameRate); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warnf("viewer loop: %v", err)
		}
	}()
	return v, st, func() {
		cancel()
		v.Close()
		if err := assets.LogCounters(reg, a.log); err != nil {
			a.log.Warnf("%v", err)
		}
	}, nil
}

func (a *app) listMarkers(ctx context.Context, o options) error {
	list, err := a.store.ListMarkers(ctx, a.variant, models.Category(o.category))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tLABEL\tPOSITION\tCREATED")
	for _, m := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t(%.3f, %.3f, %.3f)\t%s\n", m.ID, m.Category, m.Label,
			m.Position.X, m.Position.Y, m.Position.Z, m.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func (a *app) addMarker(ctx context.Context, o options) error {
	category := models.Category(o.category)
	if category == "" {
		category = models.CategoryMole
	}
	if o.tap == "" {
		m, err := a.store.CreateMarker(ctx, models.Marker{
			Variant:  a.variant,
			Position: r3.Vec{X: o.x, Y: o.y, Z: o.z},
			Category: category,
			Label:    o.label,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added marker %d\n", m.ID)
		return nil
	}

	x, y, err := parsePoint(o.tap)
	if err != nil {
		return err
	}
	v, st, stop, err := a.openViewer(ctx)
	if err != nil {
		return err
	}
	defer stop()
	st.SetAdding(true)
	p, err := v.PlaceMarker(x, y)
	if err != nil {
		return err
	}
	m, err := v.ConfirmMarker(ctx, category, o.label)
	if err != nil {
		return err
	}
	fmt.Printf("Added marker %d at (%.3f, %.3f, %.3f)\n", m.ID, p.X, p.Y, p.Z)
	return nil
}

func parsePoint(s string) (x, y float64, err error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid -tap %q, want x,y", s)
	}
	if x, err = strconv.ParseFloat(strings.TrimSpace(xs), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid -tap x: %w", err)
	}
	if y, err = strconv.ParseFloat(strings.TrimSpace(ys), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid -tap y: %w", err)
	}
	return x, y, nil
}

func (a *app) addEntry(ctx context.Context, o options) error {
	if o.id == 0 {
		return errors.New("--id required")
	}
	e, err := a.store.AddEntry(ctx, models.Entry{
		MarkerID: o.id,
		Date:     time.Now().UTC(),
		Notes:    o.notes,
		SizeMM:   o.size,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added entry %d to marker %d\n", e.ID, o.id)
	return nil
}

func (a *app) history(ctx context.Context, o options) error {
	if o.id == 0 {
		return errors.New("--id required")
	}
	entries, err := a.store.ListEntries(ctx, o.id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSIZE (MM)\tNOTES")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%.1f\t%s\n", e.Date.Local().Format(time.DateOnly), e.SizeMM, e.Notes)
	}
	return w.Flush()
}

func (a *app) deleteMarker(ctx context.Context, o options) error {
	if o.id == 0 {
		return errors.New("--id required")
	}
	if err := a.store.DeleteMarker(ctx, o.id); err != nil {
		return err
	}
	fmt.Printf("Deleted marker %d\n", o.id)
	return nil
}

// captureAll drives the sequencer over ids and returns the PNG per marker.
func (a *app) captureAll(ctx context.Context, v *viewer.Viewer, ids []int64) (map[int64][]byte, error) {
	seq := capture.New(v, v, time.Duration(a.cfg.SettleDelay), a.log)
	defer seq.Close()
	unsubscribe := seq.Subscribe(func(p capture.Progress) {
		status := "captured"
		if !p.Captured {
			status = "failed"
		}
		fmt.Printf("%s marker %d (%d left)\n", status, p.Marker, p.Remaining)
	})
	defer unsubscribe()
	if _, err := seq.EnqueueBatch(ids); err != nil {
		return nil, err
	}
	if err := seq.Wait(ctx); err != nil {
		return nil, err
	}
	return seq.Results(), nil
}

func (a *app) render(ctx context.Context, o options) error {
	v, _, stop, err := a.openViewer(ctx)
	if err != nil {
		return err
	}
	defer stop()

	var png []byte
	name := fmt.Sprintf("%s-overview.png", a.variant)
	if o.id != 0 {
		shots, err := a.captureAll(ctx, v, []int64{o.id})
		if err != nil {
			return err
		}
		png = shots[o.id]
		name = fmt.Sprintf("marker-%d.png", o.id)
	} else if png, err = v.RenderCurrentFrame(); err != nil {
		return err
	}
	if len(png) == 0 {
		return fmt.Errorf("no image captured for marker %d", o.id)
	}
	path := filepath.Join(outDir(o.out, "."), name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

func (a *app) report(ctx context.Context, o options) error {
	all, entries, err := a.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	ids, err := parseIDs(o.ids)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		for _, m := range all {
			if m.Variant == a.variant {
				ids = append(ids, m.ID)
			}
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no %s markers to report", a.variant)
	}

	v, _, stop, err := a.openViewer(ctx)
	if err != nil {
		return err
	}
	defer stop()
	shots, err := a.captureAll(ctx, v, ids)
	if err != nil {
		return err
	}
	path, err := report.WriteFile(outDir(o.out, a.cfg.ReportDir), report.Build(all, entries, ids, shots, time.Now()))
	if err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid marker id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *app) export(ctx context.Context, o options) error {
	data, name, err := backup.Export(ctx, a.store, o.password, time.Now())
	if err != nil {
		return err
	}
	dir := outDir(o.out, ".")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

func (a *app) importBackup(ctx context.Context, o options) error {
	if o.file == "" {
		return errors.New("--file required")
	}
	data, err := os.ReadFile(o.file)
	if err != nil {
		return err
	}
	doc, err := backup.Import(ctx, a.store, filepath.Base(o.file), data, o.password)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d markers and %d entries\n", len(doc.Moles), len(doc.Entries))
	return nil
}

func (a *app) remind(ctx context.Context, _ options) error {
	notifier := reminder.NewLogNotifier(a.log)
	at, err := reminder.NewService(notifier, a.log).Configure(ctx, a.cfg.Reminder)
	if err != nil {
		return err
	}
	if at.IsZero() {
		fmt.Println("Reminders are disabled")
		return nil
	}
	fmt.Println("Next reminder:", at.Local().Format(time.RFC1123))
	return nil
}

func outDir(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}
