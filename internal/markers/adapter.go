package markers

import (
	"context"

	"trackamole/internal/models"
	"trackamole/internal/utils"
)

// Adapter turns store queries into live marker lists for the viewer.
type Adapter struct {
	store *Store
	log   *utils.Logger
}

func NewAdapter(store *Store, log *utils.Logger) *Adapter {
	return &Adapter{store: store, log: log}
}

// List returns the current markers of variant, optionally filtered by
// category ("" for all).
func (a *Adapter) List(ctx context.Context, variant models.BodyVariant, category models.Category) ([]models.Marker, error) {
	return a.store.ListMarkers(ctx, variant, category)
}

// Resolve looks up a marker by ID.
func (a *Adapter) Resolve(ctx context.Context, id int64) (models.Marker, error) {
	return a.store.GetMarker(ctx, id)
}

// Watch emits the current list immediately and again after every change to
// variant's markers until ctx is done. The channel is closed on exit. A
// consumer that falls behind only sees the latest list.
func (a *Adapter) Watch(ctx context.Context, variant models.BodyVariant, category models.Category) (<-chan []models.Marker, error) {
	changes, cancel := a.store.Changes(variant)
	initial, err := a.store.ListMarkers(ctx, variant, category)
	if err != nil {
		cancel()
		return nil, err
	}
	out := make(chan []models.Marker, 1)
	out <- initial
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
			}
			list, err := a.store.ListMarkers(ctx, variant, category)
			if err != nil {
				if ctx.Err() == nil {
					a.log.Warnf("refresh %s markers: %v", variant, err)
				}
				continue
			}
			// replace an unread list rather than block
			select {
			case <-out:
			default:
			}
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
