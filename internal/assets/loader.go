// Package assets fetches encrypted body models over HTTP, decrypts them with
// the build's asset key and parses them into scene graphs, caching results.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"trackamole/internal/crypto"
	"trackamole/internal/models"
	"trackamole/internal/scene"
	"trackamole/internal/utils"
)

// ParseFunc turns decrypted bytes into a scene graph.
type ParseFunc func(name string, data []byte) (*scene.Asset, error)

// Options configures a Loader. Zero values select defaults.
type Options struct {
	Client  *http.Client // default http.DefaultClient (no timeout)
	Parse   ParseFunc    // default scene.ParseGLB
	Logger  *utils.Logger
	Metrics *Metrics
}

// Loader loads and caches body models by URL. Cached assets live for the
// process lifetime and are shared; callers must clone before mutating.
type Loader struct {
	key     []byte
	client  *http.Client
	parse   ParseFunc
	log     *utils.Logger
	metrics *Metrics

	mu    sync.RWMutex
	cache map[string]*scene.Asset
	group singleflight.Group
}

// NewLoader returns a loader that decrypts with key.
func NewLoader(key []byte, opts Options) (*Loader, error) {
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("%w: asset key is %d bytes", crypto.ErrInvalidKeyLength, len(key))
	}
	l := &Loader{
		key:     append([]byte(nil), key...),
		client:  opts.Client,
		parse:   opts.Parse,
		log:     opts.Logger,
		metrics: opts.Metrics,
		cache:   make(map[string]*scene.Asset),
	}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if l.parse == nil {
		l.parse = scene.ParseGLB
	}
	return l, nil
}

// ModelURL is the conventional location of a variant's encrypted model.
func ModelURL(base string, v models.BodyVariant) string {
	return strings.TrimRight(base, "/") + "/models/" + string(v) + ".glb.enc"
}

// Load returns the parsed asset at url, fetching it on first use. Concurrent
// callers for the same url share one fetch; each caller may give up through
// its own ctx. The shared fetch is not tied to any caller's cancellation and
// is bounded only by the client timeout.
func (l *Loader) Load(ctx context.Context, url string) (*scene.Asset, error) {
	if a := l.cached(url); a != nil {
		l.metrics.hit()
		return a, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(url, func() (any, error) {
		if a := l.cached(url); a != nil {
			return a, nil
		}
		a, err := l.fetch(fetchCtx, url)
		if err != nil {
			l.metrics.observe(strings.ToLower(string(KindOf(err))))
			return nil, err
		}
		l.metrics.observe("ok")
		l.mu.Lock()
		l.cache[url] = a
		l.mu.Unlock()
		return a, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*scene.Asset), nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindFetch, URL: url, Cause: ctx.Err()}
	}
}

// Preload warms the cache for urls. Failures are logged and otherwise
// ignored; they are not cached and will surface on the next Load.
func (l *Loader) Preload(ctx context.Context, urls ...string) {
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := l.Load(ctx, u); err != nil {
				l.log.Warnf("preload %s: %v", u, err)
			}
		}(u)
	}
	wg.Wait()
}

// Cached reports whether url has already been loaded successfully.
func (l *Loader) Cached(url string) bool { return l.cached(url) != nil }

func (l *Loader) cached(url string) *scene.Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[url]
}

func (l *Loader) fetch(ctx context.Context, url string) (*scene.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: url, Cause: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindFetch, URL: url, Status: resp.StatusCode}
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: url, Status: resp.StatusCode, Cause: err}
	}

	plain, err := crypto.Decrypt(l.key, blob)
	if err != nil {
		return nil, &Error{Kind: KindDecrypt, URL: url, Cause: err}
	}
	name := strings.TrimSuffix(path.Base(req.URL.Path), ".enc")
	asset, err := l.parse(name, plain)
	if err != nil {
		return nil, &Error{Kind: KindParse, URL: url, Cause: err}
	}
	l.log.Infof("loaded %s (%d bytes, %d vertices)", url, len(blob), asset.VertexCount())
	return asset, nil
}
