package report

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/canonical/pdfref/internal/metrics"
)

// PageSource renders pages of one manual.
type PageSource interface {
	Render(page int, zoom float64) ([]byte, error)
}

type pageKey struct {
	path string
	page int
	zoom float64
}

// Renderer rasterizes pages through an LRU cache of PNG bytes, since
// rendering dominates report latency and lookups repeat.
type Renderer struct {
	cache   *lru.Cache[pageKey, []byte]
	metrics *metrics.Metrics
}

func NewRenderer(size int, m *metrics.Metrics) (*Renderer, error) {
	cache, err := lru.New[pageKey, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create render cache: %w", err)
	}
	return &Renderer{cache: cache, metrics: m}, nil
}

// Render returns page of the manual at path, rendering it on a cache miss.
func (r *Renderer) Render(src PageSource, path string, page int, zoom float64) ([]byte, error) {
	key := pageKey{path: path, page: page, zoom: zoom}
	if png, ok := r.cache.Get(key); ok {
		r.metrics.RenderCache(true)
		return png, nil
	}
	r.metrics.RenderCache(false)

	png, err := src.Render(page, zoom)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, png)
	return png, nil
}

// Len is the number of cached pages.
func (r *Renderer) Len() int {
	return r.cache.Len()
}
