// Package spatial provides per-layer R-tree indexes over triangulated element
// footprints. Indexes are built on first use and cached until invalidated.
package spatial

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/san-kum/etherm/internal/geom"
)

const (
	minBranch = 16
	maxBranch = 64
	pad       = 1e-12
)

// Item is one element footprint in a layer.
type Item struct {
	Index int
	Tri   geom.Triangle
}

type entry struct {
	item     Item
	centroid geom.Point2
	rect     rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

func toRect(b geom.Box2) rtreego.Rect {
	r, err := rtreego.NewRect(rtreego.Point{b.Min.X - pad, b.Min.Y - pad},
		[]float64{b.Width() + 2*pad, b.Height() + 2*pad})
	if err != nil {
		// lengths are strictly positive after padding
		panic(err)
	}
	return r
}

// Layer answers footprint queries for a single layer.
type Layer struct {
	tree    *rtreego.Rtree
	entries []*entry
}

func NewLayer(items []Item) *Layer {
	l := &Layer{tree: rtreego.NewTree(2, minBranch, maxBranch)}
	for _, it := range items {
		e := &entry{item: it, centroid: it.Tri.Centroid(), rect: toRect(it.Tri.BBox())}
		l.entries = append(l.entries, e)
		l.tree.Insert(e)
	}
	return l
}

func (l *Layer) Size() int { return len(l.entries) }

// Intersects returns the elements whose bounding box intersects box, sorted by index.
func (l *Layer) Intersects(box geom.Box2) []Item {
	if box.IsEmpty() || len(l.entries) == 0 {
		return nil
	}
	hits := l.tree.SearchIntersect(toRect(box))
	out := make([]Item, 0, len(hits))
	for _, h := range hits {
		e := h.(*entry)
		if e.item.Tri.BBox().Intersects(box) {
			out = append(out, e.item)
		}
	}
	sortItems(out)
	return out
}

// Covered returns the elements whose footprint lies entirely inside box.
func (l *Layer) Covered(box geom.Box2) []Item {
	var out []Item
	for _, it := range l.Intersects(box) {
		if box.Covers(it.Tri.BBox()) {
			out = append(out, it)
		}
	}
	return out
}

// Nearest returns up to k elements ordered by centroid distance to p.
func (l *Layer) Nearest(p geom.Point2, k int) []Item {
	if k <= 0 || len(l.entries) == 0 {
		return nil
	}
	// Box distance and centroid distance disagree near large triangles, so
	// over-fetch and re-rank by centroid.
	fetch := min(len(l.entries), max(4*k, 8))
	hits := l.tree.NearestNeighbors(fetch, rtreego.Point{p.X, p.Y})
	cands := make([]*entry, 0, len(hits))
	for _, h := range hits {
		if h != nil {
			cands = append(cands, h.(*entry))
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := cands[i].centroid.Dist(p), cands[j].centroid.Dist(p)
		if di != dj {
			return di < dj
		}
		return cands[i].item.Index < cands[j].item.Index
	})
	out := make([]Item, 0, k)
	for _, c := range cands[:min(k, len(cands))] {
		out = append(out, c.item)
	}
	return out
}

// Locate returns the element whose footprint contains p, falling back to the
// nearest element when p is outside every footprint.
func (l *Layer) Locate(p geom.Point2) (Item, bool) {
	box := geom.NewBox2(p, p)
	for _, it := range l.Intersects(box) {
		if it.Tri.Contains(p) {
			return it, true
		}
	}
	near := l.Nearest(p, 1)
	if len(near) == 0 {
		return Item{}, false
	}
	return near[0], true
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
}

// Source enumerates the footprints of one layer.
type Source func(layer int) []Item

// Index memoizes one Layer per layer id. It is safe for concurrent use.
type Index struct {
	mu     sync.Mutex
	layers map[int]*Layer
	src    Source
	builds atomic.Int64
}

func NewIndex(src Source) *Index {
	return &Index{layers: make(map[int]*Layer), src: src}
}

// Layer returns the cached index for layer id, building it on first access.
// Concurrent first calls may build in parallel; the first stored result wins.
func (x *Index) Layer(id int) *Layer {
	x.mu.Lock()
	l, ok := x.layers[id]
	x.mu.Unlock()
	if ok {
		return l
	}

	built := NewLayer(x.src(id))
	x.builds.Add(1)

	x.mu.Lock()
	defer x.mu.Unlock()
	if l, ok := x.layers[id]; ok {
		return l
	}
	x.layers[id] = built
	return built
}

// Invalidate drops every cached layer. Call it after changing element topology.
func (x *Index) Invalidate() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.layers = make(map[int]*Layer)
}

// Builds reports how many layer indexes have been constructed, including
// constructions discarded by a concurrent winner.
func (x *Index) Builds() int64 { return x.builds.Load() }
