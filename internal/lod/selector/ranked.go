package selector

import (
	"sort"

	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// ranked is a capacity-bounded list kept sorted by cmp. Pushing into a full
// list evicts the worst entry; equal entries keep their arrival order.
type ranked struct {
	limit int
	items []lod.Address
	cmp   func(a, b lod.Address) int
}

func newRanked(limit int, cmp func(a, b lod.Address) int) *ranked {
	limit = max(limit, 0)
	return &ranked{limit: limit, items: make([]lod.Address, 0, min(limit, 256)), cmp: cmp}
}

// push inserts a and reports whether it was kept.
func (r *ranked) push(a lod.Address) bool {
	if r.limit == 0 {
		return false
	}
	i := sort.Search(len(r.items), func(i int) bool { return r.cmp(r.items[i], a) > 0 })
	if len(r.items) == r.limit {
		if i == r.limit {
			return false
		}
		r.items = r.items[:r.limit-1]
	}
	r.items = append(r.items, lod.Address{})
	copy(r.items[i+1:], r.items[i:])
	r.items[i] = a
	return true
}

// truncate keeps at most n best entries.
func (r *ranked) truncate(n int) {
	if n < len(r.items) {
		r.items = r.items[:max(n, 0)]
	}
}

func (r *ranked) len() int { return len(r.items) }
