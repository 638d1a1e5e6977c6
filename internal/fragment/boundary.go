package fragment

import (
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/tidwall/btree"
)

// collectBoundaries returns the strictly increasing cut points of a pass:
// 0, length, and every endpoint of every spanning range. Collapsed ranges
// contribute nothing, so they can never split a segment.
func collectBoundaries(ranges []model.Range, length int) []int {
	var set btree.Set[int]
	set.Insert(0)
	set.Insert(length)
	for _, r := range ranges {
		if r.IsCollapsed() {
			continue
		}
		set.Insert(r.Start)
		set.Insert(r.End)
	}

	bounds := make([]int, 0, set.Len())
	set.Scan(func(offset int) bool {
		bounds = append(bounds, offset)
		return true
	})
	return bounds
}
