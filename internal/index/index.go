// Package index keeps annotations grouped by the container they live in
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/annofrag/internal/model"
	"github.com/tidwall/btree"
)

var (
	ErrDuplicate = errors.New("duplicate annotation")
	ErrNotFound  = errors.New("annotation not found")
)

// key orders annotations by container, then start, then insertion order
type key struct {
	container string
	start     int
	seq       uint64
}

func keyLess(a, b key) bool {
	if a.container != b.container {
		return a.container < b.container
	}
	if a.start != b.start {
		return a.start < b.start
	}
	return a.seq < b.seq
}

// Ref identifies an annotation. Range ids only have to be unique within
// the node that owns them, so the id alone is not enough.
type Ref struct {
	ContainerID string
	NodeID      string
	ID          string
}

// RefOf returns the reference of a
func RefOf(a model.Annotation) Ref {
	return Ref{ContainerID: a.ContainerID, NodeID: a.NodeID, ID: a.ID}
}

func (r Ref) String() string {
	return r.ContainerID + "/" + r.NodeID + "#" + r.ID
}

type item struct {
	key
	ann model.Annotation
}

// Index is a container annotation index, safe for concurrent use
type Index struct {
	mu    sync.RWMutex
	seq   uint64
	byRef map[Ref]key
	order *btree.BTreeG[item]
}

// New creates an empty index
func New() *Index {
	return &Index{
		byRef: make(map[Ref]key),
		order: btree.NewBTreeGOptions(func(a, b item) bool {
			return keyLess(a.key, b.key)
		}, btree.Options{NoLocks: true}),
	}
}

// Create adds an annotation. Ids must be unique within their owning node.
func (x *Index) Create(a model.Annotation) error {
	if a.ID == "" {
		return fmt.Errorf("create annotation: empty id")
	}
	ref := RefOf(a)
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.byRef[ref]; ok {
		return fmt.Errorf("create %s: %w", ref, ErrDuplicate)
	}
	x.seq++
	k := key{container: a.ContainerID, start: a.Start, seq: x.seq}
	x.byRef[ref] = k
	x.order.Set(item{key: k, ann: a})
	return nil
}

// Delete removes the annotation ref points at
func (x *Index) Delete(ref Ref) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	k, ok := x.byRef[ref]
	if !ok {
		return fmt.Errorf("delete %s: %w", ref, ErrNotFound)
	}
	delete(x.byRef, ref)
	x.order.Delete(item{key: k})
	return nil
}

// Update replaces the annotation with the same reference as a. It keeps its
// original insertion order, so moving an annotation never changes how it
// breaks ties.
func (x *Index) Update(a model.Annotation) error {
	ref := RefOf(a)
	x.mu.Lock()
	defer x.mu.Unlock()

	old, ok := x.byRef[ref]
	if !ok {
		return fmt.Errorf("update %s: %w", ref, ErrNotFound)
	}
	x.order.Delete(item{key: old})
	k := key{container: a.ContainerID, start: a.Start, seq: old.seq}
	x.byRef[ref] = k
	x.order.Set(item{key: k, ann: a})
	return nil
}

// Lookup returns the annotation ref points at
func (x *Index) Lookup(ref Ref) (model.Annotation, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	k, ok := x.byRef[ref]
	if !ok {
		return model.Annotation{}, false
	}
	it, ok := x.order.Get(item{key: k})
	return it.ann, ok
}

// Get returns the annotations of a container ordered by start, then
// insertion order. An empty tag matches every annotation.
func (x *Index) Get(containerID, tag string) []model.Annotation {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []model.Annotation
	x.scanContainer(containerID, func(a model.Annotation) {
		if tag == "" || a.Tag == tag {
			out = append(out, a)
		}
	})
	return out
}

// Ranges returns a container's annotations as fragmenter input. The order
// is the same as Get, so equal ranges keep their insertion tie-break.
func (x *Index) Ranges(containerID string) []model.Range {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []model.Range
	x.scanContainer(containerID, func(a model.Annotation) {
		out = append(out, a.Range)
	})
	return out
}

func (x *Index) scanContainer(containerID string, fn func(model.Annotation)) {
	x.order.Ascend(item{key: key{container: containerID}}, func(it item) bool {
		if it.container != containerID {
			return false
		}
		fn(it.ann)
		return true
	})
}

// AnchorsForPath returns the start and end coordinates of every annotation
// living on the property path. Coordinates are ordered by offset; at the
// same offset ends come before starts.
func (x *Index) AnchorsForPath(path string) []model.Coordinate {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []model.Coordinate
	x.order.Scan(func(it item) bool {
		if it.ann.Path() != path {
			return true
		}
		out = append(out,
			model.Coordinate{AnnotationID: it.ann.ID, NodeID: it.ann.NodeID, Offset: it.ann.Start, IsStart: true},
			model.Coordinate{AnnotationID: it.ann.ID, NodeID: it.ann.NodeID, Offset: it.ann.End, IsStart: false},
		)
		return true
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return !out[i].IsStart && out[j].IsStart
	})
	return out
}

// Containers returns the distinct container ids in sorted order
func (x *Index) Containers() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []string
	x.order.Scan(func(it item) bool {
		if len(out) == 0 || out[len(out)-1] != it.container {
			out = append(out, it.container)
		}
		return true
	})
	return out
}

// Len returns the number of annotations
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byRef)
}
