package spatial

import (
	"container/heap"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
)

// Neighbor is a KNN result: an atom and its exact Euclidean distance in
// projected space, ordered ascending by (distance, atom id).
type Neighbor struct {
	ID       atom.ID
	Distance float64
}

// Index is the store's spatial index: an R-tree over projected points plus
// a coarse bucket map for O(1) pre-filtering. It is memory-resident and is
// rebuilt from the embeddings table on open; a single writer mutates it
// under the write lock while readers query concurrently.
type Index struct {
	mu      sync.RWMutex
	tree    *rtree
	buckets map[uint32][]atom.ID
	logger  *zap.SugaredLogger
}

// NewIndex creates an empty spatial index.
func NewIndex(logger *zap.SugaredLogger) *Index {
	return &Index{
		tree:    newRTree(),
		buckets: make(map[uint32][]atom.ID),
		logger:  logger,
	}
}

// Insert adds a point to the tree and its bucket. Incremental; never
// triggers a full rebuild.
func (ix *Index) Insert(id atom.ID, p Point3D, bucket uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.tree.insert(id, p)
	ix.buckets[bucket] = append(ix.buckets[bucket], id)
}

// Remove deletes a point from the tree and its bucket. Reports whether the
// point was present.
func (ix *Index) Remove(id atom.ID, p Point3D, bucket uint32) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := ix.tree.remove(id, p)
	members := ix.buckets[bucket]
	for i, member := range members {
		if member == id {
			ix.buckets[bucket] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(ix.buckets[bucket]) == 0 {
		delete(ix.buckets, bucket)
	}
	return removed
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.len()
}

// RangeQuery returns the ids of all indexed points within radius of q,
// ordered by atom id. Two-phase: the tree's bounding boxes prune far
// subtrees, then the surviving candidates get an exact distance check.
func (ix *Index) RangeQuery(q Point3D, radius float64) ([]atom.ID, error) {
	if radius <= 0 {
		return nil, errors.Mark(errors.Newf("radius must be positive, got %g", radius), errors.ErrInvalidArgument)
	}

	box := Rect{
		Min: Point3D{X: q.X - radius, Y: q.Y - radius, Z: q.Z - radius},
		Max: Point3D{X: q.X + radius, Y: q.Y + radius, Z: q.Z + radius},
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var candidates []entry
	ix.tree.search(ix.tree.root, box, &candidates)

	ids := make([]atom.ID, 0, len(candidates))
	for _, e := range candidates {
		if e.point.Distance(q) <= radius {
			ids = append(ids, e.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// KNN returns the k nearest indexed points to q via best-first
// branch-and-bound traversal: bounding boxes are visited in order of their
// lower-bound distance, so the first k point entries popped are exact.
// Equal distances break ties by atom id ascending. An empty index returns
// an empty result, not an error.
func (ix *Index) KNN(q Point3D, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, errors.Mark(errors.Newf("k must be positive, got %d", k), errors.ErrInvalidArgument)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	pq := &knnQueue{}
	heap.Init(pq)
	heap.Push(pq, knnItem{node: ix.tree.root, dist: 0})

	results := make([]Neighbor, 0, k)
	for pq.Len() > 0 && len(results) < k {
		item := heap.Pop(pq).(knnItem)
		if item.node != nil {
			for _, e := range item.node.entries {
				if item.node.leaf {
					heap.Push(pq, knnItem{id: e.id, point: e.point, dist: e.point.Distance(q)})
				} else {
					heap.Push(pq, knnItem{node: e.child, dist: e.rect.minDist(q)})
				}
			}
			continue
		}
		results = append(results, Neighbor{ID: item.id, Distance: item.dist})
	}
	return results, nil
}

// BucketMembers returns the ids sharing a coarse spatial bucket, ordered by
// atom id. O(1) lookup plus the copy.
func (ix *Index) BucketMembers(bucket uint32) []atom.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	members := ix.buckets[bucket]
	out := make([]atom.ID, len(members))
	copy(out, members)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// knnItem is either a tree node (lower-bound distance) or a concrete point
// entry (exact distance).
type knnItem struct {
	node  *node
	id    atom.ID
	point Point3D
	dist  float64
}

type knnQueue []knnItem

func (q knnQueue) Len() int { return len(q) }

func (q knnQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	// Nodes before points at equal distance so candidates inside a
	// touching box are surfaced; points tie-break by id for determinism.
	if (q[i].node == nil) != (q[j].node == nil) {
		return q[i].node != nil
	}
	return q[i].id < q[j].id
}

func (q knnQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *knnQueue) Push(x any) { *q = append(*q, x.(knnItem)) }

func (q *knnQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
