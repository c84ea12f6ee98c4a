package spatial

import (
	"github.com/axiomata/atomstore/atom"
)

// R-tree node capacity. Guttman's quadratic split keeps the tree balanced
// without the cost of exhaustive splitting.
const (
	maxEntries = 16
	minEntries = 4
)

type entry struct {
	rect  Rect
	child *node   // non-nil for branch entries
	id    atom.ID // leaf entries only
	point Point3D // leaf entries only
}

type node struct {
	leaf    bool
	entries []entry
}

// rtree is a 3D bounding-volume hierarchy over point entries. Not safe for
// concurrent use; the Index wrapper provides locking.
type rtree struct {
	root *node
	size int
}

func newRTree() *rtree {
	return &rtree{root: &node{leaf: true}}
}

func (t *rtree) len() int {
	return t.size
}

// insert adds a point entry. Single inserts are incremental; no rebuild.
func (t *rtree) insert(id atom.ID, p Point3D) {
	e := entry{rect: rectFromPoint(p), id: id, point: p}
	split := t.insertAt(t.root, e)
	if split != nil {
		// Root overflowed: grow the tree by one level.
		oldRoot := t.root
		t.root = &node{
			leaf: false,
			entries: []entry{
				{rect: boundingRect(oldRoot), child: oldRoot},
				{rect: boundingRect(split), child: split},
			},
		}
	}
	t.size++
}

// insertAt descends to a leaf and inserts. Returns the new sibling node if
// n was split, nil otherwise.
func (t *rtree) insertAt(n *node, e entry) *node {
	if n.leaf {
		n.entries = append(n.entries, e)
		if len(n.entries) > maxEntries {
			return n.splitQuadratic()
		}
		return nil
	}

	idx := chooseSubtree(n, e.rect)
	child := n.entries[idx].child
	split := t.insertAt(child, e)
	n.entries[idx].rect = boundingRect(child)
	if split != nil {
		n.entries = append(n.entries, entry{rect: boundingRect(split), child: split})
		if len(n.entries) > maxEntries {
			return n.splitQuadratic()
		}
	}
	return nil
}

// chooseSubtree picks the child whose box needs least enlargement; ties go
// to the smaller box.
func chooseSubtree(n *node, r Rect) int {
	best := 0
	bestEnlargement := n.entries[0].rect.enlargement(r)
	bestVolume := n.entries[0].rect.volume()
	for i := 1; i < len(n.entries); i++ {
		enl := n.entries[i].rect.enlargement(r)
		vol := n.entries[i].rect.volume()
		if enl < bestEnlargement || (enl == bestEnlargement && vol < bestVolume) {
			best = i
			bestEnlargement = enl
			bestVolume = vol
		}
	}
	return best
}

func boundingRect(n *node) Rect {
	r := n.entries[0].rect
	for _, e := range n.entries[1:] {
		r = r.expand(e.rect)
	}
	return r
}

// splitQuadratic splits an overflowing node in place and returns the new
// sibling (Guttman's quadratic algorithm).
func (n *node) splitQuadratic() *node {
	entries := n.entries

	// Pick the pair of seeds that wastes the most volume together.
	seedA, seedB := 0, 1
	worst := -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			waste := entries[i].rect.expand(entries[j].rect).volume() -
				entries[i].rect.volume() - entries[j].rect.volume()
			if waste > worst {
				worst = waste
				seedA, seedB = i, j
			}
		}
	}

	groupA := []entry{entries[seedA]}
	groupB := []entry{entries[seedB]}
	rectA := entries[seedA].rect
	rectB := entries[seedB].rect

	remaining := make([]entry, 0, len(entries)-2)
	for i, e := range entries {
		if i != seedA && i != seedB {
			remaining = append(remaining, e)
		}
	}

	for len(remaining) > 0 {
		// If one group must take everything left to reach minEntries,
		// give it everything.
		if len(groupA)+len(remaining) <= minEntries {
			groupA = append(groupA, remaining...)
			for _, e := range remaining {
				rectA = rectA.expand(e.rect)
			}
			break
		}
		if len(groupB)+len(remaining) <= minEntries {
			groupB = append(groupB, remaining...)
			for _, e := range remaining {
				rectB = rectB.expand(e.rect)
			}
			break
		}

		// Assign the entry with the strongest preference.
		bestIdx := 0
		bestDiff := -1.0
		for i, e := range remaining {
			dA := rectA.enlargement(e.rect)
			dB := rectB.enlargement(e.rect)
			diff := dA - dB
			if diff < 0 {
				diff = -diff
			}
			if diff > bestDiff {
				bestDiff = diff
				bestIdx = i
			}
		}

		e := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		dA := rectA.enlargement(e.rect)
		dB := rectB.enlargement(e.rect)
		if dA < dB || (dA == dB && len(groupA) < len(groupB)) {
			groupA = append(groupA, e)
			rectA = rectA.expand(e.rect)
		} else {
			groupB = append(groupB, e)
			rectB = rectB.expand(e.rect)
		}
	}

	n.entries = groupA
	return &node{leaf: n.leaf, entries: groupB}
}

// remove deletes the entry for (id, p). Returns false if not present.
// Underflowing nodes are dissolved and their entries reinserted.
func (t *rtree) remove(id atom.ID, p Point3D) bool {
	var orphans []entry
	removed := t.removeAt(t.root, id, p, &orphans)
	if !removed {
		return false
	}
	t.size--

	// Shrink the root when it has a single branch child.
	for !t.root.leaf && len(t.root.entries) == 1 {
		t.root = t.root.entries[0].child
	}
	if !t.root.leaf && len(t.root.entries) == 0 {
		t.root = &node{leaf: true}
	}

	for _, e := range orphans {
		t.size--
		t.insert(e.id, e.point)
	}
	return true
}

func (t *rtree) removeAt(n *node, id atom.ID, p Point3D, orphans *[]entry) bool {
	if n.leaf {
		for i, e := range n.entries {
			if e.id == id && e.point == p {
				n.entries = append(n.entries[:i], n.entries[i+1:]...)
				return true
			}
		}
		return false
	}

	target := rectFromPoint(p)
	for i := 0; i < len(n.entries); i++ {
		e := n.entries[i]
		if !e.rect.intersects(target) {
			continue
		}
		if !t.removeAt(e.child, id, p, orphans) {
			continue
		}
		if len(e.child.entries) < minEntries {
			// Dissolve the underflowing child; its entries get
			// reinserted at the top.
			collectLeafEntries(e.child, orphans)
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
		} else {
			n.entries[i].rect = boundingRect(e.child)
		}
		return true
	}
	return false
}

func collectLeafEntries(n *node, out *[]entry) {
	if n.leaf {
		*out = append(*out, n.entries...)
		return
	}
	for _, e := range n.entries {
		collectLeafEntries(e.child, out)
	}
}

// search appends all leaf entries whose points fall inside box.
func (t *rtree) search(n *node, box Rect, out *[]entry) {
	if n == nil {
		return
	}
	for _, e := range n.entries {
		if n.leaf {
			if box.contains(e.point) {
				*out = append(*out, e)
			}
		} else if e.rect.intersects(box) {
			t.search(e.child, box, out)
		}
	}
}
