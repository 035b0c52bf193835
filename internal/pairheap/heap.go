// Package pairheap implements the addressable priority queue at the bottom
// of the tickq stack: a canonical two-pass pairing heap with intrusive
// pointers, min-ordered under a caller-supplied comparator.
//
// Core costs:
//   - Insert → O(1): one link against the root.
//   - Peek   → O(1): the root.
//   - Poll   → amortised O(log N): two-pass combine of the root's children.
//
// Every stored payload is registered in an item registry, so items stay
// addressable by id, by handle, and by payload identity even as nodes move
// structurally inside the tree.
package pairheap

import (
	"errors"
	"fmt"

	"github.com/snehjoshi/tickq/internal/registry"
	"github.com/snehjoshi/tickq/internal/types"
)

// ErrNotFound is returned by SetPriority when the ref does not resolve to a
// stored item.
var ErrNotFound = errors.New("pairheap: not found")

// Heap is the pairing heap. It owns an item registry and keeps
// heap.Size() == registry.Size() at all times: a node exists in the tree iff
// its payload has a live handle.
type Heap struct {
	root  *node
	nodes map[*types.Handle]*node
	reg   *registry.Registry
	cmp   types.Comparator
	size  int
}

// New returns an empty heap ordered by cmp. A nil cmp means numeric order.
func New(cmp types.Comparator) *Heap {
	if cmp == nil {
		cmp = types.NumericComparator
	}
	return &Heap{
		nodes: make(map[*types.Handle]*node),
		reg:   registry.New(),
		cmp:   cmp,
	}
}

var _ types.Queue = (*Heap)(nil)

// ─── Queue operations ─────────────────────────────────────────────────────────

// Insert stores payload at priority and returns the minted handle.
func (h *Heap) Insert(priority int64, payload any) (*types.Handle, error) {
	return h.InsertWithID(priority, payload, "")
}

// InsertWithID is Insert with a caller-supplied unique id.
// Fails with registry.ErrDuplicateID / registry.ErrDuplicatePayload without
// touching the tree.
func (h *Heap) InsertWithID(priority int64, payload any, id string) (*types.Handle, error) {
	handle, err := h.reg.Register(payload, id)
	if err != nil {
		return nil, fmt.Errorf("pairheap: insert: %w", err)
	}

	n := &node{priority: priority, payload: payload, handle: handle}
	h.nodes[handle] = n
	h.root = h.link(h.root, n)
	h.size++
	return handle, nil
}

// Peek returns the root's handle, or nil when empty.
func (h *Heap) Peek() *types.Handle {
	if h.root == nil {
		return nil
	}
	return h.root.handle
}

// Min returns the root's priority; ok is false when empty.
func (h *Heap) Min() (int64, bool) {
	if h.root == nil {
		return 0, false
	}
	return h.root.priority, true
}

// Poll removes the root and returns it, or nil when empty.
func (h *Heap) Poll() *types.Item {
	if h.root == nil {
		return nil
	}
	n := h.root
	res := n.item()

	h.root = h.combineSiblings(n.child)
	h.drop(n)
	return res
}

// Get resolves ref to its current handle. Unknown and stale refs return nil.
func (h *Heap) Get(ref any) *types.Handle {
	handle, err := h.reg.Resolve(ref)
	if err != nil {
		return nil
	}
	return handle
}

// Has reports whether ref resolves to a stored item.
func (h *Heap) Has(ref any) bool { return h.reg.Has(ref) }

// Remove deletes the item ref resolves to and returns it.
// A miss — including a stale handle — returns nil.
func (h *Heap) Remove(ref any) *types.Item {
	handle, err := h.reg.Resolve(ref)
	if err != nil || handle == nil {
		return nil
	}
	n := h.nodes[handle]
	res := n.item()

	if n == h.root {
		h.root = h.combineSiblings(n.child)
	} else {
		h.cut(n)
		sub := h.combineSiblings(n.child)
		h.root = h.link(h.root, sub)
	}
	h.drop(n)
	return res
}

// SetPriority changes the priority of the item ref resolves to.
//
//   - equal priority → (nil, nil), no-op;
//   - lower priority → updated in place; a non-root node is cut and re-linked
//     with the root, so the handle stays valid;
//   - higher priority → equivalent to remove + insert: the entry keeps its id
//     but a new handle is issued and the old one becomes stale.
func (h *Heap) SetPriority(ref any, priority int64) (*types.Update, error) {
	handle, err := h.reg.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("pairheap: set priority: %w", err)
	}
	if handle == nil {
		return nil, ErrNotFound
	}

	n := h.nodes[handle]
	before := n.priority

	switch c := h.cmp(priority, before); {
	case c == 0:
		return nil, nil

	case c < 0:
		n.priority = priority
		if n != h.root {
			h.cut(n)
			h.root = h.link(h.root, n)
		}
		return &types.Update{Handle: handle, Before: before, After: priority}, nil

	default:
		id := handle.ID()
		payload := n.payload

		if n == h.root {
			h.root = h.combineSiblings(n.child)
		} else {
			h.cut(n)
			sub := h.combineSiblings(n.child)
			h.root = h.link(h.root, sub)
		}
		h.drop(n)

		// Re-insert under the same id; the id was just freed so this
		// cannot collide.
		fresh, err := h.InsertWithID(priority, payload, id)
		if err != nil {
			return nil, err
		}
		return &types.Update{Handle: fresh, Before: before, After: priority}, nil
	}
}

// Clear drops every item, empties the registry, and returns the count.
// All outstanding handles become stale.
func (h *Heap) Clear() int {
	n := h.size
	for _, nd := range h.nodes {
		nd.detach()
	}
	h.root = nil
	h.nodes = make(map[*types.Handle]*node)
	h.reg.Clear()
	h.size = 0
	return n
}

// Size returns the number of stored items.
func (h *Heap) Size() int { return h.size }

// Empty reports whether the heap holds no items.
func (h *Heap) Empty() bool { return h.size == 0 }

// ForEach calls fn for every (handle, payload) pair in unspecified order.
func (h *Heap) ForEach(fn func(handle *types.Handle, payload any) error) error {
	return h.reg.ForEach(fn)
}

// ─── Core primitives ──────────────────────────────────────────────────────────

// link merges two heap roots, making the larger-priority one the new first
// child of the other, and returns the winner. On equal priorities the first
// argument wins — a stable-ish but not FIFO order; callers requiring FIFO
// among equal priorities must encode a sequence number into the priority.
func (h *Heap) link(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if h.cmp(b.priority, a.priority) < 0 {
		a, b = b, a
	}

	b.prev = a
	b.sibling = a.child
	if a.child != nil {
		a.child.prev = b
	}
	a.child = b
	return a
}

// cut detaches a non-root node, together with its subtree, from its
// parent/sibling list. The node's prev and sibling are cleared; its child
// list is untouched.
func (h *Heap) cut(n *node) {
	if n.prev == nil {
		panic("pairheap: cut called on root")
	}
	if n.prev.child == n {
		n.prev.child = n.sibling
	} else {
		n.prev.sibling = n.sibling
	}
	if n.sibling != nil {
		n.sibling.prev = n.prev
	}
	n.prev = nil
	n.sibling = nil
}

// combineSiblings folds a child list back into a single heap using the
// classic two-pass scheme: pair up left-to-right, then fold the pair results
// right-to-left. Returns nil for an empty list.
func (h *Heap) combineSiblings(first *node) *node {
	if first == nil {
		return nil
	}
	if first.sibling == nil {
		first.prev = nil
		return first
	}

	// Pass 1: link consecutive pairs left to right.
	var pairs []*node
	cur := first
	for cur != nil {
		a := cur
		b := cur.sibling
		if b == nil {
			a.prev = nil
			a.sibling = nil
			pairs = append(pairs, a)
			break
		}
		cur = b.sibling

		a.prev = nil
		a.sibling = nil
		b.prev = nil
		b.sibling = nil
		pairs = append(pairs, h.link(a, b))
	}

	// Pass 2: fold right to left.
	r := pairs[len(pairs)-1]
	for i := len(pairs) - 2; i >= 0; i-- {
		r = h.link(pairs[i], r)
	}
	return r
}

// drop unregisters a node that has left the tree and nulls its pointers.
func (h *Heap) drop(n *node) {
	h.reg.Unregister(n.handle)
	delete(h.nodes, n.handle)
	n.detach()
	h.size--
}
