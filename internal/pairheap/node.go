package pairheap

import "github.com/snehjoshi/tickq/internal/types"

// node is one entry in the pairing heap's multi-way tree.
//
// The structural pointers are private to this package and follow the
// classic intrusive child/sibling/prev layout:
//
//   - child points to the first child;
//   - each parent's children form a singly linked list via sibling;
//   - the first child's prev points to the parent, every other child's prev
//     points to its immediate left sibling;
//   - root.prev == nil.
type node struct {
	priority int64
	payload  any
	handle   *types.Handle

	child   *node
	sibling *node
	prev    *node
}

// item converts the node into the result shape handed to callers.
func (n *node) item() *types.Item {
	return &types.Item{Handle: n.handle, Priority: n.priority, Payload: n.payload}
}

// detach nulls the structural pointers of a node that has left the heap so
// the subtree it pointed into can be collected independently.
func (n *node) detach() {
	n.child = nil
	n.sibling = nil
	n.prev = nil
}
