// Package registry implements the item registry: a dual-indexed handle table
// giving every stored payload a stable, registry-scoped identity.
//
// Callers commonly hold a domain-level id ("task-3") while internal
// collaborators hold the *types.Handle; lookup by raw payload identity
// supports layers that receive payload values from below. The registry keeps
// all three addressable:
//
//	id      → handle   (sub-map; only entries registered with an id)
//	payload → handle   (every entry)
//	handle  → itself   (canonical check: is this THE handle for its payload?)
//
// The registry is not safe for concurrent use on its own; the owning queue
// serialises access.
package registry

import (
	"errors"

	"github.com/snehjoshi/tickq/internal/types"
)

// ErrDuplicateID is returned when a supplied id is already in use.
var ErrDuplicateID = errors.New("registry: duplicate id")

// ErrDuplicatePayload is returned when a payload identity is already
// registered. No payload may occupy two entries concurrently.
var ErrDuplicatePayload = errors.New("registry: duplicate payload")

// ErrStaleHandle is returned when a supplied handle is not the registry's
// canonical handle for its payload — the entry was removed, or superseded by
// a re-registration.
var ErrStaleHandle = errors.New("registry: stale handle")

// Registry is the dual-indexed handle table.
//
// Invariants:
//   - each payload identity maps to at most one handle;
//   - each supplied id is unique;
//   - Size() == number of distinct payloads == number of live handles;
//     the id index is a sub-map of the payload index.
type Registry struct {
	byPayload map[any]*types.Handle
	byID      map[string]*types.Handle
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byPayload: make(map[any]*types.Handle),
		byID:      make(map[string]*types.Handle),
	}
}

// Register mints an immutable handle for payload. id may be "" for entries
// addressed only by handle or payload.
// Fails with ErrDuplicatePayload if payload is already registered and with
// ErrDuplicateID if id is taken; on failure the registry is unchanged.
func (r *Registry) Register(payload any, id string) (*types.Handle, error) {
	if _, ok := r.byPayload[payload]; ok {
		return nil, ErrDuplicatePayload
	}
	if id != "" {
		if _, ok := r.byID[id]; ok {
			return nil, ErrDuplicateID
		}
	}

	h := types.NewHandle(mustNewKey(), id, payload)
	r.byPayload[payload] = h
	if id != "" {
		r.byID[id] = h
	}
	return h, nil
}

// Resolve maps a ref — id, *types.Handle, or payload — to the stored handle.
//
// An id or payload lookup that misses returns (nil, nil): a miss is not an
// error. A handle ref resolves to itself only while it is the canonical
// handle for its payload; any other handle fails with ErrStaleHandle.
//
// A string ref is tried as an id first, then as a payload, so string
// payloads remain addressable as long as no id shadows them.
func (r *Registry) Resolve(ref any) (*types.Handle, error) {
	switch v := ref.(type) {
	case *types.Handle:
		if v == nil {
			return nil, nil
		}
		if cur, ok := r.byPayload[v.Payload()]; ok && cur == v {
			return v, nil
		}
		return nil, ErrStaleHandle
	case string:
		if h, ok := r.byID[v]; ok {
			return h, nil
		}
		if h, ok := r.byPayload[v]; ok {
			return h, nil
		}
		return nil, nil
	default:
		if h, ok := r.byPayload[ref]; ok {
			return h, nil
		}
		return nil, nil
	}
}

// Payload resolves ref and returns the stored payload.
func (r *Registry) Payload(ref any) (any, error) {
	h, err := r.Resolve(ref)
	if err != nil || h == nil {
		return nil, err
	}
	return h.Payload(), nil
}

// ID resolves ref and returns the caller-supplied id ("" when absent).
func (r *Registry) ID(ref any) (string, error) {
	h, err := r.Resolve(ref)
	if err != nil || h == nil {
		return "", err
	}
	return h.ID(), nil
}

// Has reports whether ref resolves to a live entry. It never errors: a stale
// handle simply reports false.
func (r *Registry) Has(ref any) bool {
	h, err := r.Resolve(ref)
	return err == nil && h != nil
}

// Unregister removes the entry ref resolves to from both indexes.
// Silent on a miss or a stale handle.
func (r *Registry) Unregister(ref any) {
	h, err := r.Resolve(ref)
	if err != nil || h == nil {
		return
	}
	delete(r.byPayload, h.Payload())
	if h.ID() != "" {
		delete(r.byID, h.ID())
	}
}

// Size returns the number of live entries.
func (r *Registry) Size() int { return len(r.byPayload) }

// Clear drops every entry. Outstanding handles all become stale.
func (r *Registry) Clear() {
	r.byPayload = make(map[any]*types.Handle)
	r.byID = make(map[string]*types.Handle)
}

// ForEach calls fn for every (handle, payload) pair. Iteration order is
// unspecified. Iteration stops if fn returns a non-nil error.
func (r *Registry) ForEach(fn func(h *types.Handle, payload any) error) error {
	for payload, h := range r.byPayload {
		if err := fn(h, payload); err != nil {
			return err
		}
	}
	return nil
}
