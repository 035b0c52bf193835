package registry_test

import (
	"errors"
	"testing"

	"github.com/snehjoshi/tickq/internal/registry"
	"github.com/snehjoshi/tickq/internal/types"
)

func TestRegister_MintsUniqueHandles(t *testing.T) {
	r := registry.New()

	h1, err := r.Register("payload-a", "a")
	if err != nil {
		t.Fatalf("Register(a): %v", err)
	}
	h2, err := r.Register("payload-b", "")
	if err != nil {
		t.Fatalf("Register(b): %v", err)
	}

	if h1 == h2 {
		t.Fatal("two registrations returned the same handle")
	}
	if h1.Key() == h2.Key() {
		t.Errorf("two registrations share handle key %q", h1.Key())
	}
	if h1.ID() != "a" {
		t.Errorf("h1.ID: want a, got %q", h1.ID())
	}
	if h2.ID() != "" {
		t.Errorf("h2.ID: want empty, got %q", h2.ID())
	}
	if h1.Payload() != "payload-a" {
		t.Errorf("h1.Payload: want payload-a, got %v", h1.Payload())
	}
	if r.Size() != 2 {
		t.Errorf("Size: want 2, got %d", r.Size())
	}
}

func TestRegister_DuplicateID(t *testing.T) {
	r := registry.New()
	if _, err := r.Register("x", "k"); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	_, err := r.Register("y", "k")
	if !errors.Is(err, registry.ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}

	// The prior entry is unaffected.
	if !r.Has("k") {
		t.Error("original entry lost after failed duplicate register")
	}
	if p, _ := r.Payload("k"); p != "x" {
		t.Errorf("payload for k: want x, got %v", p)
	}
	if r.Size() != 1 {
		t.Errorf("Size: want 1, got %d", r.Size())
	}
}

func TestRegister_DuplicatePayload(t *testing.T) {
	r := registry.New()
	if _, err := r.Register("x", ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := r.Register("x", "other-id")
	if !errors.Is(err, registry.ErrDuplicatePayload) {
		t.Fatalf("want ErrDuplicatePayload, got %v", err)
	}
	// The failed call must not claim the id.
	if r.Has("other-id") {
		t.Error("failed register left its id behind")
	}
}

func TestResolve_ByIDHandleAndPayload(t *testing.T) {
	r := registry.New()
	h, err := r.Register("the-payload", "the-id")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, ref := range []any{"the-id", h, "the-payload"} {
		got, err := r.Resolve(ref)
		if err != nil {
			t.Fatalf("Resolve(%v): %v", ref, err)
		}
		if got != h {
			t.Errorf("Resolve(%v): want canonical handle, got %v", ref, got)
		}
	}
}

func TestResolve_MissIsNotAnError(t *testing.T) {
	r := registry.New()
	h, err := r.Resolve("missing")
	if err != nil {
		t.Fatalf("Resolve on empty registry: %v", err)
	}
	if h != nil {
		t.Errorf("Resolve miss: want nil, got %v", h)
	}
}

func TestResolve_StaleHandle(t *testing.T) {
	r := registry.New()
	h, err := r.Register("p", "k")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.Unregister(h)

	_, err = r.Resolve(h)
	if !errors.Is(err, registry.ErrStaleHandle) {
		t.Fatalf("want ErrStaleHandle after unregister, got %v", err)
	}
	// Has never throws for stale — it just reports false.
	if r.Has(h) {
		t.Error("Has(stale handle): want false")
	}
}

func TestResolve_SupersededHandleIsStale(t *testing.T) {
	r := registry.New()
	old, err := r.Register("p", "k")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Unregister(old)
	fresh, err := r.Register("p", "k")
	if err != nil {
		t.Fatalf("re-Register: %v", err)
	}

	if _, err := r.Resolve(old); !errors.Is(err, registry.ErrStaleHandle) {
		t.Fatalf("old handle should be stale, got %v", err)
	}
	got, err := r.Resolve("k")
	if err != nil || got != fresh {
		t.Errorf("id lookup: want fresh handle, got %v (err %v)", got, err)
	}
}

func TestUnregister_SilentOnMiss(t *testing.T) {
	r := registry.New()
	r.Unregister("nothing")
	r.Unregister((*types.Handle)(nil))
	if r.Size() != 0 {
		t.Errorf("Size: want 0, got %d", r.Size())
	}
}

func TestIDAndPayloadAccessors(t *testing.T) {
	r := registry.New()
	if _, err := r.Register(42, "answer"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	id, err := r.ID(42)
	if err != nil || id != "answer" {
		t.Errorf("ID(42): want answer, got %q (err %v)", id, err)
	}
	p, err := r.Payload("answer")
	if err != nil || p != 42 {
		t.Errorf("Payload(answer): want 42, got %v (err %v)", p, err)
	}
}

func TestForEach_VisitsEveryEntry(t *testing.T) {
	r := registry.New()
	want := map[string]bool{"a": false, "b": false, "c": false}
	for id := range want {
		if _, err := r.Register("payload-"+id, id); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	err := r.ForEach(func(h *types.Handle, payload any) error {
		want[h.ID()] = true
		if payload != "payload-"+h.ID() {
			t.Errorf("entry %s: payload mismatch: %v", h.ID(), payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	for id, seen := range want {
		if !seen {
			t.Errorf("entry %s not visited", id)
		}
	}
}

func TestClear_InvalidatesAllHandles(t *testing.T) {
	r := registry.New()
	h, _ := r.Register("p", "k")
	r.Clear()

	if r.Size() != 0 {
		t.Errorf("Size after Clear: want 0, got %d", r.Size())
	}
	if _, err := r.Resolve(h); !errors.Is(err, registry.ErrStaleHandle) {
		t.Errorf("handle should be stale after Clear, got %v", err)
	}
}
