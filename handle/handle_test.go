package handle_test

import (
	"testing"

	"github.com/vitreousgfx/forge/handle"
)

func TestInternTextureStability(t *testing.T) {
	r := handle.NewRegistry()
	a := r.InternTexture("albedo")
	b := r.InternTexture("albedo")
	if a != b {
		t.Fatalf("InternTexture(%q) returned distinct handles across calls", "albedo")
	}
	c := r.InternTexture("normal")
	if a == c {
		t.Fatalf("InternTexture returned the same handle for different names")
	}
}

func TestInternTextureAnonymousAlwaysFresh(t *testing.T) {
	r := handle.NewRegistry()
	a := r.InternTexture("")
	b := r.InternTexture("")
	if a == b {
		t.Fatalf("anonymous InternTexture calls must not collapse to the same handle")
	}
	if a.Name() == "" || b.Name() == "" {
		t.Fatalf("anonymous handles must still have a non-empty debug name")
	}
	if a.Name() == b.Name() {
		t.Fatalf("anonymous handles must have distinct synthetic names, got %q twice", a.Name())
	}
}

func TestInternResourceStability(t *testing.T) {
	r := handle.NewRegistry()
	a := r.InternResource("depth", handle.Image, 0, 4, 0, nil)
	b := r.InternResource("depth", handle.Image, 0, 4, 0, nil)
	if a != b {
		t.Fatalf("InternResource returned distinct handles for identical arguments")
	}
	// Differing only in samples must yield a distinct handle.
	c := r.InternResource("depth", handle.Image, 0, 1, 0, nil)
	if a == c {
		t.Fatalf("InternResource collapsed handles that differ in sample count")
	}
}

func TestInternResourceKindIsolation(t *testing.T) {
	r := handle.NewRegistry()
	img := r.InternResource("thing", handle.Image, 0, 1, 0, nil)
	buf := r.InternResource("thing", handle.Buffer, 0, 1, 0, nil)
	if img == buf {
		t.Fatalf("InternResource collapsed handles of different kinds sharing a name")
	}
	if img.Kind() != handle.Image || buf.Kind() != handle.Buffer {
		t.Fatalf("Kind() did not round-trip: got %s, %s", img.Kind(), buf.Kind())
	}
}

func TestLookupTexture(t *testing.T) {
	r := handle.NewRegistry()
	want := r.InternTexture("shadow-map")
	got, ok := r.LookupTexture("shadow-map")
	if !ok || got != want {
		t.Fatalf("LookupTexture did not return the interned handle")
	}
	if _, ok := r.LookupTexture("missing"); ok {
		t.Fatalf("LookupTexture found a handle that was never interned")
	}
}

func TestParentAliasing(t *testing.T) {
	r := handle.NewRegistry()
	base := r.InternResource("atlas", handle.Image, 0, 1, 0, nil)
	view := r.InternResource("atlas-view0", handle.Image, 0, 1, 0, base)
	if view.Parent() != base {
		t.Fatalf("sub-view handle did not retain its parent")
	}
}

func TestCount(t *testing.T) {
	r := handle.NewRegistry()
	if r.Count() != 0 {
		t.Fatalf("fresh registry should report 0 handles, got %d", r.Count())
	}
	r.InternTexture("a")
	r.InternResource("b", handle.Buffer, 0, 1, 0, nil)
	if r.Count() != 2 {
		t.Fatalf("expected 2 handles, got %d", r.Count())
	}
	// Repeated interning of an existing name must not grow the count.
	r.InternTexture("a")
	if r.Count() != 2 {
		t.Fatalf("re-interning an existing name grew the registry to %d", r.Count())
	}
}
