package partial

import (
	"testing"
	"unsafe"

	"github.com/formworklabs/formwork/shape"
)

// dropCounter builds hand-written shapes whose regions are pointer-free and
// whose drops are counted by name, so tests can assert that every
// initialized sub-value is dropped exactly once no matter where
// construction stops.
type dropCounter struct {
	drops map[string]int
}

func newDropCounter() *dropCounter {
	return &dropCounter{drops: make(map[string]int)}
}

func (c *dropCounter) scalar(name string) *shape.Shape {
	return &shape.Shape{
		Name:  name,
		Kind:  shape.KindS64,
		Size:  8,
		Align: 8,
		Drop: func(unsafe.Pointer) {
			c.drops[name]++
		},
		CloneInto: func(dst, src unsafe.Pointer) {
			*(*int64)(dst) = *(*int64)(src)
		},
	}
}

// pair is a hand-written two-field struct shape over counted scalars. The
// shape-level Drop covers a fully built value; partially built values are
// dropped field by field through the tracker.
func (c *dropCounter) pair(a, b *shape.Shape) *shape.Shape {
	offsets, size, align := shape.StructLayout([]*shape.Shape{a, b})
	s := &shape.Shape{
		Name:  "pair",
		Kind:  shape.KindStruct,
		Size:  size,
		Align: align,
		Fields: []shape.Field{
			{Name: "a", Offset: offsets[0], Shape: a, Required: true},
			{Name: "b", Offset: offsets[1], Shape: b, Required: true},
		},
	}
	s.Drop = func(ptr unsafe.Pointer) {
		a.Drop(unsafe.Add(ptr, offsets[0]))
		b.Drop(unsafe.Add(ptr, offsets[1]))
	}
	return s
}

func setCounted(t *testing.T, p *Partial, s *shape.Shape, v int64) {
	t.Helper()
	if err := p.SetValue(unsafe.Pointer(&v), s); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
}

func TestTeardownDropsOnlyInitialized(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	p := mustAlloc(t, c.pair(a, b))

	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if c.drops["a"] != 1 {
		t.Errorf("a dropped %d times, want 1", c.drops["a"])
	}
	if c.drops["b"] != 0 {
		t.Errorf("b dropped %d times, want 0", c.drops["b"])
	}
}

func TestFieldOverwriteDropsOldValue(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	p := mustAlloc(t, c.pair(a, b))

	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())

	// Re-entering drops the first value immediately.
	mustOp(t, p.BeginField("a"))
	if c.drops["a"] != 1 {
		t.Fatalf("a dropped %d times after re-entry, want 1", c.drops["a"])
	}
	setCounted(t, p, a, 2)
	mustOp(t, p.End())

	mustOp(t, p.Close())
	if c.drops["a"] != 2 {
		t.Errorf("a dropped %d times in total, want 2", c.drops["a"])
	}
}

func TestFrameOverwriteDropsInPlace(t *testing.T) {
	c := newDropCounter()
	a := c.scalar("a")
	p := mustAlloc(t, a)

	setCounted(t, p, a, 1)
	setCounted(t, p, a, 2) // drops the first value
	if c.drops["a"] != 1 {
		t.Fatalf("a dropped %d times, want 1", c.drops["a"])
	}

	mustOp(t, p.Close())
	if c.drops["a"] != 2 {
		t.Errorf("a dropped %d times in total, want 2", c.drops["a"])
	}
}

func TestBuildTransfersOwnership(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	p := mustAlloc(t, c.pair(a, b))

	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())
	mustOp(t, p.BeginField("b"))
	setCounted(t, p, b, 2)
	mustOp(t, p.End())

	v, err := p.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if c.drops["a"]+c.drops["b"] != 0 {
		t.Fatalf("Build must not drop, got %v", c.drops)
	}
	if got := *(*int64)(v.Pointer()); got != 1 {
		t.Errorf("field a = %d, want 1", got)
	}

	// Closing the builder after Build is a no-op; closing the value drops
	// each field exactly once.
	mustOp(t, p.Close())
	if err := v.Close(); err != nil {
		t.Fatalf("value Close failed: %v", err)
	}
	if c.drops["a"] != 1 || c.drops["b"] != 1 {
		t.Errorf("drops = %v, want one each", c.drops)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("second value Close failed: %v", err)
	}
	if c.drops["a"] != 1 || c.drops["b"] != 1 {
		t.Errorf("idempotent Close double-dropped: %v", c.drops)
	}
}

func TestFailedEndThenCloseDropsOnce(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	p := mustAlloc(t, c.pair(a, b))

	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())

	mustOp(t, p.BeginField("b"))
	if err := p.End(); err == nil { // b never set
		t.Fatal("End on an unset scalar should fail")
	}

	mustOp(t, p.Close())
	if c.drops["a"] != 1 || c.drops["b"] != 0 {
		t.Errorf("drops = %v, want a:1 b:0", c.drops)
	}
}

func TestDeferredBaseStaysPinned(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	inner := c.pair(a, b)
	for i := range inner.Fields {
		inner.Fields[i].Required = false
	}
	outer := c.pair(inner, c.scalar("c"))

	p := mustAlloc(t, outer)
	mustOp(t, p.BeginField("a"))
	mustOp(t, p.BeginDeferred(nil))
	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())

	// The base would pass completion on its own, but popping it while the
	// side table holds frames aliasing its region must be rejected.
	if err := p.End(); err == nil {
		t.Fatal("popping the session base should fail")
	}
	if !p.IsPoisoned() {
		t.Error("builder should be poisoned")
	}

	mustOp(t, p.Close())
	if c.drops["a"] != 1 {
		t.Errorf("a dropped %d times, want 1", c.drops["a"])
	}
	if c.drops["b"] != 0 {
		t.Errorf("b dropped %d times, want 0", c.drops["b"])
	}
}

func TestDeferredFailureDropsStoredOnce(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	p := mustAlloc(t, c.pair(a, b))

	mustOp(t, p.BeginDeferred(nil))
	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())

	// b never assigned; reconciliation tears everything down eagerly.
	if err := p.FinishDeferred(); err == nil {
		t.Fatal("reconciliation with b missing should fail")
	}
	if c.drops["a"] != 1 {
		t.Errorf("a dropped %d times after failed reconciliation, want 1", c.drops["a"])
	}

	mustOp(t, p.Close())
	if c.drops["a"] != 1 || c.drops["b"] != 0 {
		t.Errorf("drops after Close = %v, want a:1 b:0", c.drops)
	}
}

func TestDeferredCloseDropsStoredOnce(t *testing.T) {
	c := newDropCounter()
	a, b := c.scalar("a"), c.scalar("b")
	p := mustAlloc(t, c.pair(a, b))

	mustOp(t, p.BeginDeferred(nil))
	mustOp(t, p.BeginField("a"))
	setCounted(t, p, a, 1)
	mustOp(t, p.End())
	mustOp(t, p.BeginField("b"))
	setCounted(t, p, b, 2)

	// b is still open on the stack when the builder is abandoned.
	mustOp(t, p.Close())
	if c.drops["a"] != 1 || c.drops["b"] != 1 {
		t.Errorf("drops = %v, want one each", c.drops)
	}
	mustOp(t, p.Close())
	if c.drops["a"] != 1 || c.drops["b"] != 1 {
		t.Errorf("second Close double-dropped: %v", c.drops)
	}
}

func TestTeardownAtEveryPrefix(t *testing.T) {
	// Replay an op script, stopping after every prefix, and check that
	// whatever was initialized by then is dropped exactly once.
	type step struct {
		name string
		run  func(p *Partial, a, b *shape.Shape) error
	}
	steps := []step{
		{"begin_a", func(p *Partial, a, b *shape.Shape) error { return p.BeginField("a") }},
		{"set_a", func(p *Partial, a, b *shape.Shape) error {
			v := int64(1)
			return p.SetValue(unsafe.Pointer(&v), a)
		}},
		{"end_a", func(p *Partial, a, b *shape.Shape) error { return p.End() }},
		{"begin_b", func(p *Partial, a, b *shape.Shape) error { return p.BeginField("b") }},
		{"set_b", func(p *Partial, a, b *shape.Shape) error {
			v := int64(2)
			return p.SetValue(unsafe.Pointer(&v), b)
		}},
		{"end_b", func(p *Partial, a, b *shape.Shape) error { return p.End() }},
	}

	for n := 0; n <= len(steps); n++ {
		c := newDropCounter()
		a, b := c.scalar("a"), c.scalar("b")
		p := mustAlloc(t, c.pair(a, b))

		for i := 0; i < n; i++ {
			if err := steps[i].run(p, a, b); err != nil {
				t.Fatalf("prefix %d: step %s failed: %v", n, steps[i].name, err)
			}
		}
		mustOp(t, p.Close())

		wantA, wantB := 0, 0
		if n >= 2 {
			wantA = 1
		}
		if n >= 5 {
			wantB = 1
		}
		if c.drops["a"] != wantA || c.drops["b"] != wantB {
			t.Errorf("prefix %d: drops = %v, want a:%d b:%d", n, c.drops, wantA, wantB)
		}
	}
}
