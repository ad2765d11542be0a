package partial

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/formworklabs/formwork/shape"
)

func TestListPush(t *testing.T) {
	p := mustAlloc(t, shape.For[[]string]())
	defer p.Close()

	mustOp(t, p.BeginList())
	mustOp(t, p.Push("a"))
	mustOp(t, p.Push("b"))
	mustOp(t, p.Push("c"))

	got := buildInterface(t, p).([]string)
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("list mismatch:\n%s", diff)
	}
}

func TestListItemStaging(t *testing.T) {
	p := mustAlloc(t, shape.For[[]testAddress]())
	defer p.Close()

	mustOp(t, p.BeginListItem()) // implies BeginList
	mustOp(t, p.SetField("Street", "First"))
	mustOp(t, p.SetField("City", "A"))
	mustOp(t, p.End())

	mustOp(t, p.BeginListItem())
	mustOp(t, p.SetField("Street", "Second"))
	mustOp(t, p.SetField("City", "B"))
	mustOp(t, p.End())

	got := buildInterface(t, p).([]testAddress)
	want := []testAddress{
		{Street: "First", City: "A"},
		{Street: "Second", City: "B"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("staged list mismatch:\n%s", diff)
	}
}

func TestEmptyListVersusNeverBegun(t *testing.T) {
	t.Run("begun_empty", func(t *testing.T) {
		p := mustAlloc(t, shape.For[[]string]())
		defer p.Close()
		mustOp(t, p.BeginList())
		got := buildInterface(t, p).([]string)
		if got == nil || len(got) != 0 {
			t.Errorf("begun empty list = %#v, want non-nil empty slice", got)
		}
	})

	t.Run("never_begun", func(t *testing.T) {
		p := mustAlloc(t, shape.For[[]string]())
		defer p.Close()
		if _, err := p.Build(); err == nil {
			t.Error("a list that was never begun should not build")
		}
	})

	t.Run("never_begun_field", func(t *testing.T) {
		type tagged struct {
			Name string
			Tags []string
		}
		p := mustAlloc(t, shape.For[tagged]())
		defer p.Close()
		mustOp(t, p.SetField("Name", "n"))
		if _, err := p.Build(); err == nil {
			t.Error("an untouched list field should block Build")
		}
	})
}

func TestIncompleteListItemBlocksEnd(t *testing.T) {
	p := mustAlloc(t, shape.For[[]testAddress]())
	defer p.Close()

	mustOp(t, p.BeginListItem())
	mustOp(t, p.SetField("Street", "x"))
	if err := p.End(); err == nil {
		t.Fatal("ending an element missing a required field should fail")
	}
	if !p.IsPoisoned() {
		t.Error("builder should be poisoned")
	}
}

func TestSet(t *testing.T) {
	p := mustAlloc(t, shape.For[map[string]struct{}]())
	defer p.Close()

	mustOp(t, p.BeginSet())
	mustOp(t, p.Push("a"))
	mustOp(t, p.Push("b"))
	mustOp(t, p.Push("a")) // duplicate collapses

	got := buildInterface(t, p).(map[string]struct{})
	want := map[string]struct{}{"a": {}, "b": {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("set mismatch:\n%s", diff)
	}
}

func TestSetItemStaging(t *testing.T) {
	p := mustAlloc(t, shape.For[map[uint32]struct{}]())
	defer p.Close()

	mustOp(t, p.BeginListItem())
	mustOp(t, p.Set(uint32(7)))
	mustOp(t, p.End())

	got := buildInterface(t, p).(map[uint32]struct{})
	if _, ok := got[7]; !ok || len(got) != 1 {
		t.Errorf("set = %#v, want {7}", got)
	}
}

func TestMapEntries(t *testing.T) {
	p := mustAlloc(t, shape.For[map[string]int64]())
	defer p.Close()

	mustOp(t, p.BeginMap())

	mustOp(t, p.BeginKey())
	mustOp(t, p.Set("one"))
	mustOp(t, p.End())
	mustOp(t, p.BeginValue())
	mustOp(t, p.Set(int64(1)))
	mustOp(t, p.End())

	mustOp(t, p.SetKey("two"))
	mustOp(t, p.BeginValue())
	mustOp(t, p.Set(int64(2)))
	mustOp(t, p.End())

	got := buildInterface(t, p).(map[string]int64)
	want := map[string]int64{"one": 1, "two": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("map mismatch:\n%s", diff)
	}
}

func TestMapKeyWithoutValue(t *testing.T) {
	p := mustAlloc(t, shape.For[map[string]int64]())
	defer p.Close()

	mustOp(t, p.SetKey("orphan"))
	if _, err := p.Build(); err == nil {
		t.Fatal("a staged key with no value should block Build")
	}
	// Close must reclaim the pending key without panicking.
	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestMapEntrySequencing(t *testing.T) {
	p := mustAlloc(t, shape.For[map[string]int64]())
	defer p.Close()

	if err := p.BeginValue(); err == nil {
		t.Fatal("BeginValue without a staged key should fail")
	}
}

func TestDoubleKeyRejected(t *testing.T) {
	p := mustAlloc(t, shape.For[map[string]int64]())
	defer p.Close()

	mustOp(t, p.SetKey("a"))
	if err := p.SetKey("b"); err == nil {
		t.Fatal("staging a second key should fail")
	}
}

func TestMapEntryOverwrite(t *testing.T) {
	p := mustAlloc(t, shape.For[map[string]int64]())
	defer p.Close()

	for _, v := range []int64{1, 2} {
		mustOp(t, p.SetKey("k"))
		mustOp(t, p.BeginValue())
		mustOp(t, p.Set(v))
		mustOp(t, p.End())
	}

	got := buildInterface(t, p).(map[string]int64)
	if got["k"] != 2 || len(got) != 1 {
		t.Errorf("map = %#v, want {k: 2}", got)
	}
}

func TestCapacityHint(t *testing.T) {
	p := mustAlloc(t, shape.For[[]uint64](), WithCapacityHint(64))
	defer p.Close()

	mustOp(t, p.BeginList())
	for i := uint64(0); i < 10; i++ {
		mustOp(t, p.Push(i))
	}
	got := buildInterface(t, p).([]uint64)
	if len(got) != 10 || got[9] != 9 {
		t.Errorf("got %v", got)
	}
}

func TestPushShapeMismatch(t *testing.T) {
	p := mustAlloc(t, shape.For[[]string]())
	defer p.Close()

	mustOp(t, p.BeginList())
	if err := p.Push(42); err == nil {
		t.Fatal("pushing an int into a string list should fail")
	}
	if !p.IsPoisoned() {
		t.Error("builder should be poisoned")
	}
}

func TestBeginListWrongKind(t *testing.T) {
	p := mustAlloc(t, shape.For[string]())
	defer p.Close()
	if err := p.BeginList(); err == nil {
		t.Fatal("BeginList on a string frame should fail")
	}
}
