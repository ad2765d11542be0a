package plan

import (
	"testing"

	"github.com/formworklabs/formwork/shape"
)

type planAddress struct {
	Street string
	City   string
}

type planPerson struct {
	Name string `shape:"name,alias=full-name"`
	Age  uint32
	Home planAddress
	Tags []string
}

type planTree struct {
	Value    int64
	Children []planTree
}

type wideRecord struct {
	F0 int64
	F1 int64
	F2 int64
	F3 int64
	F4 int64
	F5 int64
	F6 int64
	F7 int64
	F8 int64
	F9 int64
}

func TestPlanMirrorsShape(t *testing.T) {
	s := shape.For[planPerson]()
	p := New(s)

	if p.Shape() != s {
		t.Fatal("Shape should return the root shape")
	}
	root := p.Root()
	if !root.Valid() || root.Shape() != s {
		t.Fatal("root node invalid")
	}

	for i, f := range s.Fields {
		n := root.Field(i)
		if !n.Valid() || n.Shape() != f.Shape {
			t.Errorf("field %d node mismatch", i)
		}
	}

	home := root.Field(2)
	if home.FieldIndex("City") != 1 {
		t.Errorf("Home.City index = %d, want 1", home.FieldIndex("City"))
	}

	tags := root.Field(3)
	if tags.Elem().Shape().Kind != shape.KindString {
		t.Error("Tags element should be a string node")
	}
}

func TestPlanLookupMatchesShape(t *testing.T) {
	for _, s := range []*shape.Shape{shape.For[planPerson](), shape.For[wideRecord]()} {
		root := New(s).Root()
		for _, f := range s.Fields {
			if got, want := root.FieldIndex(f.Name), s.FieldIndex(f.Name); got != want {
				t.Errorf("%s: FieldIndex(%q) = %d, want %d", s, f.Name, got, want)
			}
		}
		if root.FieldIndex("no-such-field") != -1 {
			t.Errorf("%s: unknown name should resolve to -1", s)
		}
	}
}

func TestPlanLookupAlias(t *testing.T) {
	root := New(shape.For[planPerson]()).Root()
	if root.FieldIndex("full-name") != 0 {
		t.Errorf("alias lookup = %d, want 0", root.FieldIndex("full-name"))
	}
	if root.FieldIndex("name") != 0 {
		t.Errorf("renamed lookup = %d, want 0", root.FieldIndex("name"))
	}
}

func TestPlanRecursiveShape(t *testing.T) {
	s := shape.For[planTree]()
	p := New(s)

	// Children's element recurses onto the root; the plan must stay finite
	// and the back-reference must resolve to the root node.
	elem := p.Root().Field(1).Elem()
	if !elem.Valid() {
		t.Fatal("recursive element node missing")
	}
	if elem.Index() != p.Root().Index() {
		t.Errorf("back-reference resolved to node %d, want root %d", elem.Index(), p.Root().Index())
	}
	if elem.Shape() != s {
		t.Error("back-reference shape mismatch")
	}
}

func TestPlanBackRefDetection(t *testing.T) {
	p := New(shape.For[planTree]())

	found := false
	for i := int32(0); int(i) < p.Len(); i++ {
		if p.IsBackRef(i) {
			found = true
			if p.NodeAt(i).Shape() != p.Shape() {
				t.Error("back-ref should resolve to the recursive shape")
			}
		}
	}
	if !found {
		t.Error("recursive plan should contain a back-reference node")
	}
}

func TestPlanVariantLookup(t *testing.T) {
	payload := shape.For[int64]()
	s := &shape.Shape{
		Name: "event",
		Kind: shape.KindVariant,
		Variants: []shape.Variant{
			{Name: "ping"},
			{Name: "count", Discriminant: 1, Payload: payload},
		},
	}
	root := New(s).Root()

	if root.VariantIndex("count") != 1 {
		t.Errorf("VariantIndex(count) = %d, want 1", root.VariantIndex("count"))
	}
	if root.VariantIndex("nope") != -1 {
		t.Error("unknown variant should resolve to -1")
	}
	if n := root.VariantPayload(1); !n.Valid() || n.Shape() != payload {
		t.Error("payload node mismatch")
	}
	if root.VariantPayload(0).Valid() {
		t.Error("unit case should have no payload node")
	}
}

func TestPlanInvalidNodes(t *testing.T) {
	p := New(shape.For[planAddress]())

	if p.NodeAt(-1).Valid() || p.NodeAt(int32(p.Len())).Valid() {
		t.Error("out of range nodes should be invalid")
	}

	n := p.NodeAt(-1)
	if n.FieldIndex("Street") != -1 {
		t.Error("lookups on invalid nodes should miss")
	}
	if n.Field(0).Valid() || n.Elem().Valid() {
		t.Error("children of invalid nodes should be invalid")
	}
}

func TestPlanScalarChildrenAbsent(t *testing.T) {
	root := New(shape.For[planAddress]()).Root()
	street := root.Field(0)
	if street.Elem().Valid() || street.Inner().Valid() || street.Ok().Valid() {
		t.Error("scalar nodes should have no children")
	}
}
