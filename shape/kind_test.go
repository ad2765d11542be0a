package shape

import "testing"

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindBool, "bool"},
		{KindU8, "u8"},
		{KindS64, "s64"},
		{KindF64, "f64"},
		{KindString, "string"},
		{KindBytes, "bytes"},
		{KindStruct, "struct"},
		{KindTuple, "tuple"},
		{KindEnum, "enum"},
		{KindVariant, "variant"},
		{KindList, "list"},
		{KindMap, "map"},
		{KindSet, "set"},
		{KindOption, "option"},
		{KindResult, "result"},
		{KindPointer, "pointer"},
		{KindSlice, "slice"},
		{KindOpaque, "opaque"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindPredicates(t *testing.T) {
	if !KindU32.IsScalar() {
		t.Error("u32 should be scalar")
	}
	if !KindString.IsScalar() {
		t.Error("string should be scalar")
	}
	if KindStruct.IsScalar() {
		t.Error("struct should not be scalar")
	}
	if !KindStruct.IsProduct() || !KindTuple.IsProduct() {
		t.Error("struct and tuple should be products")
	}
	if KindList.IsProduct() {
		t.Error("list should not be a product")
	}
	if !KindList.IsCollection() || !KindMap.IsCollection() || !KindSet.IsCollection() {
		t.Error("list, map and set should be collections")
	}
	if KindOption.IsCollection() {
		t.Error("option should not be a collection")
	}
}
