package shape

// Kind classifies a shape's construction behavior
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindF32
	KindF64
	KindString
	KindBytes
	KindStruct
	KindTuple
	KindEnum
	KindVariant
	KindList
	KindMap
	KindSet
	KindOption
	KindResult
	KindPointer
	KindSlice
	KindOpaque
)

var kindNames = [...]string{
	KindBool:    "bool",
	KindU8:      "u8",
	KindS8:      "s8",
	KindU16:     "u16",
	KindS16:     "s16",
	KindU32:     "u32",
	KindS32:     "s32",
	KindU64:     "u64",
	KindS64:     "s64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindString:  "string",
	KindBytes:   "bytes",
	KindStruct:  "struct",
	KindTuple:   "tuple",
	KindEnum:    "enum",
	KindVariant: "variant",
	KindList:    "list",
	KindMap:     "map",
	KindSet:     "set",
	KindOption:  "option",
	KindResult:  "result",
	KindPointer: "pointer",
	KindSlice:   "slice",
	KindOpaque:  "opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether values of this kind are written in one Set call
// rather than assembled from parts.
func (k Kind) IsScalar() bool {
	return k <= KindBytes || k == KindOpaque
}

// IsProduct reports whether the kind carries an ordered field list.
func (k Kind) IsProduct() bool {
	return k == KindStruct || k == KindTuple
}

// IsCollection reports whether the kind's backing store is initialized
// lazily on first use.
func (k Kind) IsCollection() bool {
	return k == KindList || k == KindMap || k == KindSet
}
