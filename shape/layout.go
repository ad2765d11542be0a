package shape

// StructLayout computes field offsets for a hand-written struct shape using
// Go's layout rules: each field is aligned to its own alignment, the struct
// is aligned to its widest field, and the total size is rounded up to that
// alignment. Zero fields yield size 0 with alignment 1.
func StructLayout(fields []*Shape) (offsets []uintptr, size, align uintptr) {
	offsets = make([]uintptr, len(fields))
	align = 1

	var off uintptr
	for i, f := range fields {
		fa := f.Align
		if fa == 0 {
			fa = 1
		}
		off = alignUp(off, fa)
		offsets[i] = off
		off += f.Size
		if fa > align {
			align = fa
		}
	}

	size = alignUp(off, align)
	return offsets, size, align
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
