package partial

import "fmt"

// frameID addresses a frame in the arena. The low half is the slot number
// plus one (so the zero value is the nil id) and the high half is the
// slot's generation at allocation time. Following a stale id is a bug in
// this package, never a caller error, so the arena panics on it.
type frameID uint64

const nilFrame frameID = 0

func makeFrameID(slot, gen uint32) frameID {
	return frameID(uint64(gen)<<32 | uint64(slot)+1)
}

func (id frameID) slot() uint32 { return uint32(id) - 1 }
func (id frameID) gen() uint32  { return uint32(id >> 32) }

type arenaSlot struct {
	frame Frame
	gen   uint32
	used  bool
}

// arena is an index-addressed store of frames with a free list. Slots bump
// their generation on each reuse so released ids cannot alias a newer
// occupant.
type arena struct {
	slots []arenaSlot
	free  []uint32
	live  int
}

func (a *arena) alloc(f Frame) frameID {
	a.live++
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[slot]
		s.frame = f
		s.used = true
		return makeFrameID(slot, s.gen)
	}
	a.slots = append(a.slots, arenaSlot{frame: f, used: true})
	return makeFrameID(uint32(len(a.slots)-1), 0)
}

func (a *arena) get(id frameID) *Frame {
	s := a.check(id)
	return &s.frame
}

// release frees the slot and returns the frame by value. The caller is
// responsible for finalizing the frame's region.
func (a *arena) release(id frameID) Frame {
	s := a.check(id)
	f := s.frame
	s.frame = Frame{}
	s.used = false
	s.gen++
	a.free = append(a.free, id.slot())
	a.live--
	return f
}

func (a *arena) len() int { return a.live }

func (a *arena) check(id frameID) *arenaSlot {
	if id == nilFrame {
		panic("partial: nil frame id")
	}
	slot := id.slot()
	if int(slot) >= len(a.slots) {
		panic(fmt.Sprintf("partial: frame id slot %d out of range", slot))
	}
	s := &a.slots[slot]
	if !s.used || s.gen != id.gen() {
		panic(fmt.Sprintf("partial: stale frame id for slot %d", slot))
	}
	return s
}
