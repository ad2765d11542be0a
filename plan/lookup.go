package plan

import (
	"sort"

	"github.com/formworklabs/formwork/shape"
)

// lookupThreshold is the entry count above which lookups switch from a
// linear scan to binary search over a sorted table. Small tables stay
// linear; scanning a handful of entries beats the search overhead.
const lookupThreshold = 8

type nameEntry struct {
	name string
	idx  int
}

type nameLookup struct {
	linear []nameEntry // used at or below the threshold
	sorted []nameEntry
}

func newFieldLookup(s *shape.Shape) *nameLookup {
	entries := make([]nameEntry, 0, len(s.Fields))
	for i := range s.Fields {
		entries = append(entries, nameEntry{name: s.Fields[i].Name, idx: i})
		if a := s.Fields[i].Alias; a != "" {
			entries = append(entries, nameEntry{name: a, idx: i})
		}
	}
	return newLookup(entries)
}

func newVariantLookup(s *shape.Shape) *nameLookup {
	entries := make([]nameEntry, 0, len(s.Variants))
	for i := range s.Variants {
		entries = append(entries, nameEntry{name: s.Variants[i].Name, idx: i})
	}
	return newLookup(entries)
}

func newLookup(entries []nameEntry) *nameLookup {
	if len(entries) <= lookupThreshold {
		return &nameLookup{linear: entries}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return &nameLookup{sorted: entries}
}

func (l *nameLookup) index(name string) int {
	if l.sorted == nil {
		for _, e := range l.linear {
			if e.name == name {
				return e.idx
			}
		}
		return -1
	}
	i := sort.Search(len(l.sorted), func(i int) bool { return l.sorted[i].name >= name })
	if i < len(l.sorted) && l.sorted[i].name == name {
		return l.sorted[i].idx
	}
	return -1
}
