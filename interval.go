package minnow

import "math"

// fragment is a run of bytes starting at stream index index.
type fragment struct {
	index uint64
	data  []byte
}

// end returns the index one past the last byte of f, saturating at
// math.MaxUint64.
func (f fragment) end() uint64 { return addSat(f.index, uint64(len(f.data))) }

// clip returns the part of f inside the window [lo, hi). A fragment that is
// empty or entirely outside the window clips to an empty fragment at
// f.index. The returned data aliases f.data.
func (f fragment) clip(lo, hi uint64) fragment {
	n := uint64(len(f.data))
	if n == 0 || lo >= hi || f.index >= hi || f.index <= lo && n <= lo-f.index {
		return fragment{index: f.index}
	}
	i := max(f.index, lo)
	j := f.index + min(n, hi-f.index)
	return fragment{
		index: i,
		data:  f.data[i-f.index : j-f.index],
	}
}

// endsBy reports whether every byte of f lies below index hi.
func (f fragment) endsBy(hi uint64) bool {
	return f.index <= hi && uint64(len(f.data)) <= hi-f.index
}

// overlaps reports whether a and b share at least one index. Empty fragments
// overlap nothing.
func overlaps(a, b fragment) bool {
	if len(a.data) == 0 || len(b.data) == 0 {
		return false
	}
	return max(a.index, b.index) <= min(a.end()-1, b.end()-1)
}

// adjacent reports whether b starts right where a ends, or vice versa.
func adjacent(a, b fragment) bool {
	if len(a.data) == 0 || len(b.data) == 0 {
		return false
	}
	return a.end() == b.index || b.end() == a.index
}

func touches(a, b fragment) bool { return overlaps(a, b) || adjacent(a, b) }

// merge returns the fragment spanning the union of a and b, which must
// overlap or be adjacent. If one span contains the other, the containing
// fragment is returned as is, a winning ties. Otherwise the bytes of the
// later-starting fragment cover the overlap.
//
// The result never shares a backing array with a partially covered input.
func merge(a, b fragment) fragment {
	switch {
	case a.index <= b.index && a.end() >= b.end():
		return a
	case b.index <= a.index && b.end() >= a.end():
		return b
	case a.index < b.index:
		k := b.index - a.index
		return fragment{
			index: a.index,
			data:  append(a.data[:k:k], b.data...),
		}
	default:
		k := a.index - b.index
		return fragment{
			index: b.index,
			data:  append(b.data[:k:k], a.data...),
		}
	}
}

func addSat(x, y uint64) uint64 {
	if x > math.MaxUint64-y {
		return math.MaxUint64
	}
	return x + y
}
