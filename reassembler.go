package minnow

import (
	"bytes"

	"github.com/google/btree"
	"go.uber.org/zap"
)

// cacheDegree is the B-tree degree of the out-of-order fragment cache.
const cacheDegree = 8

// State is the lifecycle stage of a Reassembler. Stages only move forward.
type State int

const (
	// Accepting: the final byte's position is not known yet.
	Accepting State = iota

	// Draining: the final fragment was seen, but earlier bytes are still
	// missing.
	Draining

	// Closed: every byte was pushed to the stream and its writer is
	// closed. Further inserts are ignored.
	Closed
)

func (s State) String() string {
	switch s {
	case Accepting:
		return "accepting"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Stats are counters of what a Reassembler did with its input.
type Stats struct {
	Fragments        uint64 // insert calls made before the stream closed
	BytesReceived    uint64 // ∑ len(data) over those calls
	BytesOutOfWindow uint64 // bytes discarded by the acceptance window
	BytesRedundant   uint64 // bytes already cached when they arrived again
	BytesAssembled   uint64 // bytes pushed to the stream
}

// Reassembler puts arbitrarily ordered, possibly overlapping fragments of a
// byte stream back in order and pushes them to a ByteStream as soon as they
// become contiguous.
//
// Fragments are admitted only inside the acceptance window, from the first
// index not yet pushed up to the last index the stream could hold, so memory
// held by the reassembler is bounded by the stream's capacity.
type Reassembler struct {
	output *ByteStream

	// cache holds fragments that can't be pushed yet, ordered by index.
	// Cached fragments never overlap nor touch.
	cache *btree.BTreeG[fragment]

	// ∑ len(f.data) over cache
	bytesPending uint64

	endReached bool

	stats Stats

	log *zap.Logger
}

// NewReassembler returns a Reassembler that writes to output. A nil logger
// disables logging.
func NewReassembler(output *ByteStream, logger *zap.Logger) *Reassembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reassembler{
		output: output,
		cache: btree.NewG(cacheDegree, func(a, b fragment) bool {
			return a.index < b.index
		}),
		log: logger.With(zap.String("component", "reassembler")),
	}
}

// Insert delivers the bytes data starting at stream index firstIndex.
// isLastSubstring marks data as the end of the stream. Inserting is total:
// out-of-window, duplicate and late bytes are dropped silently.
func (r *Reassembler) Insert(firstIndex uint64, data []byte, isLastSubstring bool) {
	w := r.output.Writer()
	if w.IsClosed() {
		return
	}

	r.stats.Fragments++
	r.stats.BytesReceived += uint64(len(data))

	f := fragment{index: firstIndex, data: data}
	lo, hi := w.BytesPushed(), r.FirstUnacceptedIndex()
	g := f.clip(lo, hi)

	if dropped := len(f.data) - len(g.data); dropped > 0 {
		r.stats.BytesOutOfWindow += uint64(dropped)
		r.log.Debug("fragment clipped to window",
			zap.Uint64("index", f.index),
			zap.Int("len", len(f.data)),
			zap.Int("dropped", dropped),
			zap.Uint64("window_lo", lo),
			zap.Uint64("window_hi", hi))
	}

	// The end of the stream is known once a final fragment arrives whose
	// tail was not cut off by the window, even if nothing of it was kept.
	if isLastSubstring && !r.endReached && f.endsBy(hi) {
		r.endReached = true
		r.log.Debug("end of stream seen", zap.Uint64("index", f.end()))
	}

	if len(g.data) > 0 {
		// Avoid retaining data.
		g.data = bytes.Clone(g.data)
		r.store(g)
	}

	r.flush()

	if r.endReached && r.cache.Len() == 0 {
		if r.bytesPending != 0 {
			panic("minnow: bytes pending with an empty cache")
		}
		w.Close()
		r.log.Debug("stream closed", zap.Uint64("bytes", w.BytesPushed()))
	}
}

// store caches f, merging it with every cached fragment it overlaps or
// touches.
func (r *Reassembler) store(f fragment) {
	var merged []fragment

	// Of the fragments starting before f, only the closest one can reach
	// f, since cached fragments don't touch.
	r.cache.DescendLessOrEqual(f, func(g fragment) bool {
		if g.index == f.index {
			return true
		}
		if touches(g, f) {
			merged = append(merged, g)
		}
		return false
	})
	r.cache.AscendGreaterOrEqual(f, func(g fragment) bool {
		if !touches(f, g) {
			return false
		}
		merged = append(merged, g)
		return true
	})

	for _, g := range merged {
		r.cache.Delete(g)
		r.bytesPending -= uint64(len(g.data))

		h := merge(f, g)
		r.stats.BytesRedundant += uint64(len(f.data) + len(g.data) - len(h.data))
		f = h
	}

	r.cache.ReplaceOrInsert(f)
	r.bytesPending += uint64(len(f.data))
}

// flush pushes cached fragments to the stream for as long as the lowest one
// starts at the first unassembled index.
func (r *Reassembler) flush() {
	w := r.output.Writer()
	for {
		f, ok := r.cache.Min()
		if !ok || f.index != w.BytesPushed() {
			return
		}
		r.cache.DeleteMin()
		w.Push(f.data)
		r.bytesPending -= uint64(len(f.data))
		r.stats.BytesAssembled += uint64(len(f.data))
	}
}

// BytesPending returns the number of bytes cached but not yet pushed.
func (r *Reassembler) BytesPending() uint64 { return r.bytesPending }

func (r *Reassembler) State() State {
	switch {
	case r.output.Writer().IsClosed():
		return Closed
	case r.endReached:
		return Draining
	}
	return Accepting
}

func (r *Reassembler) Stats() Stats { return r.stats }

// Reader returns the read half of the output stream.
func (r *Reassembler) Reader() *Reader { return r.output.Reader() }

// Writer returns the write half of the output stream. Callers outside the
// reassembler should only query it.
func (r *Reassembler) Writer() *Writer { return r.output.Writer() }

func (r *Reassembler) AvailableCapacity() uint64 { return r.output.Writer().AvailableCapacity() }

func (r *Reassembler) BytesPushed() uint64 { return r.output.Writer().BytesPushed() }

func (r *Reassembler) IsClosed() bool { return r.output.Writer().IsClosed() }

// AckIndex returns the first index not yet assembled, i.e. what a transport
// would acknowledge cumulatively.
func (r *Reassembler) AckIndex() uint64 { return r.BytesPushed() }

// WindowSize returns how many bytes past AckIndex can be accepted.
func (r *Reassembler) WindowSize() uint64 { return r.AvailableCapacity() }

// FirstUnacceptedIndex returns the exclusive upper bound of the acceptance
// window.
func (r *Reassembler) FirstUnacceptedIndex() uint64 {
	return addSat(r.BytesPushed(), r.AvailableCapacity())
}
