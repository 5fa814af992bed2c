package query

import (
	"container/heap"
	"path/filepath"

	"github.com/convolog/convolog/internal/domain"
)

// mergeItem is one heap entry: a reader and its current (peeked) head.
type mergeItem struct {
	reader *LazyReader
	msg    domain.Message
}

type mergeHeap []*mergeItem

func (h mergeHeap) Len() int { return len(h) }

// Less implements the merger's deterministic tie-break: ascending
// timestamp, then lexicographic (project_id, file_path). container/heap
// requires a total order, unlike the reference implementation's
// timestamp-only comparator.
func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i].msg, h[j].msg
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Project.ID != b.Project.ID {
		return a.Project.ID < b.Project.ID
	}
	return filepath.Base(h[i].reader.Path()) < filepath.Base(h[j].reader.Path())
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*mergeItem)) }

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Merger performs a k-way merge across a fixed set of LazyReaders,
// producing a globally timestamp-ordered message stream. Each LazyReader
// already classified and sorted its file ascending by timestamp at open
// time (§3: per-file order is enforced by sort, never assumed), so the
// merger only needs to interleave already-sorted per-reader streams.
type Merger struct {
	readers []*LazyReader
	h       mergeHeap
}

// NewMerger primes the heap with one entry per non-empty reader.
func NewMerger(readers []*LazyReader) *Merger {
	m := &Merger{readers: readers}
	heap.Init(&m.h)
	for _, r := range readers {
		if msg, ok := r.Peek(); ok {
			heap.Push(&m.h, &mergeItem{reader: r, msg: msg})
		}
	}
	return m
}

// NextMessage pops the smallest message, consumes it from its reader, and
// refills the heap with that reader's new head if any.
func (m *Merger) NextMessage() (domain.Message, bool) {
	if m.h.Len() == 0 {
		return domain.Message{}, false
	}
	item := heap.Pop(&m.h).(*mergeItem)
	msg, _ := item.reader.Next()
	if next, ok := item.reader.Peek(); ok {
		heap.Push(&m.h, &mergeItem{reader: item.reader, msg: next})
	}
	return msg, true
}

// Batch returns up to n messages in ascending timestamp order.
func (m *Merger) Batch(n int) []domain.Message {
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		msg, ok := m.NextMessage()
		if !ok {
			break
		}
		out = append(out, msg)
	}
	return out
}

// Close closes every reader, even if one close fails, and returns the first
// error. The readers' file descriptors were already released at open time.
func (m *Merger) Close() error {
	var firstErr error
	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
