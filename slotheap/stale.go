package slotheap

// staleEntry is a released range waiting for its epoch to complete.
type staleEntry struct {
	rng   Range
	epoch uint64
}

// staleQueue is a FIFO of released ranges with non-decreasing epochs.
type staleQueue struct {
	items []staleEntry
	head  int
	units uint32
}

func (q *staleQueue) Len() int {
	return len(q.items) - q.head
}

// Push appends r at epoch. An epoch older than the newest queued entry is
// raised to it, so the queue never needs reordering and no range is
// reclaimed before an entry released ahead of it.
func (q *staleQueue) Push(r Range, epoch uint64) uint64 {
	if n := len(q.items); n > q.head {
		epoch = max(epoch, q.items[n-1].epoch)
	}
	q.items = append(q.items, staleEntry{rng: r, epoch: epoch})
	q.units += r.Size
	return epoch
}

// Front returns the oldest entry.
func (q *staleQueue) Front() (staleEntry, bool) {
	if q.head == len(q.items) {
		return staleEntry{}, false
	}
	return q.items[q.head], true
}

// Pop removes the oldest entry.
func (q *staleQueue) Pop() (staleEntry, bool) {
	e, ok := q.Front()
	if !ok {
		return e, false
	}
	q.items[q.head] = staleEntry{}
	q.head++
	q.units -= e.rng.Size

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 64 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return e, true
}

// Each visits queued entries oldest first.
func (q *staleQueue) Each(fn func(staleEntry)) {
	for _, e := range q.items[q.head:] {
		fn(e)
	}
}
