package announce

// item is a queued message. seq orders items of equal priority.
type item struct {
	text     string
	priority Priority
	seq      uint64
}

// queue is a max-heap on priority with FIFO order inside a level. It
// implements [container/heap.Interface].
type queue []item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(item)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// weakest returns the index of the item that would be spoken last.
func (q queue) weakest() int {
	w := 0
	for i := 1; i < len(q); i++ {
		if q.Less(w, i) {
			w = i
		}
	}
	return w
}
