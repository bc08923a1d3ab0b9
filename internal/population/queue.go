package population

import "container/heap"

type queueEntry struct {
	host     *Host
	birthDay int
	gen      uint32
}

func (e queueEntry) stale() bool {
	return e.host.gen != e.gen
}

// ageQueue orders hosts by birth day, earliest first. Entries are never
// removed eagerly: a host that dies or is reset bumps its generation, and
// the stale entry is discarded when it reaches the front.
type ageQueue []queueEntry

func (q ageQueue) Len() int           { return len(q) }
func (q ageQueue) Less(i, j int) bool { return q[i].birthDay < q[j].birthDay }
func (q ageQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *ageQueue) Push(x any) { *q = append(*q, x.(queueEntry)) }

func (q *ageQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = queueEntry{}
	*q = old[:n-1]
	return e
}

func (q *ageQueue) add(h *Host) {
	heap.Push(q, queueEntry{host: h, birthDay: h.BirthDay, gen: h.gen})
}

// popEligible removes and returns every live host at least age days old on
// day, discarding stale entries on the way.
func (q *ageQueue) popEligible(day, age int) []*Host {
	var out []*Host
	for q.Len() > 0 {
		top := (*q)[0]
		if top.stale() {
			heap.Pop(q)
			continue
		}
		if day-top.birthDay < age {
			break
		}
		heap.Pop(q)
		out = append(out, top.host)
	}
	return out
}
