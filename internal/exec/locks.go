package exec

import (
	"sort"
	"sync"
)

// actorLocks serializes cross-actor operations. Queue partitioning already
// serializes per actor; these locks cover commands touching two actors
// (trades, attacks), acquired in ascending id order so two overlapping
// commands can never deadlock.
type actorLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func newActorLocks() *actorLocks {
	return &actorLocks{m: make(map[int64]*sync.Mutex)}
}

func (l *actorLocks) get(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	return m
}

// acquire locks the given actor ids in ascending order and returns the
// release function (unlocking in reverse).
func (l *actorLocks) acquire(ids ...int64) func() {
	sorted := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		m := l.get(id)
		m.Lock()
		locked = append(locked, m)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}
