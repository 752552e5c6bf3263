package shard

// Multi-shard locks are always acquired in ascending shard number so that concurrent
// pair and all-shard lockers cannot deadlock. Passing the same index twice locks it once.

// LockPair acquires the exclusive locks of a and b. b may be nil.
func LockPair(a, b *Index) {
	first, second := order(a, b)
	first.Lock()
	if second != nil {
		second.Lock()
	}
}

// UnlockPair releases locks acquired by LockPair.
func UnlockPair(a, b *Index) {
	first, second := order(a, b)
	if second != nil {
		second.Unlock()
	}
	first.Unlock()
}

// RLockPair acquires the shared locks of a and b. b may be nil.
func RLockPair(a, b *Index) {
	first, second := order(a, b)
	first.RLock()
	if second != nil {
		second.RLock()
	}
}

// RUnlockPair releases locks acquired by RLockPair.
func RUnlockPair(a, b *Index) {
	first, second := order(a, b)
	if second != nil {
		second.RUnlock()
	}
	first.RUnlock()
}

// RLockAll acquires the shared locks of every index; indexes must be in ascending order.
func RLockAll(indexes []*Index) {
	for _, x := range indexes {
		x.RLock()
	}
}

// RUnlockAll releases locks acquired by RLockAll.
func RUnlockAll(indexes []*Index) {
	for i := len(indexes) - 1; i >= 0; i-- {
		indexes[i].RUnlock()
	}
}

func order(a, b *Index) (*Index, *Index) {
	if b == nil || a == b {
		return a, nil
	}
	if b.num < a.num {
		return b, a
	}
	return a, b
}
