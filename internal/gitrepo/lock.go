package gitrepo

import "sync"

// indexLocks serializes index-mutating operations per repository root,
// equivalent to git's own index.lock (spec §4.1 "Concurrency": all
// operations on the index take a process-wide advisory lock; reads may
// proceed concurrently with each other).
var (
	indexLocksMu sync.Mutex
	indexLocks   = map[string]*sync.Mutex{}
)

func indexLockFor(root string) *sync.Mutex {
	indexLocksMu.Lock()
	defer indexLocksMu.Unlock()
	l, ok := indexLocks[root]
	if !ok {
		l = &sync.Mutex{}
		indexLocks[root] = l
	}
	return l
}
