// Package application contains use-case orchestration services.
package application

import "sync"

// RunLock is the single-slot deduplication guard for trigger events. It holds
// the last commit SHA accepted for processing; a second trigger for the same
// SHA is dropped, not queued. It is overwritten by the next distinct SHA, so
// no explicit expiry is needed on a single sequential rig.
type RunLock struct {
	mu      sync.Mutex
	lastSHA string
}

// NewRunLock creates an empty RunLock.
func NewRunLock() *RunLock {
	return &RunLock{}
}

// TryAcquire records sha as last-processed and returns true, unless sha equals
// the currently recorded value, in which case it returns false and the caller
// must drop the event.
func (l *RunLock) TryAcquire(sha string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sha == l.lastSHA {
		return false
	}
	l.lastSHA = sha
	return true
}

// Last returns the last-processed commit SHA, or "" before the first run.
func (l *RunLock) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSHA
}
