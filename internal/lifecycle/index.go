package lifecycle

import "sync"

// LineKey identifies one line of one site.
type LineKey struct {
	Site        string
	LineSection string
}

// ActiveIndex maps blocked lines to their current blocking reason. At most
// one entry exists per line; a new request for an already-blocked line
// overwrites the reason, it does not stack.
type ActiveIndex struct {
	mu     sync.RWMutex
	active map[LineKey]string
}

// NewActiveIndex creates an empty index.
func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{active: make(map[LineKey]string)}
}

// Set records reason as the blocking cause for the line.
func (i *ActiveIndex) Set(key LineKey, reason string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.active[key] = reason
	recordActiveDowntimes(len(i.active))
}

// Resolve returns the blocking reason for the line, if any.
func (i *ActiveIndex) Resolve(key LineKey) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	reason, ok := i.active[key]
	return reason, ok
}

// ClearIf removes the entry only when it still names the given reason, so
// a stale close cannot wipe out a newer request's entry.
func (i *ActiveIndex) ClearIf(key LineKey, reason string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	current, ok := i.active[key]
	if !ok || current != reason {
		return false
	}
	delete(i.active, key)
	recordActiveDowntimes(len(i.active))
	return true
}

// Snapshot returns a copy of all active entries.
func (i *ActiveIndex) Snapshot() map[LineKey]string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[LineKey]string, len(i.active))
	for k, v := range i.active {
		out[k] = v
	}
	return out
}
