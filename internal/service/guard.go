package service

import (
	"fmt"
	"sync"
)

// Guard enforces at most one in-flight operation per key within this
// process. It refuses instead of waiting. Serializing across processes is the
// caller's job.
type Guard struct {
	mu   sync.Mutex
	busy map[string]string
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{busy: make(map[string]string)}
}

// Acquire marks every key as held by op. If any key is already held nothing
// is acquired and a KindConflict error names the holder.
func (g *Guard) Acquire(op string, keys ...string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, k := range keys {
		if holder, ok := g.busy[k]; ok {
			return nil, errorf(KindConflict, op, "%s is busy with %s", k, holder)
		}
	}
	for _, k := range keys {
		g.busy[k] = op
	}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, k := range keys {
			delete(g.busy, k)
		}
	}, nil
}

func settlementKey(id string) string {
	return "settlement:" + id
}

func titleKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("title:%s", id)
	}
	return keys
}
