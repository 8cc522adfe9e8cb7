package flow

import (
	"context"
	"sync"
	"sync/atomic"
)

// snapshotCell holds the latest published State. Loads never block; stores
// are made by the orchestrator while it holds its writer lock.
type snapshotCell struct {
	current atomic.Pointer[State]

	mu     sync.Mutex
	subs   map[int]chan State
	nextID int
	closed bool
	done   chan struct{}
}

func newSnapshotCell(initial State) *snapshotCell {
	c := &snapshotCell{subs: make(map[int]chan State), done: make(chan struct{})}
	c.current.Store(&initial)
	return c
}

func (c *snapshotCell) load() State {
	return *c.current.Load()
}

// publish stores s and offers it to every subscriber. A subscriber that has
// not consumed the previous value gets it replaced, so slow readers only
// ever see the newest snapshot.
func (c *snapshotCell) publish(s State) {
	c.current.Store(&s)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (c *snapshotCell) subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.load()
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}()

	return ch
}

func (c *snapshotCell) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
