package engine

import (
	"sync"

	"github.com/thisisjab/logtable/entity"
)

// queue is the unbounded intake buffer between writers and the drain task.
// Pushes never block on anything but the short critical section; the drain
// task takes the whole buffer at once and leaves an empty one behind.
type queue struct {
	mu    sync.Mutex
	items []entity.EncodedEntity
}

func (q *queue) push(e entity.EncodedEntity) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
}

// takeAll removes and returns every queued entity in submission order.
func (q *queue) takeAll() []entity.EncodedEntity {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
