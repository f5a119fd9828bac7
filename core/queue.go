package live

import "sync"

// taskQueue is an unbounded FIFO drained by a single session loop. Pushing
// never blocks, so any goroutine, including the loop itself, can post.
type taskQueue struct {
	tasks  []func()
	closed bool
	ready  chan struct{}

	mu sync.Mutex
}

func newTaskQueue() *taskQueue {
	return &taskQueue{ready: make(chan struct{}, 1)}
}

// push reports false once the queue has been closed.
func (q *taskQueue) push(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, task)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *taskQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// close drops anything still queued and rejects further pushes.
func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.tasks = nil
}
