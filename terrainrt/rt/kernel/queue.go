package kernel

import "sync"

// queue executes submitted commands one after another on a single worker,
// in submission order. The host only enqueues; flush is reserved for frame
// completion and diagnostics.
type queue struct {
	cmds    chan func()
	pending sync.WaitGroup
	once    sync.Once
}

func newQueue(depth int) *queue {
	q := &queue{cmds: make(chan func(), depth)}
	go q.run()
	return q
}

func (q *queue) run() {
	for cmd := range q.cmds {
		cmd()
		q.pending.Done()
	}
}

func (q *queue) submit(cmd func()) {
	q.pending.Add(1)
	q.cmds <- cmd
}

func (q *queue) flush() {
	q.pending.Wait()
}

func (q *queue) close() {
	q.once.Do(func() {
		q.flush()
		close(q.cmds)
	})
}
