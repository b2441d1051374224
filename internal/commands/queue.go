// Package commands batches validated orders for delivery to the engine.
package commands

import (
	"log/slog"
	"sync"

	"tacticom/internal/model"
)

// Queue is a thread-safe FIFO of engine commands with batched draining.
type Queue struct {
	mu            sync.Mutex
	items         []model.Command
	maxPerBatch   int
	totalEnqueued int
	totalDequeued int
	log           *slog.Logger
}

const defaultMaxPerBatch = 30

func NewQueue(maxPerBatch int, log *slog.Logger) *Queue {
	if maxPerBatch <= 0 {
		maxPerBatch = defaultMaxPerBatch
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{maxPerBatch: maxPerBatch, log: log}
}

// Enqueue appends one command.
func (q *Queue) Enqueue(c model.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, c)
	q.totalEnqueued++
	q.log.Debug("command enqueued", "type", c.Type, "group", c.GroupID)
}

// EnqueueBatch appends a batch in order.
func (q *Queue) EnqueueBatch(cmds []model.Command) {
	if len(cmds) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cmds...)
	q.totalEnqueued += len(cmds)
	q.log.Info("command batch enqueued", "count", len(cmds))
}

// GetBatch pops up to max commands from the front and serializes them for
// the engine. max <= 0 uses the configured batch cap.
func (q *Queue) GetBatch(max int) []map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max <= 0 {
		max = q.maxPerBatch
	}
	n := min(max, len(q.items))
	if n == 0 {
		return nil
	}
	batch := make([]map[string]any, 0, n)
	for _, c := range q.items[:n] {
		batch = append(batch, Serialize(c))
	}
	q.items = q.items[n:]
	q.totalDequeued += n
	q.log.Debug("command batch drained", "count", n)
	return batch
}

// Clear drops all pending commands.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.log.Info("pending commands cleared", "count", len(q.items))
	}
	q.items = nil
}

// Size reports the number of pending commands.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Pending       int `json:"pending"`
	TotalEnqueued int `json:"total_enqueued"`
	TotalDequeued int `json:"total_dequeued"`
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:       len(q.items),
		TotalEnqueued: q.totalEnqueued,
		TotalDequeued: q.totalDequeued,
	}
}
