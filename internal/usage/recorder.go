package usage

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const recordTimeout = 5 * time.Second

// Recorder books entries off the request path. Failures are logged, never returned.
type Recorder struct {
	ledger *Ledger
	queue  chan Entry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder starts a recorder. A queueSize of 0 books synchronously inside Submit.
func NewRecorder(ledger *Ledger, queueSize int) *Recorder {
	r := &Recorder{ledger: ledger}
	if queueSize > 0 {
		r.queue = make(chan Entry, queueSize)
		r.wg.Add(1)
		go r.run()
	}
	return r
}

// Submit queues entry for booking. When the queue is full the entry is dropped with a warning.
func (r *Recorder) Submit(entry Entry) {
	if r == nil || r.ledger == nil {
		return
	}
	if r.queue == nil {
		r.record(entry)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.record(entry)
		return
	}
	select {
	case r.queue <- entry:
	default:
		log.WithFields(log.Fields{
			"user_id":    entry.UserID,
			"action":     entry.Action,
			"request_id": entry.RequestID,
			"cost_cents": entry.CostCents,
		}).Warn("usage recorder: queue full, dropping entry")
	}
}

// Close stops accepting queued entries and waits for the backlog to drain.
func (r *Recorder) Close() {
	if r == nil || r.queue == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for entry := range r.queue {
		r.record(entry)
	}
}

func (r *Recorder) record(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if errRecord := r.ledger.RecordUsage(ctx, entry); errRecord != nil {
		log.WithError(errRecord).WithFields(log.Fields{
			"user_id":    entry.UserID,
			"action":     entry.Action,
			"request_id": entry.RequestID,
		}).Warn("usage recorder: failed to persist usage")
	}
}
