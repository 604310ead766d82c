package dispatch

import (
	"log"
	"sync"
	"time"
)

// TokenDirectory is the write contract to the token store. MarkInvalid is
// idempotent, so a dropped flush is safe to lose: the token resurfaces on the
// next delivery attempt against it.
type TokenDirectory interface {
	MarkInvalid(token string) error
}

// Collector decouples token cleanup from the hot delivery path. Reported
// tokens accumulate in memory; a single delayed flush is armed lazily and
// reports within the delay window coalesce into one flush cycle.
type Collector struct {
	directory TokenDirectory
	delay     time.Duration
	batchSize int

	mu      sync.Mutex
	pending []string
	armed   bool
	closed  bool
	timer   *time.Timer

	flushed sync.WaitGroup // outstanding flush timers, for Close
}

// NewCollector creates a collector flushing at most batchSize tokens per
// cycle after the given delay.
func NewCollector(directory TokenDirectory, delay time.Duration, batchSize int) *Collector {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Collector{
		directory: directory,
		delay:     delay,
		batchSize: batchSize,
	}
}

// Report queues a token for invalidation. Non-blocking and never fails; the
// first report after an idle period arms the delayed flush.
func (c *Collector) Report(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.pending = append(c.pending, token)
	if !c.armed {
		c.armed = true
		c.flushed.Add(1)
		c.timer = time.AfterFunc(c.delay, c.flushCycle)
	}
}

// PendingCount reports the number of tokens awaiting flush.
func (c *Collector) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// flushCycle drains one bounded batch and re-arms while work remains,
// guaranteeing eventual drain without unbounded batch growth. The armed flag
// ensures exactly one scheduled flush exists at a time.
func (c *Collector) flushCycle() {
	defer c.flushed.Done()

	c.mu.Lock()
	batch := c.takeBatchLocked()
	if len(c.pending) > 0 && !c.closed {
		c.flushed.Add(1)
		c.timer = time.AfterFunc(c.delay, c.flushCycle)
	} else {
		c.armed = false
	}
	c.mu.Unlock()

	c.markInvalid(batch)
}

// takeBatchLocked removes and returns up to batchSize pending tokens.
// Caller must hold mu.
func (c *Collector) takeBatchLocked() []string {
	n := len(c.pending)
	if n > c.batchSize {
		n = c.batchSize
	}
	batch := make([]string, n)
	copy(batch, c.pending[:n])
	c.pending = c.pending[n:]
	return batch
}

// markInvalid writes the batch to the token directory. Per-token failures are
// logged and dropped: cleanup is at-most-once per detection and self-healing.
func (c *Collector) markInvalid(batch []string) {
	if len(batch) == 0 {
		return
	}
	for _, token := range batch {
		if err := c.directory.MarkInvalid(token); err != nil {
			log.Printf("[Collector] Failed to invalidate token: %v", err)
		}
	}
	log.Printf("[Collector] Flushed %d invalid tokens", len(batch))
}

// Close drains any remaining tokens synchronously and rejects further
// reports.
func (c *Collector) Close() {
	c.mu.Lock()
	c.closed = true
	// Cancel a pending flush so Close does not wait out the delay. A timer
	// that already fired settles through flushed.Wait below.
	if c.armed && c.timer != nil && c.timer.Stop() {
		c.armed = false
		c.flushed.Done()
	}
	var rest []string
	rest, c.pending = c.pending, nil
	c.mu.Unlock()

	c.flushed.Wait()

	for len(rest) > 0 {
		n := len(rest)
		if n > c.batchSize {
			n = c.batchSize
		}
		c.markInvalid(rest[:n])
		rest = rest[n:]
	}
}
