package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDirectory counts MarkInvalid calls per token.
type fakeDirectory struct {
	mu     sync.Mutex
	marked []string
	err    error
}

func (d *fakeDirectory) MarkInvalid(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.marked = append(d.marked, token)
	return d.err
}

func (d *fakeDirectory) markedTokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.marked))
	copy(out, d.marked)
	return out
}

func TestCollectorCoalescesReportsIntoOneFlush(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewCollector(dir, 20*time.Millisecond, 50)

	for i := 0; i < 10; i++ {
		c.Report(fmt.Sprintf("tok-%d", i))
	}
	require.Equal(t, 10, c.PendingCount())
	require.Empty(t, dir.markedTokens())

	require.Eventually(t, func() bool {
		return len(dir.markedTokens()) == 10
	}, time.Second, 5*time.Millisecond)
	require.Zero(t, c.PendingCount())
}

func TestCollectorDrainsBacklogInBatches(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewCollector(dir, 10*time.Millisecond, 50)

	// 120 reports need three flush cycles at 50 per batch.
	for i := 0; i < 120; i++ {
		c.Report(fmt.Sprintf("tok-%03d", i))
	}

	require.Eventually(t, func() bool {
		return len(dir.markedTokens()) == 120
	}, 2*time.Second, 5*time.Millisecond)
	require.Zero(t, c.PendingCount())
}

func TestCollectorFlushFailureIsDropped(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("db down")}
	c := NewCollector(dir, 10*time.Millisecond, 50)

	c.Report("tok-1")

	require.Eventually(t, func() bool {
		return len(dir.markedTokens()) == 1
	}, time.Second, 5*time.Millisecond)

	// The failed token is not retried; cleanup is at-most-once per detection.
	require.Zero(t, c.PendingCount())
	time.Sleep(30 * time.Millisecond)
	require.Len(t, dir.markedTokens(), 1)
}

func TestCollectorCloseDrainsPending(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewCollector(dir, time.Hour, 50) // flush never fires on its own

	for i := 0; i < 75; i++ {
		c.Report(fmt.Sprintf("tok-%02d", i))
	}

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not drain pending tokens")
	}
	require.Len(t, dir.markedTokens(), 75)
}

func TestCollectorRejectsReportsAfterClose(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewCollector(dir, time.Hour, 50)
	c.Close()

	c.Report("tok-late")
	require.Zero(t, c.PendingCount())
}
