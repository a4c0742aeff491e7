// Package outbox implements background persistence for optimistically
// appended chat messages. The UI path appends to the session cache and hands
// the write here; every enqueued write is mirrored to a durable outbox_entries
// row, and a single worker drains the queue in FIFO order so messages land in
// the database in the order they were appended. Failed writes are retried
// with a fixed backoff up to a configured attempt cap; an exhausted write
// keeps its durable entry, with the failure recorded on it, so nothing is
// silently lost and a later start can pick the work back up.
//
// A single worker is deliberate: per-thread append order is the one property
// the queue must preserve, and one consumer gives it globally for free.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/repo"
)

// Item is one message write awaiting persistence. MessageID and CreatedAt
// come from the optimistic cache entry so the durable row matches it exactly.
type Item struct {
	MessageID string
	ThreadID  string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Queue is the message outbox: an in-process channel for ordering plus a
// durable table mirroring everything not yet written.
type Queue struct {
	db          *gorm.DB
	maxAttempts int
	backoff     time.Duration

	// onPersisted, when set, is invoked after each successful write so the
	// session layer can clear the pending flag on its cached copy.
	onPersisted func(threadID, messageID string)

	ch   chan Item
	wg   sync.WaitGroup
	stop context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New constructs a queue writing through db. maxAttempts and backoff default
// to 5 and 2s when non-positive.
func New(db *gorm.DB, maxAttempts int, backoff time.Duration, onPersisted func(threadID, messageID string)) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Queue{
		db:          db,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		onPersisted: onPersisted,
		ch:          make(chan Item, 1024),
	}
}

// Start reloads any durable entries left over from an earlier run and
// launches the worker goroutine. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	q.recover(ctx)

	ctx, cancel := context.WithCancel(ctx)
	q.stop = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(ctx)
	}()
}

// Stop drains in-flight work and shuts the worker down.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	stop := q.stop
	q.mu.Unlock()

	stop()
	q.wg.Wait()
}

// Enqueue queues a message write, mirroring it to the durable table first.
// When the channel is full the item is written synchronously instead of
// blocking the request path.
func (q *Queue) Enqueue(item Item) {
	if err := repo.CreateOutboxEntry(q.db, item.MessageID, item.ThreadID, item.Role, item.Content, item.CreatedAt); err != nil {
		log.Warn().Err(err).
			Str("message_id", item.MessageID).
			Msg("outbox: durable entry write failed, continuing in memory")
	}
	select {
	case q.ch <- item:
	default:
		q.persist(context.Background(), item)
	}
}

// Flush synchronously drains everything currently queued. Intended for tests
// and shutdown paths that must not lose buffered writes.
func (q *Queue) Flush(ctx context.Context) {
	for {
		select {
		case item := <-q.ch:
			q.persist(ctx, item)
		default:
			return
		}
	}
}

// recover re-queues durable entries from an earlier run, oldest first. The
// entries already exist, so they go straight onto the channel.
func (q *Queue) recover(ctx context.Context) {
	entries, err := repo.ListPendingOutboxEntries(q.db.WithContext(ctx), cap(q.ch))
	if err != nil {
		log.Warn().Err(err).Msg("outbox: recovery scan failed")
		return
	}
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		select {
		case q.ch <- Item{MessageID: e.ID, ThreadID: e.ThreadID, Role: e.Role, Content: e.Content, CreatedAt: e.CreatedAt}:
		default:
			log.Warn().Int("remaining", len(entries)).Msg("outbox: recovery stopped, queue full")
			return
		}
	}
	log.Info().Int("entries", len(entries)).Msg("outbox: recovered unfinished writes")
}

func (q *Queue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Drain whatever is buffered before exiting.
			q.Flush(context.Background())
			return
		case item := <-q.ch:
			q.persist(ctx, item)
		}
	}
}

// persist writes one item, retrying with a fixed backoff. The head item is
// retried in place so later items cannot overtake it. Success removes the
// durable entry; exhaustion keeps it, failure recorded, for a later run.
func (q *Queue) persist(ctx context.Context, item Item) {
	var lastErr error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		_, err := repo.CreateMessageWithID(q.db.WithContext(ctx), item.MessageID, item.ThreadID, item.Role, item.Content, item.CreatedAt)
		if err != nil {
			// A recovered entry may race a row that already landed before the
			// previous run shut down.
			if _, gerr := repo.GetMessage(q.db.WithContext(ctx), item.MessageID); gerr == nil {
				err = nil
			}
		}
		if err == nil {
			if derr := repo.DeleteOutboxEntry(q.db.WithContext(ctx), item.MessageID); derr != nil {
				log.Warn().Err(derr).
					Str("message_id", item.MessageID).
					Msg("outbox: entry cleanup failed")
			}
			if q.onPersisted != nil {
				q.onPersisted(item.ThreadID, item.MessageID)
			}
			return
		}
		lastErr = err
		if merr := repo.MarkOutboxAttempt(q.db.WithContext(ctx), item.MessageID, time.Now().UTC().Add(q.backoff), err.Error()); merr != nil {
			log.Warn().Err(merr).
				Str("message_id", item.MessageID).
				Msg("outbox: attempt bookkeeping failed")
		}
		if attempt < q.maxAttempts {
			select {
			case <-ctx.Done():
				// Keep retrying during drain, just without the wait.
			case <-time.After(q.backoff):
			}
		}
	}
	log.Error().
		Err(lastErr).
		Str("message_id", item.MessageID).
		Str("thread_id", item.ThreadID).
		Int("attempts", q.maxAttempts).
		Msg("outbox: giving up for now, durable entry kept")
}
