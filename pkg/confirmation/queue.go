// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package confirmation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/ads/pkg/clock"
	"github.com/luxfi/ads/pkg/database"
	"github.com/luxfi/ads/pkg/log"
	"github.com/luxfi/ads/pkg/metric"
	"github.com/luxfi/ads/pkg/timer"
)

// Redeemer makes one attempt at redeeming a confirmation and returns it
// with any progress recorded, also on error.
type Redeemer interface {
	Redeem(ctx context.Context, c ConfirmationInfo) (ConfirmationInfo, error)
}

// RetryableError is implemented by redemption failures that know whether
// a later attempt can succeed. Other errors are retried.
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable classifies err.
func IsRetryable(err error) bool {
	var r RetryableError
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// QueueStore persists queued confirmations.
type QueueStore interface {
	SaveConfirmationQueueItem(ctx context.Context, item database.ConfirmationQueueItem) error
	NextConfirmationQueueItem(ctx context.Context) (database.ConfirmationQueueItem, bool, error)
	DeleteConfirmationQueueItem(ctx context.Context, transactionID string) error
	ConfirmationQueueLen(ctx context.Context) (int, error)
}

// QueueObserver is told about queue progress. Nil fields are skipped.
type QueueObserver struct {
	OnDidAddConfirmationToQueue        func(ConfirmationInfo)
	OnDidProcessConfirmationQueue      func(ConfirmationInfo)
	OnFailedToProcessConfirmationQueue func(ConfirmationInfo, error)
	OnWillRetryConfirmation            func(c ConfirmationInfo, retryAt time.Time)
	OnDidExhaustConfirmationQueue      func()
}

// Queue redeems confirmations one at a time in process_at order. Failed
// attempts that can be retried stay queued behind an exponential backoff;
// the retry time is stored so a restart resumes at it.
type Queue struct {
	store      QueueStore
	redeemer   Redeemer
	clock      clock.Clock
	retryDelay time.Duration
	metrics    *metric.Metrics
	log        log.Logger

	timer   *timer.Timer
	backoff *timer.BackoffTimer

	mu      sync.Mutex
	ctx     context.Context
	running bool
	// inFlight is set while process owns the head of the queue.
	inFlight  bool
	observers []QueueObserver
}

func NewQueue(
	store QueueStore,
	redeemer Redeemer,
	retryDelay time.Duration,
	maxBackoffDelay time.Duration,
	c clock.Clock,
	metrics *metric.Metrics,
	logger log.Logger,
) *Queue {
	if c == nil {
		c = clock.Real()
	}
	if metrics == nil {
		metrics = metric.NoOp()
	}
	if logger == nil {
		logger = log.NoLog
	}
	backoff := timer.NewBackoff(c)
	if maxBackoffDelay > 0 {
		backoff.SetMaxBackoffDelay(maxBackoffDelay)
	}
	return &Queue{
		store:      store,
		redeemer:   redeemer,
		clock:      c,
		retryDelay: retryDelay,
		metrics:    metrics,
		log:        logger.With(log.String("component", "confirmation_queue")),
		timer:      timer.New(c),
		backoff:    backoff,
		ctx:        context.Background(),
	}
}

func (q *Queue) AddObserver(o QueueObserver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, o)
}

// Start resumes processing stored confirmations.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.ctx = ctx
	q.running = true
	q.mu.Unlock()
	q.maybeProcessNext()
}

// Stop cancels pending processing. Queued confirmations stay stored.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.timer.Stop()
	q.backoff.Stop()
}

// Add stores c and processes it once the queue reaches it.
func (q *Queue) Add(ctx context.Context, c ConfirmationInfo) error {
	if !c.IsValid() {
		return ErrInvalidConfirmation
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	now := q.clock.Now()
	if err := q.store.SaveConfirmationQueueItem(ctx, database.ConfirmationQueueItem{
		TransactionID: c.TransactionID,
		CreatedAt:     now,
		ProcessAt:     now,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("queue confirmation: %w", err)
	}

	q.log.Info("added confirmation to queue",
		log.String("transaction_id", c.TransactionID),
		log.String("type", string(c.Type)),
	)
	for _, o := range q.snapshotObservers() {
		if o.OnDidAddConfirmationToQueue != nil {
			o.OnDidAddConfirmationToQueue(c)
		}
	}
	q.maybeProcessNext()
	return nil
}

// Len returns the number of queued confirmations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.store.ConfirmationQueueLen(ctx)
}

func (q *Queue) maybeProcessNext() {
	q.mu.Lock()
	ctx, running, inFlight := q.ctx, q.running, q.inFlight
	q.mu.Unlock()
	if !running || inFlight || q.timer.IsRunning() || q.backoff.IsRunning() {
		return
	}

	item, ok, err := q.store.NextConfirmationQueueItem(ctx)
	if err != nil {
		q.log.Error("failed to read confirmation queue", log.Error(err))
		return
	}
	if !ok {
		for _, o := range q.snapshotObservers() {
			if o.OnDidExhaustConfirmationQueue != nil {
				o.OnDidExhaustConfirmationQueue()
			}
		}
		return
	}

	delay := item.ProcessAt.Sub(q.clock.Now())
	if delay < 0 {
		delay = 0
	}
	q.timer.Start(delay, q.process)
}

func (q *Queue) process() {
	q.mu.Lock()
	if !q.running || q.inFlight {
		q.mu.Unlock()
		return
	}
	q.inFlight = true
	ctx := q.ctx
	q.mu.Unlock()

	next := q.redeemHead(ctx)

	q.mu.Lock()
	q.inFlight = false
	q.mu.Unlock()

	if next {
		q.maybeProcessNext()
	}
}

// redeemHead redeems the item at the head of the queue and reports whether
// the next item should be scheduled.
func (q *Queue) redeemHead(ctx context.Context) bool {
	item, ok, err := q.store.NextConfirmationQueueItem(ctx)
	if err != nil {
		retryAt := q.backoff.Start(q.retryDelay, q.process)
		q.log.Error("failed to read confirmation queue",
			log.Time("retry_at", retryAt),
			log.Error(err),
		)
		return false
	}
	if !ok {
		return true
	}

	var c ConfirmationInfo
	if err := json.Unmarshal(item.Payload, &c); err != nil {
		q.log.Error("dropping undecodable confirmation",
			log.String("transaction_id", item.TransactionID),
			log.Error(err),
		)
		q.remove(ctx, item.TransactionID)
		return true
	}

	updated, err := q.redeemer.Redeem(ctx, c)
	switch {
	case err == nil:
		q.remove(ctx, c.TransactionID)
		q.backoff.Stop()
		q.metrics.ConfirmationsRedeemed.WithLabelValues(string(c.Type)).Inc()
		for _, o := range q.snapshotObservers() {
			if o.OnDidProcessConfirmationQueue != nil {
				o.OnDidProcessConfirmationQueue(updated)
			}
		}
		return true

	case IsRetryable(err):
		q.metrics.ConfirmationsFailed.WithLabelValues(strconv.FormatBool(true)).Inc()
		q.metrics.ConfirmationRetries.Inc()
		retryAt := q.backoff.Start(q.retryDelay, q.process)

		if payload, merr := json.Marshal(updated); merr == nil {
			item.Payload = payload
		}
		item.RetryCount++
		item.ProcessAt = retryAt
		if serr := q.store.SaveConfirmationQueueItem(ctx, item); serr != nil {
			q.log.Error("failed to save confirmation retry", log.Error(serr))
		}

		q.log.Info("retry redeeming confirmation",
			log.String("transaction_id", c.TransactionID),
			log.Time("retry_at", retryAt),
			log.Error(err),
		)
		for _, o := range q.snapshotObservers() {
			if o.OnWillRetryConfirmation != nil {
				o.OnWillRetryConfirmation(updated, retryAt)
			}
		}
		return false

	default:
		q.remove(ctx, c.TransactionID)
		q.backoff.Stop()
		q.metrics.ConfirmationsFailed.WithLabelValues(strconv.FormatBool(false)).Inc()
		q.log.Warn("failed to redeem confirmation",
			log.String("transaction_id", c.TransactionID),
			log.Error(err),
		)
		for _, o := range q.snapshotObservers() {
			if o.OnFailedToProcessConfirmationQueue != nil {
				o.OnFailedToProcessConfirmationQueue(updated, err)
			}
		}
		return true
	}
}

func (q *Queue) remove(ctx context.Context, transactionID string) {
	if err := q.store.DeleteConfirmationQueueItem(ctx, transactionID); err != nil {
		q.log.Error("failed to remove confirmation from queue", log.Error(err))
	}
}

func (q *Queue) snapshotObservers() []QueueObserver {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueueObserver(nil), q.observers...)
}
