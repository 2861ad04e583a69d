package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

// UploadStats counts queue activity since creation.
type UploadStats struct {
	Enqueued  int `json:"enqueued"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// UploadQueue delivers segments strictly one after another. Each delivery
// waits for the settlement token of the one before it, then installs its own
// token as the new tail. Enqueue never blocks the producer, and a failed
// delivery is logged and counted without breaking the chain.
type UploadQueue struct {
	transport ports.UploadTransport
	log       *slog.Logger
	timeout   time.Duration

	mu    sync.Mutex
	tail  chan struct{}
	stats UploadStats
}

func NewUploadQueue(transport ports.UploadTransport, log *slog.Logger, timeout time.Duration) *UploadQueue {
	return &UploadQueue{
		transport: transport,
		log:       log,
		timeout:   timeout,
	}
}

// Enqueue schedules delivery of segment to destinationName after every
// previously enqueued delivery has settled.
func (q *UploadQueue) Enqueue(segment domain.Segment, destinationName string) {
	settled := make(chan struct{})

	q.mu.Lock()
	previous := q.tail
	q.tail = settled
	q.stats.Enqueued++
	q.stats.Pending++
	q.mu.Unlock()

	go func() {
		defer close(settled)
		if previous != nil {
			<-previous
		}
		err := q.deliver(segment, destinationName)

		q.mu.Lock()
		q.stats.Pending--
		if err != nil {
			q.stats.Failed++
		} else {
			q.stats.Delivered++
		}
		q.mu.Unlock()
	}()
}

// Drain waits until every delivery enqueued so far has settled.
func (q *UploadQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()

	if tail == nil {
		return nil
	}
	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (q *UploadQueue) Stats() UploadStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *UploadQueue) deliver(segment domain.Segment, destinationName string) error {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	err := q.transport.Deliver(ctx, destinationName, segment.Data)
	if err != nil {
		q.log.Error("segment delivery failed",
			slog.String("destination", destinationName),
			slog.Int("segment", segment.Index),
			slog.Int("bytes", len(segment.Data)),
			slog.String("error", err.Error()))
		return err
	}
	q.log.Debug("segment delivered",
		slog.String("destination", destinationName),
		slog.Int("segment", segment.Index),
		slog.Int("bytes", len(segment.Data)))
	return nil
}
