package notify

import (
	"context"
	"log"

	"babylog-backend/internal/model"
	"babylog-backend/internal/store"
)

// LogWriter persists audit rows off the delivery path. Entries go through a
// bounded queue drained by a single background goroutine, so a slow or
// failing database can never block a send or change its reported outcome.
type LogWriter struct {
	store store.Store
	queue chan *model.NotificationLog
	done  chan struct{}
}

// NewLogWriter creates a log writer with the given queue capacity.
func NewLogWriter(s store.Store, queueSize int) *LogWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &LogWriter{
		store: s,
		queue: make(chan *model.NotificationLog, queueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the background writer goroutine. It drains whatever is
// still queued when the context is cancelled, then exits.
func (w *LogWriter) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case entry := <-w.queue:
				w.write(ctx, entry)
			case <-ctx.Done():
				w.drain()
				return
			}
		}
	}()
}

// Enqueue queues one audit row without blocking. When the queue is full the
// entry is dropped with an operational log line; audit logging is
// best-effort.
func (w *LogWriter) Enqueue(entry *model.NotificationLog) {
	select {
	case w.queue <- entry:
	default:
		log.Printf("notification log queue full; dropping audit row for child %d", entry.ChildID)
	}
}

// Wait blocks until the background writer has stopped.
func (w *LogWriter) Wait() {
	<-w.done
}

func (w *LogWriter) write(ctx context.Context, entry *model.NotificationLog) {
	if err := w.store.AppendLog(ctx, entry); err != nil {
		log.Printf("notification log write failed: %v", err)
	}
}

func (w *LogWriter) drain() {
	for {
		select {
		case entry := <-w.queue:
			w.write(context.Background(), entry)
		default:
			return
		}
	}
}
