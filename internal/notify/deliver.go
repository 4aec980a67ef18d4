package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"babylog-backend/internal/model"
	"babylog-backend/internal/store"
)

// Deliverer sends one composed payload to one subscription and applies the
// resulting health mutation. Audit logging and the mutation are each
// best-effort: a failure in either is logged and never changes the outcome
// reported to the caller.
type Deliverer struct {
	client *Client
	store  store.Store
	logs   *LogWriter
	now    func() time.Time
}

// NewDeliverer wires the transport client, store and audit log writer.
func NewDeliverer(client *Client, s store.Store, logs *LogWriter) *Deliverer {
	return &Deliverer{
		client: client,
		store:  s,
		logs:   logs,
		now:    time.Now,
	}
}

// Deliver performs one send and interprets the outcome:
//
//   - success: failure counter reset, last-success stamped
//   - 410 from the push service: the endpoint will never accept another
//     message, so the subscription is deleted immediately, bypassing the
//     failure-counter threshold
//   - any other failure: failure counter incremented, last-failure stamped
func (d *Deliverer) Deliver(ctx context.Context, sub *model.PushSubscription, payload Payload) Outcome {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload is built from plain strings and ints; this indicates a
		// programming error rather than a delivery failure.
		log.Printf("marshal payload for subscription %d: %v", sub.ID, err)
		return Outcome{Err: err}
	}

	out := d.client.Send(sub, data)

	entry := &model.NotificationLog{
		EventType:    payload.Data.Event,
		ActivityKind: model.ActivityKindForEvent(payload.Data.Event),
		ChildID:      payload.Data.ChildID,
		Success:      out.Success,
		Payload:      string(data),
	}
	if out.StatusCode != 0 {
		code := out.StatusCode
		entry.StatusCode = &code
	}
	if out.Err != nil {
		entry.ErrorText = out.Err.Error()
	}
	d.logs.Enqueue(entry)

	now := d.now()
	switch {
	case out.Success:
		if err := d.store.RecordSuccess(ctx, sub.ID, now); err != nil {
			log.Printf("failed to record success for subscription %d: %v", sub.ID, err)
		}
	case out.Gone():
		log.Printf("subscription %d endpoint is gone; deleting", sub.ID)
		if err := d.store.DeleteSubscription(ctx, sub.ID); err != nil {
			log.Printf("failed to delete gone subscription %d: %v", sub.ID, err)
		}
	default:
		if err := d.store.RecordFailure(ctx, sub.ID, now); err != nil {
			log.Printf("failed to record failure for subscription %d: %v", sub.ID, err)
		}
	}

	return out
}
