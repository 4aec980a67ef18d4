package notify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"babylog-backend/internal/model"
	"babylog-backend/internal/parse"
	"babylog-backend/internal/store"
)

// Engine runs one notification cycle per external trigger. It keeps no
// state between runs beyond what is stored on the subscription and
// preference rows.
type Engine struct {
	store   store.Store
	deliver *Deliverer
	workers int
	now     func() time.Time
}

// NewEngine creates a cycle engine with the given worker pool size.
func NewEngine(s store.Store, d *Deliverer, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:   s,
		deliver: d,
		workers: workers,
		now:     time.Now,
	}
}

type candidate struct {
	pref         model.NotificationPreference
	payload      Payload
	prevNotified *time.Time
}

type activityKey struct {
	childID int64
	kind    string
}

// RunCycle evaluates every enabled preference and dispatches the eligible
// ones across the worker pool. It returns the number of notifications
// actually sent and never fails: any error for one candidate is logged and
// skipped so the rest of the batch still runs.
func (e *Engine) RunCycle(ctx context.Context) int {
	prefs, err := e.store.ListEnabledPreferences(ctx)
	if err != nil {
		log.Printf("notification cycle: %v", err)
		return 0
	}
	if len(prefs) == 0 {
		return 0
	}

	now := e.now()

	// The latest-activity lookup is shared across every device subscribed
	// to the same (child, kind).
	activity := make(map[activityKey]*time.Time)

	var eligible []candidate
	for _, pref := range prefs {
		kind := model.ActivityKindForEvent(pref.EventType)
		if kind == "" {
			log.Printf("preference %d has unknown event type %q; skipping", pref.ID, pref.EventType)
			continue
		}

		key := activityKey{childID: pref.ChildID, kind: kind}
		last, seen := activity[key]
		if !seen {
			last, err = e.store.LatestActivityTime(ctx, pref.ChildID, kind)
			if err != nil {
				log.Printf("notification cycle: %v", err)
				continue
			}
			activity[key] = last
		}

		threshold := e.thresholdMinutes(&pref.Child, pref.EventType)
		if !Eligible(now, last, threshold, pref.LastNotifiedAt, pref.RepeatIntervalMinutes) {
			continue
		}

		eligible = append(eligible, candidate{
			pref:         pref,
			payload:      Compose(pref.EventType, pref.ChildID, pref.Child.Name, now.Sub(*last)),
			prevNotified: pref.LastNotifiedAt,
		})
	}

	if len(eligible) == 0 {
		return 0
	}

	jobs := make(chan candidate)
	var sent int64
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				if e.process(ctx, now, cand) {
					atomic.AddInt64(&sent, 1)
				}
			}
		}()
	}
	for _, cand := range eligible {
		jobs <- cand
	}
	close(jobs)
	wg.Wait()

	return int(sent)
}

// process claims the candidate's last-notified slot, sends, and rolls the
// claim back when the send fails. The claim is a conditional update keyed
// on the value read during evaluation, so of two overlapping trigger runs
// only one sends; the loser matches zero rows and skips silently.
func (e *Engine) process(ctx context.Context, now time.Time, cand candidate) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notification candidate for preference %d panicked: %v", cand.pref.ID, r)
			sent = false
		}
	}()

	claimed, err := e.store.MarkNotified(ctx, cand.pref.ID, cand.prevNotified, now)
	if err != nil {
		log.Printf("failed to claim preference %d: %v", cand.pref.ID, err)
		return false
	}
	if !claimed {
		return false
	}

	out := e.deliver.Deliver(ctx, &cand.pref.Subscription, cand.payload)
	if out.Success {
		return true
	}

	// Release the claim so the failed candidate is retried on the next
	// cycle rather than waiting out a repeat interval.
	if err := e.store.ClearNotified(ctx, cand.pref.ID, now, cand.prevNotified); err != nil {
		log.Printf("failed to release claim on preference %d: %v", cand.pref.ID, err)
	}
	return false
}

func (e *Engine) thresholdMinutes(child *model.Child, eventType string) int {
	raw := child.FeedWarning
	if eventType == model.EventDiaperTimerExpired {
		raw = child.DiaperWarning
	}

	minutes, ok := parse.ThresholdMinutes(raw)
	if !ok {
		log.Printf("child %d has malformed threshold %q for %s; treating timer as expired", child.ID, raw, eventType)
	}
	return minutes
}
