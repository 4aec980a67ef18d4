package notify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babylog-backend/internal/model"
	"babylog-backend/internal/store"
)

// recordingSender captures one status-code reply per send.
type recordingSender struct {
	mu     sync.Mutex
	status int
	sends  []string // endpoints in delivery order
}

func (r *recordingSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sub.Endpoint)
	return pushResponse(r.status), nil
}

func (r *recordingSender) sendCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func newTestEngine(t *testing.T, s store.Store, sender Sender) *Engine {
	client, err := NewClientWithSender(testOptions(), sender)
	require.NoError(t, err)
	return NewEngine(s, NewDeliverer(client, s, NewLogWriter(s, 64)), 2)
}

func loadPreference(t *testing.T, s store.Store, id int64) *model.NotificationPreference {
	var pref model.NotificationPreference
	require.NoError(t, s.DB().First(&pref, id).Error)
	return &pref
}

func TestRunCycle_OncePerEpisode(t *testing.T) {
	s := newSQLiteStore(t)
	sender := &recordingSender{status: http.StatusCreated}
	engine := newTestEngine(t, s, sender)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	child := createChild(t, s, "Maja", "03:00", "02:00")
	sub := createSubscription(t, s, "https://push.example.com/a", 0)
	pref := createPreference(t, s, sub.ID, child.ID, model.EventFeedTimerExpired, nil)
	createActivity(t, s, child.ID, model.ActivityFeed, now.Add(-190*time.Minute))

	// Threshold 03:00, last feed 3h10m ago, never notified: one send.
	assert.Equal(t, 1, engine.RunCycle(context.Background()))
	assert.Equal(t, 1, sender.sendCount())

	got := loadPreference(t, s, pref.ID)
	require.NotNil(t, got.LastNotifiedAt)
	assert.WithinDuration(t, now, *got.LastNotifiedAt, time.Second)

	// Immediately after, with no repeat interval, the episode is closed.
	assert.Equal(t, 0, engine.RunCycle(context.Background()))
	assert.Equal(t, 1, sender.sendCount())

	// Still closed hours later while the timer stays expired.
	engine.now = func() time.Time { return now.Add(6 * time.Hour) }
	assert.Equal(t, 0, engine.RunCycle(context.Background()))

	// A fresh feed re-opens the episode once the threshold re-elapses.
	createActivity(t, s, child.ID, model.ActivityFeed, now.Add(7*time.Hour))
	engine.now = func() time.Time { return now.Add(7*time.Hour + 181*time.Minute) }
	assert.Equal(t, 1, engine.RunCycle(context.Background()))
	assert.Equal(t, 2, sender.sendCount())
}

func TestRunCycle_RepeatInterval(t *testing.T) {
	s := newSQLiteStore(t)
	sender := &recordingSender{status: http.StatusCreated}
	engine := newTestEngine(t, s, sender)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return start }

	child := createChild(t, s, "Noor", "01:00", "02:00")
	sub := createSubscription(t, s, "https://push.example.com/b", 0)
	interval := 60
	createPreference(t, s, sub.ID, child.ID, model.EventFeedTimerExpired, &interval)
	createActivity(t, s, child.ID, model.ActivityFeed, start.Add(-2*time.Hour))

	assert.Equal(t, 1, engine.RunCycle(context.Background()))

	// 59 minutes after the first notification: not yet.
	engine.now = func() time.Time { return start.Add(59 * time.Minute) }
	assert.Equal(t, 0, engine.RunCycle(context.Background()))

	// 60 minutes after: due again while the timer is still expired.
	engine.now = func() time.Time { return start.Add(60 * time.Minute) }
	assert.Equal(t, 1, engine.RunCycle(context.Background()))
	assert.Equal(t, 2, sender.sendCount())
}

func TestRunCycle_FailedSendIsRetriedNextCycle(t *testing.T) {
	s := newSQLiteStore(t)
	sender := &recordingSender{status: http.StatusBadGateway}
	engine := newTestEngine(t, s, sender)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	child := createChild(t, s, "Maja", "01:00", "02:00")
	sub := createSubscription(t, s, "https://push.example.com/c", 0)
	pref := createPreference(t, s, sub.ID, child.ID, model.EventFeedTimerExpired, nil)
	createActivity(t, s, child.ID, model.ActivityFeed, now.Add(-2*time.Hour))

	// The send fails: nothing counted, the claim is rolled back, and the
	// subscription's failure counter moves.
	assert.Equal(t, 0, engine.RunCycle(context.Background()))
	assert.Equal(t, 1, sender.sendCount())

	got := loadPreference(t, s, pref.ID)
	assert.Nil(t, got.LastNotifiedAt)

	var gotSub model.PushSubscription
	require.NoError(t, s.DB().First(&gotSub, sub.ID).Error)
	assert.Equal(t, 1, gotSub.FailureCount)
	assert.NotNil(t, gotSub.LastFailureAt)

	// The next cycle retries the same candidate.
	sender.status = http.StatusCreated
	assert.Equal(t, 1, engine.RunCycle(context.Background()))
	assert.NotNil(t, loadPreference(t, s, pref.ID).LastNotifiedAt)

	require.NoError(t, s.DB().First(&gotSub, sub.ID).Error)
	assert.Equal(t, 0, gotSub.FailureCount)
	assert.NotNil(t, gotSub.LastSuccessAt)
}

func TestRunCycle_GoneSubscriptionIsDeleted(t *testing.T) {
	s := newSQLiteStore(t)
	sender := &recordingSender{status: http.StatusGone}
	engine := newTestEngine(t, s, sender)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	child := createChild(t, s, "Maja", "01:00", "02:00")
	sub := createSubscription(t, s, "https://push.example.com/d", 4)
	createPreference(t, s, sub.ID, child.ID, model.EventFeedTimerExpired, nil)
	createActivity(t, s, child.ID, model.ActivityFeed, now.Add(-2*time.Hour))

	assert.Equal(t, 0, engine.RunCycle(context.Background()))

	var count int64
	require.NoError(t, s.DB().Model(&model.PushSubscription{}).Where("id = ?", sub.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRunCycle_MalformedThresholdStillRuns(t *testing.T) {
	s := newSQLiteStore(t)
	sender := &recordingSender{status: http.StatusCreated}
	engine := newTestEngine(t, s, sender)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	// A malformed threshold behaves as zero: any recent activity makes the
	// timer expired instead of crashing the cycle.
	child := createChild(t, s, "Maja", "garbage", "02:00")
	sub := createSubscription(t, s, "https://push.example.com/e", 0)
	createPreference(t, s, sub.ID, child.ID, model.EventFeedTimerExpired, nil)
	createActivity(t, s, child.ID, model.ActivityFeed, now.Add(-1*time.Minute))

	assert.Equal(t, 1, engine.RunCycle(context.Background()))
}

func TestRunCycle_NoActivityNeverEligible(t *testing.T) {
	s := newSQLiteStore(t)
	sender := &recordingSender{status: http.StatusCreated}
	engine := newTestEngine(t, s, sender)

	child := createChild(t, s, "Maja", "00:01", "00:01")
	sub := createSubscription(t, s, "https://push.example.com/f", 0)
	createPreference(t, s, sub.ID, child.ID, model.EventFeedTimerExpired, nil)

	assert.Equal(t, 0, engine.RunCycle(context.Background()))
	assert.Equal(t, 0, sender.sendCount())
}
