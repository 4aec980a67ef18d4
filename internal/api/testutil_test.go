package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"babylog-backend/config"
	"babylog-backend/internal/model"
	"babylog-backend/internal/notify"
	"babylog-backend/internal/store"
)

// stubSender answers every push send with a fixed status code.
type stubSender struct {
	status int
}

func (s stubSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}, nil
}

func newTestStore(t *testing.T) store.Store {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Child{},
		&model.ActivityRecord{},
		&model.PushSubscription{},
		&model.NotificationPreference{},
		&model.NotificationLog{},
	))

	return store.NewGormStore(db)
}

func setupTestRouter(t *testing.T, enabled bool) (*gin.Engine, store.Store) {
	gin.SetMode(gin.TestMode)

	s := newTestStore(t)

	options := &webpush.Options{
		VAPIDPublicKey:  "test_public",
		VAPIDPrivateKey: "test_private",
		Subscriber:      "mailto:ops@babylog.test",
	}
	client, err := notify.NewClientWithSender(options, stubSender{status: http.StatusCreated})
	require.NoError(t, err)

	engine := notify.NewEngine(s, notify.NewDeliverer(client, s, notify.NewLogWriter(s, 8)), 1)
	cleanup := notify.NewCleanup(s, 30)
	notifier := &config.NotifierConfig{
		Enabled:      enabled,
		TriggerToken: "test-trigger-secret",
	}

	handler := NewHandler(s, engine, cleanup, options, notifier)
	router := NewRouter(handler, &config.ServerConfig{
		RateLimitPerSec: 1000,
		CacheTTLSeconds: 1,
	})
	return router, s
}
