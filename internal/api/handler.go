package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"babylog-backend/config"
	"babylog-backend/internal/notify"
	"babylog-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	engine   *notify.Engine
	cleanup  *notify.Cleanup
	webpush  *webpush.Options
	notifier *config.NotifierConfig
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, engine *notify.Engine, cleanup *notify.Cleanup, webpushOptions *webpush.Options, notifier *config.NotifierConfig) *Handler {
	return &Handler{
		store:    s,
		engine:   engine,
		cleanup:  cleanup,
		webpush:  webpushOptions,
		notifier: notifier,
	}
}

func (h *Handler) enabled() bool {
	return h.notifier != nil && h.notifier.Enabled
}
