package pushclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// DefaultStepTimeout bounds each platform transition. A stuck worker
	// installation or subscribe call surfaces as a timeout error instead
	// of hanging the caller.
	DefaultStepTimeout = 30 * time.Second

	// serverKeyTTL is how long a fetched VAPID key is reused before being
	// fetched again, so a server-side key rotation is eventually picked up
	// without a page reload.
	serverKeyTTL = 30 * time.Minute

	serverKeyCacheKey = "vapid_public_key"

	// uncompressedPointLen is the length of a P-256 public key in
	// uncompressed point form.
	uncompressedPointLen = 65
)

// Client drives the device-side subscription lifecycle: worker
// registration, platform subscribe, and the registration handshake with
// the server. Each platform transition runs under a bounded timeout.
type Client struct {
	platform Platform
	http     *http.Client
	baseURL  string
	timeout  time.Duration
	keys     *cache.Cache

	mu       sync.Mutex
	state    State
	worker   Worker
	sub      *Subscription
	serverID int64
}

// New creates a lifecycle client talking to the given server base URL.
func New(baseURL string, platform Platform) *Client {
	return &Client{
		platform: platform,
		http:     &http.Client{Timeout: DefaultStepTimeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  DefaultStepTimeout,
		keys:     cache.New(serverKeyTTL, 10*time.Minute),
		state:    StateUnregistered,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Register walks the full lifecycle: install the worker, wait for it to
// activate, subscribe with the server's current public key, and exchange
// the subscription material with the server. It returns the subscription
// id assigned by the server.
func (c *Client) Register(ctx context.Context, familyID int64, deviceLabel, userAgent string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateWorkerInstalling
	worker, err := c.registerWorker(ctx)
	if err != nil {
		c.state = StateUnregistered
		return 0, err
	}
	c.state = StateWorkerActive
	c.worker = worker

	key, err := c.serverKey(ctx)
	if err != nil {
		return 0, err
	}

	// An existing subscription may be bound to a rotated server key; drop
	// it before re-subscribing so stale-key subscriptions never linger.
	if existing, err := worker.Subscription(ctx); err == nil && existing != nil {
		if err := c.unsubscribePlatform(ctx, existing); err != nil {
			log.Printf("failed to drop existing subscription: %v", err)
		}
	}

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	sub, err := worker.Subscribe(sctx, key)
	cancel()
	if err != nil {
		return 0, wrap("subscribe", err)
	}
	c.state = StateSubscribed
	c.sub = sub

	id, err := c.registerOnServer(ctx, sub, familyID, deviceLabel, userAgent)
	if err != nil {
		return 0, err
	}
	c.state = StateRegistered
	c.serverID = id
	return id, nil
}

// Unregister mirrors registration: the server is told first (absence on
// the server is not an error), then the platform subscription is torn
// down.
func (c *Client) Unregister(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return nil
	}

	if err := c.unregisterOnServer(ctx, c.sub.Endpoint); err != nil {
		return err
	}

	if c.worker != nil {
		if err := c.unsubscribePlatform(ctx, c.sub); err != nil {
			return err
		}
	}

	c.state = StateUnregistered
	c.sub = nil
	c.serverID = 0
	return nil
}

func (c *Client) registerWorker(ctx context.Context) (Worker, error) {
	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	worker, err := c.platform.RegisterWorker(wctx)
	if err != nil {
		return nil, wrap("register worker", err)
	}

	// The registration may still be installing; wait for activation under
	// the same bound.
	if err := worker.WaitActive(wctx); err != nil {
		return nil, wrap("wait for worker activation", err)
	}
	return worker, nil
}

func (c *Client) unsubscribePlatform(ctx context.Context, sub *Subscription) error {
	uctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.worker.Unsubscribe(uctx, sub); err != nil {
		return wrap("unsubscribe", err)
	}
	return nil
}

// serverKey returns the server's VAPID public key in raw bytes, fetched
// from the key distribution endpoint and cached with a TTL.
func (c *Client) serverKey(ctx context.Context) ([]byte, error) {
	if cached, found := c.keys.Get(serverKeyCacheKey); found {
		return cached.([]byte), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/vapid_public_key", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch server key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, errors.New("push notifications are disabled on the server")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server key endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode server key response: %w", err)
	}

	key, err := DecodeServerKey(body.PublicKey)
	if err != nil {
		return nil, err
	}

	c.keys.Set(serverKeyCacheKey, key, cache.DefaultExpiration)
	return key, nil
}

// DecodeServerKey converts a URL-safe base64 VAPID public key into raw
// bytes. Some platforms pad the encoded key differently, so an unexpected
// decoded length is logged as a warning rather than rejected.
func DecodeServerKey(s string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("decode server key: %w", err)
	}
	if len(key) != uncompressedPointLen {
		log.Printf("server key decoded to %d bytes, expected %d", len(key), uncompressedPointLen)
	}
	return key, nil
}

type registerRequest struct {
	Endpoint    string       `json:"endpoint"`
	Keys        registerKeys `json:"keys"`
	DeviceLabel string       `json:"device_label"`
	UserAgent   string       `json:"user_agent"`
	FamilyID    int64        `json:"family_id"`
}

type registerKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

func (c *Client) registerOnServer(ctx context.Context, sub *Subscription, familyID int64, deviceLabel, userAgent string) (int64, error) {
	payload, err := json.Marshal(registerRequest{
		Endpoint:    sub.Endpoint,
		Keys:        registerKeys{P256DH: sub.P256DH, Auth: sub.Auth},
		DeviceLabel: deviceLabel,
		UserAgent:   userAgent,
		FamilyID:    familyID,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/subscriptions", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("registration handshake: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("registration handshake returned %d", resp.StatusCode)
	}

	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode registration response: %w", err)
	}
	return body.ID, nil
}

func (c *Client) unregisterOnServer(ctx context.Context, endpoint string) error {
	// The server reads ?endpoint= raw, without URL decoding, so the value
	// goes in unescaped. Push service endpoint URLs carry no query
	// metacharacters.
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/subscriptions?endpoint="+endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unregister: %w", err)
	}
	defer resp.Body.Close()

	// The unregistration flow is idempotent; the server not knowing the
	// endpoint is fine.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unregister returned %d", resp.StatusCode)
	}
	return nil
}

func wrap(op string, err error) error {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return err
	}
	return &PlatformError{Kind: Classify(err), Op: op, Err: err}
}
