package notify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"babylog-backend/internal/model"
)

// Sender defines the interface for transmitting one web push message.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Outcome is the classified result of one delivery attempt.
type Outcome struct {
	Success    bool
	StatusCode int
	Err        error
}

// Gone reports whether the push service declared the endpoint permanently
// invalid.
func (o Outcome) Gone() bool {
	return o.StatusCode == http.StatusGone
}

// Client signs and delivers messages through the web push transport. It is
// constructed exactly once at startup and injected into the engine; a
// missing VAPID key pair is a configuration error surfaced here, not per
// send, because no message can ever go out without it.
type Client struct {
	options *webpush.Options
	sender  Sender
}

// NewClient validates the VAPID configuration and returns a ready client.
func NewClient(options *webpush.Options) (*Client, error) {
	return NewClientWithSender(options, &WebPushSender{})
}

// NewClientWithSender is like NewClient but with a caller-supplied
// transport, for tests.
func NewClientWithSender(options *webpush.Options, sender Sender) (*Client, error) {
	if options == nil || options.VAPIDPublicKey == "" || options.VAPIDPrivateKey == "" {
		return nil, errors.New("VAPID key pair is not configured")
	}
	return &Client{
		options: options,
		sender:  sender,
	}, nil
}

// Send delivers one serialized payload to one subscription endpoint using
// the device's registered keys. Transport errors map to a generic 500-class
// outcome; responses carry the push service's own status code, with
// anything below 400 treated as delivered.
func (c *Client) Send(sub *model.PushSubscription, payload []byte) Outcome {
	resp, err := c.sender.Send(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}, c.options)
	if err != nil {
		return Outcome{
			StatusCode: http.StatusInternalServerError,
			Err:        fmt.Errorf("send push: %w", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Outcome{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("push service returned %d", resp.StatusCode),
		}
	}

	return Outcome{Success: true, StatusCode: resp.StatusCode}
}
