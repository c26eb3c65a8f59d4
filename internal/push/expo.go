package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/elegantflow/crm-service/internal/config"
)

var (
	// ErrInvalidToken is returned for tokens that are not Expo push tokens.
	ErrInvalidToken = errors.New("push: invalid expo push token")
	// ErrDeliveryFailure wraps every transport or ticket level failure.
	ErrDeliveryFailure = errors.New("push: delivery failed")
)

// Message is a single push addressed to one device token.
type Message struct {
	Token  string
	Title  string
	Body   string
	Data   map[string]any
	Route  string
	Screen string
	Sound  string
}

// Notifier delivers push messages.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}

// ExpoNotifier posts messages to the Expo push service.
type ExpoNotifier struct {
	client   *resty.Client
	endpoint string
	sound    string
}

// NewExpoNotifier builds a notifier from configuration.
func NewExpoNotifier(cfg config.PushConfig) *ExpoNotifier {
	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}
	return &ExpoNotifier{client: client, endpoint: cfg.Endpoint, sound: cfg.Sound}
}

type expoMessage struct {
	To    string         `json:"to"`
	Sound string         `json:"sound,omitempty"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

type expoTicket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type expoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type expoResponse struct {
	Data   expoTicket  `json:"data"`
	Errors []expoError `json:"errors,omitempty"`
}

// IsExpoToken reports whether token has the Expo push token shape.
func IsExpoToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// Deliver sends one message. Malformed tokens fail fast with ErrInvalidToken.
func (n *ExpoNotifier) Deliver(ctx context.Context, msg Message) error {
	if !IsExpoToken(msg.Token) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, msg.Token)
	}

	data := make(map[string]any, len(msg.Data)+2)
	for k, v := range msg.Data {
		data[k] = v
	}
	if msg.Route != "" {
		data["route"] = msg.Route
	}
	if msg.Screen != "" {
		data["screen"] = msg.Screen
	}
	sound := msg.Sound
	if sound == "" {
		sound = n.sound
	}

	var out expoResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(expoMessage{To: msg.Token, Sound: sound, Title: msg.Title, Body: msg.Body, Data: data}).
		SetResult(&out).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailure, resp.StatusCode())
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrDeliveryFailure, out.Errors[0].Code, out.Errors[0].Message)
	}
	if out.Data.Status == "error" {
		return fmt.Errorf("%w: %s", ErrDeliveryFailure, out.Data.Message)
	}
	return nil
}
