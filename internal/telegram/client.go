package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/alert"
	"github.com/airalert/airalert/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// ProviderName identifies this provider.
	ProviderName = "telegram"
)

// ClientConfig holds configuration for the Telegram client.
type ClientConfig struct {
	// Token is the bot token.
	Token string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient sends messages and manages the webhook.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// PollClient runs getUpdates long polls. Its timeout must exceed the
	// poll timeout. If nil, a resilient client sized for PollTimeout is created.
	PollClient HTTPDoer

	// PollTimeout is the long-poll wait passed to getUpdates (default: 30s).
	PollTimeout time.Duration

	// Registry receives the default clients, if set.
	Registry *resilience.Registry

	// Logger for retries and circuit breaker transitions. Never logs URLs.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Telegram Bot API client. It implements alert.Gateway and is
// safe for concurrent use.
type Client struct {
	token       string
	baseURL     string
	httpClient  HTTPDoer
	pollClient  HTTPDoer
	pollTimeout time.Duration
}

var _ alert.Gateway = (*Client)(nil)

// NewClient creates a new Telegram client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
			Logger:          cfg.Logger,
		})
	}

	pollClient := cfg.PollClient
	if pollClient == nil {
		pollClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName + "-poll",
			Timeout:         pollTimeout + 15*time.Second,
			MaxRetries:      1,
			InitialInterval: time.Second,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
			Logger:          cfg.Logger,
		})
	}

	return &Client{
		token:       cfg.Token,
		baseURL:     strings.TrimSuffix(baseURL, "/") + "/bot" + cfg.Token,
		httpClient:  httpClient,
		pollClient:  pollClient,
		pollTimeout: pollTimeout,
	}
}

// Send delivers an HTML-formatted message. Failures are *alert.SendError.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	req := sendMessageRequest{
		ChatID:    channelID,
		Text:      text,
		ParseMode: ParseModeHTML,
	}

	if err := c.call(ctx, c.httpClient, "sendMessage", req, nil); err != nil {
		return sendError(channelID, err)
	}
	return nil
}

// SendText delivers a plain-text message.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	if err := c.call(ctx, c.httpClient, "sendMessage", sendMessageRequest{ChatID: channelID, Text: text}, nil); err != nil {
		return sendError(channelID, err)
	}
	return nil
}

// GetUpdates long-polls for message updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(c.pollTimeout / time.Second),
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	if err := c.call(ctx, c.pollClient, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers webhookURL for push delivery with the given secret token.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	return c.call(ctx, c.httpClient, "setWebhook", setWebhookRequest{
		URL:            webhookURL,
		SecretToken:    secret,
		AllowedUpdates: []string{"message"},
	}, nil)
}

// DeleteWebhook removes any webhook so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, c.httpClient, "deleteWebhook", deleteWebhookRequest{}, nil)
}

func (c *Client) call(ctx context.Context, doer HTTPDoer, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, c.redact(err))
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("%s: decode response (http %d): %w", method, resp.StatusCode, err)
	}

	if !apiResp.OK {
		apiErr := &APIError{Method: method, Code: apiResp.ErrorCode, Description: apiResp.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func sendError(channelID string, err error) *alert.SendError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &alert.SendError{ChannelID: channelID, Status: "rejected", Err: apiErr}
	}
	return &alert.SendError{ChannelID: channelID, Status: "request failed", Err: err}
}

// redact removes the bot token from transport errors, which embed the URL.
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && c.token != "" {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, c.token, "<token>")
	}
	return err
}
