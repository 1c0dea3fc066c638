// Package iqair provides a client for the IQAir AirVisual v2 API.
package iqair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the AirVisual API.
	DefaultBaseURL = "https://api.airvisual.com/v2"

	// ProviderName identifies this provider.
	ProviderName = "iqair"
)

// ClientConfig holds configuration for the IQAir client.
type ClientConfig struct {
	// APIKey is the AirVisual API key.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry receives the default client, if set.
	Registry *resilience.Registry

	// Logger for retries and circuit breaker transitions.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements airquality.Source against AirVisual. Safe for
// concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

var _ airquality.Source = (*Client)(nil)

// NewClient creates a new IQAir client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Registry:        cfg.Registry,
			Logger:          cfg.Logger,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// API response types (from the AirVisual v2 API).

type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type apiFailure struct {
	Message string `json:"message"`
}

type cityData struct {
	City    string  `json:"city"`
	State   string  `json:"state"`
	Current current `json:"current"`
}

type current struct {
	Pollution pollution `json:"pollution"`
	Weather   weather   `json:"weather"`
}

type pollution struct {
	AQIUS int `json:"aqius"`
}

type weather struct {
	Temperature int `json:"tp"`
	Humidity    int `json:"hu"`
}

// FetchByCity looks a measurement up by city, state and country.
func (c *Client) FetchByCity(ctx context.Context, q airquality.CityQuery) (*airquality.RawMeasurement, error) {
	params := url.Values{}
	params.Set("city", q.City)
	params.Set("state", q.State)
	params.Set("country", q.Country)

	return c.fetch(ctx, "/city", params, airquality.Location{Query: q}.String())
}

// FetchByCoordinates looks up the measurement of the city nearest to q.
func (c *Client) FetchByCoordinates(ctx context.Context, q airquality.CoordinatesQuery) (*airquality.RawMeasurement, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(q.Longitude, 'f', -1, 64))

	return c.fetch(ctx, "/nearest_city", params, airquality.Location{Query: q}.String())
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values, what string) (*airquality.RawMeasurement, error) {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, &airquality.LookupError{Location: what, Status: "invalid request", Err: withoutURL(err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &airquality.LookupError{Location: what, Status: "request failed", Err: withoutURL(err)}
	}
	defer resp.Body.Close()

	var body apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	// AirVisual reports failures as {"status":"fail","data":{"message":...}},
	// usually with a 4xx status.
	if decodeErr == nil && body.Status != "success" {
		var failure apiFailure
		_ = json.Unmarshal(body.Data, &failure)
		status := failure.Message
		if status == "" {
			status = body.Status
		}
		if status == "" {
			status = "unexpected response"
		}
		return nil, &airquality.LookupError{Location: what, Status: status}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &airquality.LookupError{Location: what, Status: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	if decodeErr != nil {
		return nil, &airquality.LookupError{Location: what, Status: "invalid response", Err: decodeErr}
	}

	var data cityData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, &airquality.LookupError{Location: what, Status: "invalid response", Err: err}
	}

	return &airquality.RawMeasurement{
		City:        data.City,
		State:       data.State,
		AQI:         data.Current.Pollution.AQIUS,
		Temperature: data.Current.Weather.Temperature,
		Humidity:    data.Current.Weather.Humidity,
	}, nil
}

// withoutURL drops the request URL from transport errors. The query string
// carries the API key, and lookup errors reach the logs and the ops status.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s %s: %w", uerr.Op, redactKey(uerr.URL), uerr.Err)
	}
	return err
}

func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
