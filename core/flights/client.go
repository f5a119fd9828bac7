// Package flights is a client for the flight search backend that looks up
// offers on behalf of the find_and_show_flights tool.
package flights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/ema-live/core/travel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	searchPath     = "/api/flights/search"
	defaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 4 << 10
)

var ErrSearchFailed = errors.New("flight search failed")

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-OK HTTP status: %s", e.Status)
	}
	return fmt.Sprintf("non-OK HTTP status: %s: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrSearchFailed }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds each search. It applies to a copy, so a client passed
// to WithHTTPClient keeps its own timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		client := *c.httpClient
		client.Timeout = timeout
		c.httpClient = &client
	}
}

// NewClient creates a client for the backend at baseURL, for example
// http://localhost:8000. A trailing slash is ignored.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string { return c.baseURL + searchPath }

func (c *Client) SearchFlights(ctx context.Context, params travel.FlightSearchParams) ([]travel.FlightOffer, error) {
	ctx, span := tracer.Start(ctx, "search flights")
	defer span.End()
	span.SetAttributes(
		attribute.String("flights.origin", params.Origin),
		attribute.String("flights.destination", params.Destination),
		attribute.String("flights.departure_date", params.DepartureDate),
	)

	offers, err := c.searchFlights(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("flights.offers", len(offers)))
	return offers, nil
}

func (c *Client) searchFlights(ctx context.Context, params travel.FlightSearchParams) ([]travel.FlightOffer, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error sending request: %w", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Warn("flight search backend returned an error",
			"status", resp.Status, "body", string(errorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(errorBody)),
		}
	}

	var offers []travel.FlightOffer
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return nil, fmt.Errorf("%w: error decoding response body: %w", ErrSearchFailed, err)
	}
	if offers == nil {
		offers = []travel.FlightOffer{}
	}

	return offers, nil
}
