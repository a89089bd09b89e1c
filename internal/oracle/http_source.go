package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// HTTPSource fetches quotes from an aggregator price API.
type HTTPSource struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	nowFunc    func() time.Time
}

// HTTPSourceOption configures HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets the delay between retry attempts.
func WithRetryDelay(d time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.retryDelay = d
	}
}

// NewHTTPSource creates a new price API client.
func NewHTTPSource(endpoint string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// priceResponse is the aggregator's price API payload.
type priceResponse struct {
	Data map[string]struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}

// GetPrice fetches the current price of token denominated in vsToken.
func (s *HTTPSource) GetPrice(ctx context.Context, token, vsToken string) (*Quote, error) {
	q := url.Values{}
	q.Set("ids", token)
	q.Set("vsToken", vsToken)
	reqURL := fmt.Sprintf("%s/price?%s", s.endpoint, q.Encode())

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		quote, err := s.fetch(ctx, reqURL, token, vsToken)
		if err == nil {
			return quote, nil
		}
		if err == ErrUnavailable {
			// The source answered; retrying will not conjure a quote.
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, token, lastErr)
}

func (s *HTTPSource) fetch(ctx context.Context, reqURL, token, vsToken string) (*Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API status %d", resp.StatusCode)
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	entry, exists := parsed.Data[token]
	if !exists || entry.Price == "" {
		return nil, ErrUnavailable
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", entry.Price, err)
	}

	return &Quote{
		Token:     token,
		VsToken:   vsToken,
		Price:     price,
		FetchedAt: s.nowFunc(),
	}, nil
}

var _ Source = (*HTTPSource)(nil)
