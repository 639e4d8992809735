package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrNotFound is returned when the gateway has no such entity
	ErrNotFound = errors.New("gateway: not found")
	// ErrTimeout is returned when a gateway call exceeds its deadline
	ErrTimeout = errors.New("gateway: request timed out")
)

// APIError is a non-2xx gateway response
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsTransient reports whether err is worth retrying later
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Config holds gateway credentials and limits
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client talks to the payment gateway REST API
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a gateway client with a traced transport
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		timeout:   timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// CreateOrder creates a gateway order for the given amount in minor units
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

// FetchOrder retrieves a gateway order by its id
func (c *Client) FetchOrder(ctx context.Context, id string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &order); err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", id, err)
	}
	return &order, nil
}

// FindOrderByReceipt returns the gateway order carrying receipt, or nil when
// there is none. One local order can have several gateway orders, so a paid
// match wins over a newer unpaid one; otherwise the most recent is returned.
func (c *Client) FindOrderByReceipt(ctx context.Context, receipt string) (*Order, error) {
	query := url.Values{}
	query.Set("receipt", receipt)

	var list collection[Order]
	if err := c.do(ctx, http.MethodGet, "/orders", query, nil, &list); err != nil {
		return nil, fmt.Errorf("find order by receipt %s: %w", receipt, err)
	}

	var latest, paid *Order
	for i := range list.Items {
		item := &list.Items[i]
		if item.Receipt != receipt {
			continue
		}
		if latest == nil || item.CreatedAt > latest.CreatedAt {
			latest = item
		}
		if item.Status == OrderStatusPaid && (paid == nil || item.CreatedAt > paid.CreatedAt) {
			paid = item
		}
	}
	if paid != nil {
		return paid, nil
	}
	return latest, nil
}

// ListOrderPayments returns every payment attempted against a gateway order
func (c *Client) ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]Payment, error) {
	var list collection[Payment]
	path := "/orders/" + url.PathEscape(gatewayOrderID) + "/payments"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &list); err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", gatewayOrderID, err)
	}
	if list.Items == nil {
		return []Payment{}, nil
	}
	return list.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
