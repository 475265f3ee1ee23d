// Package apiclient is a small client of the order-service HTTP API, used by
// the operator console and the bench runner.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
	"github.com/nazeru/phoneshop-go/pkg/idempotency"
)

// Error is a non-2xx answer of the API.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d %s: %s", e.Status, e.Code, e.Message)
}

// Code returns the API error code of err, or "transport" for anything else.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "transport"
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body, out any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp, &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Status: resp.StatusCode}
		if env.Error != nil {
			e.Code, e.Message, e.Details = env.Error.Code, env.Error.Message, env.Error.Details
		}
		return resp, e
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}

// CreateOrder places an order and reports whether the server replayed an
// earlier result. An empty key is replaced by a random one.
func (c *Client) CreateOrder(ctx context.Context, in workflow.CreateOrderInput, idempotencyKey string) (domain.Order, bool, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	h := http.Header{}
	h.Set(idempotency.Header, idempotencyKey)
	var o domain.Order
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/orders", h, in, &o)
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, resp.Header.Get(idempotency.ReplayedHeader) == "true", nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	_, err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(id), nil, nil, &o)
	return o, err
}

func (c *Client) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	_, err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(id)+"/cancel", nil, nil, &o)
	return o, err
}

func (c *Client) SetOrderStatus(ctx context.Context, id string, u workflow.StatusUpdate) (domain.Order, error) {
	var o domain.Order
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/orders/"+url.PathEscape(id)+"/status", nil, u, &o)
	return o, err
}

func (c *Client) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var orders []domain.Order
	_, err := c.do(ctx, http.MethodGet, "/api/v1/orders?"+q.Encode(), nil, nil, &orders)
	return orders, err
}

func (c *Client) OrderStats(ctx context.Context) (domain.OrderStats, error) {
	var s domain.OrderStats
	_, err := c.do(ctx, http.MethodGet, "/api/v1/orders/stats", nil, nil, &s)
	return s, err
}

func (c *Client) BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error) {
	var b []domain.BestSeller
	_, err := c.do(ctx, http.MethodGet, "/api/v1/orders/best-selling?limit="+strconv.Itoa(limit), nil, nil, &b)
	return b, err
}

func (c *Client) CustomerStats(ctx context.Context, top int) (domain.CustomerStatsReport, error) {
	var r domain.CustomerStatsReport
	_, err := c.do(ctx, http.MethodGet, "/api/v1/customers/stats?top="+strconv.Itoa(top), nil, nil, &r)
	return r, err
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	_, err := c.do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id), nil, nil, &p)
	return p, err
}

func (c *Client) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	var ps []domain.Product
	_, err := c.do(ctx, http.MethodGet, "/api/v1/products/low-stock?threshold="+strconv.Itoa(threshold), nil, nil, &ps)
	return ps, err
}
