package syncclient

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

	"github.com/Additional-Code/bloom/internal/dto"
)

// APIError is a non-2xx answer from the order API.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("order api: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the order HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ListOrders fetches every order.
func (c *Client) ListOrders(ctx context.Context) ([]dto.OrderResponse, error) {
	var out dto.OrderListResponse
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	if out.Orders == nil {
		out.Orders = []dto.OrderResponse{}
	}
	return out.Orders, nil
}

// CreateOrder submits a new order.
func (c *Client) CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.OrderResponse, error) {
	var out dto.OrderResponse
	err := c.do(ctx, http.MethodPost, "/orders", req, &out)
	return out, err
}

// UpdateStatus asks the server to move an order to status.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status string) (dto.OrderResponse, error) {
	var out dto.OrderResponse
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d", id), dto.UpdateStatusRequest{Status: status}, &out)
	return out, err
}

// Clear wipes the server's order history.
func (c *Client) Clear(ctx context.Context, password string) (dto.ClearResponse, error) {
	var out dto.ClearResponse
	err := c.do(ctx, http.MethodPost, "/orders/clear", dto.ClearRequest{Password: password}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// retryable separates transient failures from answers that will not change.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
