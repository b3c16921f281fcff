// Package client is a strategy-side convenience wrapper over the
// exchange's HTTP/JSON API. It turns trading decisions into requests and
// responses back into typed results; it holds no market state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tickex/internal/model"
)

// Client talks to one exchange server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// OrderRequest is one order submission.
type OrderRequest struct {
	Instrument string `json:"instrument"`
	Side       string `json:"side"` // "BUY" or "SELL"
	Kind       string `json:"kind"` // "LIMIT" or "MARKET"
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
}

// OrderAck mirrors the server's submit response.
type OrderAck struct {
	OrderID        uint64        `json:"order_id"`
	Status         string        `json:"status"`
	FilledQuantity int64         `json:"filled_quantity"`
	Tick           uint64        `json:"tick"`
	Trades         []model.Trade `json:"trades"`
}

// CancelAck mirrors the server's cancel response.
type CancelAck struct {
	OrderID   uint64 `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

// OrderStatus mirrors the server's order status response.
type OrderStatus struct {
	OrderID        uint64 `json:"order_id"`
	Instrument     string `json:"instrument"`
	Side           string `json:"side"`
	Kind           string `json:"kind"`
	Price          int64  `json:"price"`
	Quantity       int64  `json:"quantity"`
	FilledQuantity int64  `json:"filled_quantity"`
	Status         string `json:"status"`
	Tick           uint64 `json:"tick"`
}

// TickResult mirrors the server's tick response.
type TickResult struct {
	Tick   uint64        `json:"tick"`
	Quotes []model.Quote `json:"quotes"`
	Trades []model.Trade `json:"trades"`
}

// Info mirrors the server's info response.
type Info struct {
	Version     string   `json:"version"`
	Instruments []string `json:"instruments"`
	Tick        uint64   `json:"tick"`
}

// SubmitOrder submits an order and returns the synchronous ack.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	var ack OrderAck
	err := c.do(ctx, http.MethodPost, "/orders", req, &ack)
	return ack, err
}

// CancelOrder cancels an order by id. Cancelled false means the order
// was already terminal.
func (c *Client) CancelOrder(ctx context.Context, orderID uint64) (CancelAck, error) {
	var ack CancelAck
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", orderID), nil, &ack)
	return ack, err
}

// GetOrderStatus fetches the current state of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID uint64) (OrderStatus, error) {
	var st OrderStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &st)
	return st, err
}

// AdvanceTick steps the simulation clock by one tick.
func (c *Client) AdvanceTick(ctx context.Context) (TickResult, error) {
	var res TickResult
	err := c.do(ctx, http.MethodPost, "/tick", nil, &res)
	return res, err
}

// GetBook fetches a depth-limited snapshot of one instrument's book.
func (c *Client) GetBook(ctx context.Context, instrument string, depth int) (model.BookView, error) {
	path := "/book/" + instrument
	if depth > 0 {
		path += "?depth=" + strconv.Itoa(depth)
	}
	var view model.BookView
	err := c.do(ctx, http.MethodGet, path, nil, &view)
	return view, err
}

// GetTrades lists executed trades after fromSeq.
func (c *Client) GetTrades(ctx context.Context, instrument string, fromSeq uint64, limit int) ([]model.Trade, error) {
	path := fmt.Sprintf("/trades?from=%d", fromSeq)
	if instrument != "" {
		path += "&instrument=" + instrument
	}
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var trades []model.Trade
	err := c.do(ctx, http.MethodGet, path, nil, &trades)
	return trades, err
}

// GetInfo fetches server metadata.
func (c *Client) GetInfo(ctx context.Context) (Info, error) {
	var info Info
	err := c.do(ctx, http.MethodGet, "/info", nil, &info)
	return info, err
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
