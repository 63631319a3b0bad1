// Package remote talks to the REST store holding the balance and expense
// resources. Every call is a fresh request: nothing is cached and nothing is
// retried.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensetracker/internal/core"
)

const (
	balancePath  = "/currentBalance"
	expensesPath = "/expenses"

	maxResponseBytes = 1 << 20
)

// Ensure interface conformance
var _ Store = (*Client)(nil)

// StatusError reports a non-2xx response from the store.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a client for the store rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the store root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type balanceBody struct {
	CurrentBalance *core.Amount `json:"currentBalance"`
}

// GetBalance implements BalanceStore
func (c *Client) GetBalance(ctx context.Context) (core.Amount, error) {
	var body balanceBody
	if err := c.do(ctx, http.MethodGet, balancePath, nil, &body); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if body.CurrentBalance == nil {
		return 0, fmt.Errorf("get balance: %w: currentBalance missing or null", core.ErrMalformedResponse)
	}
	return *body.CurrentBalance, nil
}

// SetBalance implements BalanceStore
func (c *Client) SetBalance(ctx context.Context, v core.Amount) (core.Amount, error) {
	var body balanceBody
	if err := c.do(ctx, http.MethodPut, balancePath, core.Balance{CurrentBalance: v}, &body); err != nil {
		return 0, fmt.Errorf("set balance: %w", err)
	}
	if body.CurrentBalance == nil {
		return 0, fmt.Errorf("set balance: %w: currentBalance missing or null", core.ErrMalformedResponse)
	}
	return *body.CurrentBalance, nil
}

// ListExpenses implements ExpenseStore
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var out []core.Expense
	if err := c.do(ctx, http.MethodGet, expensesPath, nil, &out); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// ListExpensesByCategory implements ExpenseStore
func (c *Client) ListExpensesByCategory(ctx context.Context, category string) ([]core.Expense, error) {
	path := expensesPath + "?" + url.Values{"category": {category}}.Encode()
	var out []core.Expense
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list expenses (category=%s): %w", category, err)
	}
	return out, nil
}

// PatchExpense implements ExpenseStore
func (c *Client) PatchExpense(ctx context.Context, id core.ExpenseID, patch core.ExpensePatch) (core.Expense, error) {
	var out core.Expense
	path := expensesPath + "/" + url.PathEscape(id.String())
	if err := c.do(ctx, http.MethodPatch, path, patch, &out); err != nil {
		return core.Expense{}, fmt.Errorf("patch expense %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	slog.DebugContext(ctx, "Remote request completed",
		"method", method,
		"url", target,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	return nil
}
