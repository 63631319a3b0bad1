package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"expensetracker/internal/core"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, &reqs
}

func TestGetBalance(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"currentBalance": 150.5}`))
	})
	got, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got != 150.5 {
		t.Fatalf("expected 150.5, got %v", got)
	}
	if len(*reqs) != 1 || (*reqs)[0].Method != http.MethodGet || (*reqs)[0].Path != "/currentBalance" {
		t.Fatalf("unexpected requests: %+v", *reqs)
	}
}

func TestGetBalanceMalformed(t *testing.T) {
	cases := map[string]string{
		"null balance":  `{"currentBalance": null}`,
		"missing field": `{}`,
		"not json":      `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.GetBalance(context.Background())
			if !errors.Is(err, core.ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestSetBalanceReturnsEcho(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The store is authoritative; echo something different from the request.
		_, _ = w.Write([]byte(`{"currentBalance": 99}`))
	})
	got, err := c.SetBalance(context.Background(), 120)
	if err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if got != 99 {
		t.Fatalf("expected echoed 99, got %v", got)
	}
	r := (*reqs)[0]
	if r.Method != http.MethodPut || r.Body != `{"currentBalance":120}` {
		t.Fatalf("unexpected request: %+v", r)
	}
}

func TestSetBalanceNaNSendsNull(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"currentBalance": null}`))
	})
	_, err := c.SetBalance(context.Background(), core.NaN)
	if !errors.Is(err, core.ErrMalformedResponse) {
		t.Fatalf("expected malformed echo, got %v", err)
	}
	if (*reqs)[0].Body != `{"currentBalance":null}` {
		t.Fatalf("NaN should reach the store as null, got %s", (*reqs)[0].Body)
	}
}

func TestListExpensesByCategory(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"2","category":"Food & Drink","amount":10,"description":"d"}]`))
	})
	got, err := c.ListExpensesByCategory(context.Background(), "Food & Drink")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected expenses: %+v", got)
	}
	if q := (*reqs)[0].Query; q != "category=Food+%26+Drink" {
		t.Fatalf("unexpected query %q", q)
	}
}

func TestListExpensesKeepsOrder(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":3,"category":"B","amount":1},{"id":1,"category":"A","amount":2}]`))
	})
	got, err := c.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestPatchExpense(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"5","category":"Food","amount":0,"description":"d"}`))
	})
	got, err := c.PatchExpense(context.Background(), "5", core.AmountPatch(0))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got.ID != "5" || got.Amount != 0 {
		t.Fatalf("unexpected echo: %+v", got)
	}
	r := (*reqs)[0]
	if r.Method != http.MethodPatch || r.Path != "/expenses/5" || r.Body != `{"amount":0}` {
		t.Fatalf("unexpected request: %+v", r)
	}
}

func TestStatusError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing"})
	})
	_, err := c.PatchExpense(context.Background(), "404", core.AmountPatch(1))
	if !IsNotFound(err) {
		t.Fatalf("expected not found status error, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.GetBalance(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "://bad"} {
		if _, err := New(u); err == nil {
			t.Fatalf("expected error for %q", u)
		}
	}
}
