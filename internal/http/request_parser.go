// This file implements utilities for parsing HTTP request data. The page
// posts form-encoded bodies; JSON bodies are accepted too for scripted use.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxFormBytes = 16 << 10

// AmountForm is the top-up form.
type AmountForm struct {
	Amount string
}

// ExpenseForm is the add-expense form. An empty Category keeps the current
// selection.
type ExpenseForm struct {
	Amount   string
	Category string
}

// ParseAmountForm reads the top-up form.
func ParseAmountForm(r *http.Request) (AmountForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return AmountForm{}, err
	}
	return AmountForm{Amount: p.Raw("amount")}, nil
}

// ParseExpenseForm reads the add-expense form.
func ParseExpenseForm(r *http.Request) (ExpenseForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return ExpenseForm{}, err
	}
	return ExpenseForm{Amount: p.Raw("amount"), Category: p.Get("category")}, nil
}

// ParseConfirmed reports whether the browser confirmed the action.
func ParseConfirmed(r *http.Request) (bool, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return false, err
	}
	ok, _ := strconv.ParseBool(p.Get("confirmed"))
	return ok, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Raw returns a value as sent, without sanitizing.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Get returns a trimmed value with control characters removed.
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.Raw(key))
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
