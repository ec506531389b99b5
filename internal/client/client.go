// Package client talks to a larder server over HTTP and the live feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/dispatch"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/recipe"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns a field-level 400 back into a *dispatch.ValidationError
// so callers handle server and local validation alike.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	if resp.StatusCode == http.StatusBadRequest && body.Field != "" {
		msg := strings.TrimPrefix(body.Error, body.Field+": ")
		return &dispatch.ValidationError{Field: body.Field, Message: msg}
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}

func recordPath(collection model.Collection, id string) string {
	return "/api/" + string(collection) + "/" + url.PathEscape(id)
}

// Push creates a record and returns its id. It satisfies dispatch.Backend.
func (c *Client) Push(ctx context.Context, collection model.Collection, fields map[string]any) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/"+string(collection), fields, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Update writes only the given fields.
func (c *Client) Update(ctx context.Context, collection model.Collection, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, recordPath(collection, id), fields, nil)
}

func (c *Client) Remove(ctx context.Context, collection model.Collection, id string) error {
	return c.do(ctx, http.MethodDelete, recordPath(collection, id), nil, nil)
}

// Purchase marks a shopping item bought. The server moves it into the
// inventory.
func (c *Client) Purchase(ctx context.Context, id string) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	if err := c.do(ctx, http.MethodPost, recordPath(model.CollectionShopping, id)+"/purchase", nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// List fetches a collection once without subscribing.
func List[T model.Record](ctx context.Context, c *Client, collection model.Collection) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, "/api/"+string(collection), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Recipes(ctx context.Context, query string) ([]recipe.Hit, error) {
	var out struct {
		Hits []recipe.Hit `json:"hits"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/recipes?q="+url.QueryEscape(query), nil, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}
