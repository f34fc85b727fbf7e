// Package remote talks to the hosted PostgREST backend that keeps signed-in
// users' book rows.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const booksPath = "/rest/v1/books"

// codeInsufficientPrivilege is the Postgres error PostgREST relays when a
// row-level security policy rejects the statement.
const codeInsufficientPrivilege = "42501"

var (
	ErrPermissionDenied = errors.New("remote: permission denied")
	ErrNotFound         = errors.New("remote: not found")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("remote: %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrPermissionDenied) see through to the cause.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden || e.Code == codeInsufficientPrivilege {
		return ErrPermissionDenied
	}
	return nil
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a client for cfg.RemoteURL, or nil when no remote backend is
// configured.
func New(cfg *config.Config, httpClient *http.Client) *Client {
	if cfg.RemoteURL == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.DiscoveryRequestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.RemoteURL, "/"),
		apiKey:  cfg.RemoteAPIKey,
		http:    httpClient,
	}
}

// UpsertBook inserts or replaces the row with the book's id.
func (c *Client) UpsertBook(ctx context.Context, token string, book *models.Book) error {
	row := book.Clone()
	row.EnrichmentState = ""
	row.Storage = ""

	body, err := json.Marshal(row)
	if err != nil {
		return errors.WithStack(err)
	}

	q := url.Values{"on_conflict": {"id"}}
	headers := http.Header{"Prefer": {"resolution=merge-duplicates,return=minimal"}}
	return c.do(ctx, http.MethodPost, token, q, headers, body, nil)
}

func (c *Client) DeleteBook(ctx context.Context, token, id string) error {
	q := url.Values{"id": {"eq." + id}}
	return c.do(ctx, http.MethodDelete, token, q, nil, nil, nil)
}

// ListBooks returns the rows visible to token, newest first.
func (c *Client) ListBooks(ctx context.Context, token string) ([]*models.Book, error) {
	q := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	var books []*models.Book
	if err := c.do(ctx, http.MethodGet, token, q, nil, nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) RetrieveBook(ctx context.Context, token, id string) (*models.Book, error) {
	q := url.Values{"select": {"*"}, "id": {"eq." + id}, "limit": {"1"}}
	var books []*models.Book
	if err := c.do(ctx, http.MethodGet, token, q, nil, nil, &books); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, errors.WithStack(ErrNotFound)
	}
	return books[0], nil
}

func (c *Client) do(ctx context.Context, method, token string, q url.Values, headers http.Header, body []byte, out interface{}) error {
	u := c.baseURL + booksPath
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.WithStack(err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return errors.WithStack(apiErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
